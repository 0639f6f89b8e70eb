package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeType identifies the behavior of a node and the shape of its data.
type NodeType string

const (
	NodeTypeGreeting    NodeType = "greeting"
	NodeTypeAudio       NodeType = "audio"
	NodeTypeInput       NodeType = "input"
	NodeTypeConditional NodeType = "conditional"
	NodeTypeVoicemail   NodeType = "voicemail"
	NodeTypeTransfer    NodeType = "transfer"
	NodeTypeRepeat      NodeType = "repeat"
	NodeTypeEnd         NodeType = "end"
	NodeTypeAIAssistant NodeType = "ai_assistant"
	NodeTypeQueue       NodeType = "queue"
	NodeTypeSMS         NodeType = "sms"
	NodeTypeSetVariable NodeType = "set_variable"
	NodeTypeAPICall     NodeType = "api_call"
)

// NodeTypes lists every known node type in display order.
var NodeTypes = []NodeType{
	NodeTypeGreeting,
	NodeTypeAudio,
	NodeTypeInput,
	NodeTypeConditional,
	NodeTypeVoicemail,
	NodeTypeTransfer,
	NodeTypeRepeat,
	NodeTypeEnd,
	NodeTypeAIAssistant,
	NodeTypeQueue,
	NodeTypeSMS,
	NodeTypeSetVariable,
	NodeTypeAPICall,
}

var ErrUnknownNodeType = errors.New("unknown node type")

// AudioStatus tracks the pre-rendered audio of a node.
type AudioStatus string

const (
	AudioStatusNone     AudioStatus = ""
	AudioStatusReady    AudioStatus = "ready"
	AudioStatusDegraded AudioStatus = "degraded" // synthesis gave up, native speech at call time
)

// NodeAudio is the pipeline's write-back for a single node.
type NodeAudio struct {
	URL     string      `json:"audioUrl"`
	AssetID string      `json:"audioAssetId"`
	Status  AudioStatus `json:"audioStatus"`
}

// Position is the editor canvas location of a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one step of a call flow. Data holds the type specific payload.
type Node struct {
	ID       string   `json:"id"    validate:"required"`
	Type     NodeType `json:"type"  validate:"required"`
	Label    string   `json:"label,omitempty"`
	Data     NodeData `json:"-"`
	Position Position `json:"position"`

	AudioURL     string      `json:"-"`
	AudioAssetID string      `json:"-"`
	AudioStatus  AudioStatus `json:"-"`
}

type nodeWire struct {
	ID           string          `json:"id"`
	Type         NodeType        `json:"type"`
	Label        string          `json:"label,omitempty"`
	Data         json.RawMessage `json:"data"`
	Position     Position        `json:"position"`
	AudioURL     string          `json:"audioUrl,omitempty"`
	AudioAssetID string          `json:"audioAssetId,omitempty"`
	AudioStatus  AudioStatus     `json:"audioStatus,omitempty"`
}

// MarshalJSON writes the audio fields both at the node level and inside data.
func (n Node) MarshalJSON() ([]byte, error) {
	data := n.Data
	if data == nil {
		var err error

		data, err = NewNodeData(n.Type)
		if err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s node data: %w", n.Type, err)
	}

	fields := map[string]any{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("failed to marshal %s node data: %w", n.Type, err)
	}

	setOrDelete(fields, "audioUrl", n.AudioURL)
	setOrDelete(fields, "audioAssetId", n.AudioAssetID)

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s node data: %w", n.Type, err)
	}

	return json.Marshal(nodeWire{
		ID:           n.ID,
		Type:         n.Type,
		Label:        n.Label,
		Data:         raw,
		Position:     n.Position,
		AudioURL:     n.AudioURL,
		AudioAssetID: n.AudioAssetID,
		AudioStatus:  n.AudioStatus,
	})
}

func setOrDelete(fields map[string]any, key, value string) {
	if value == "" {
		delete(fields, key)

		return
	}

	fields[key] = value
}

// UnmarshalJSON decodes data into the payload for the node type. Older documents that only carry
// the audio url inside data are accepted.
func (n *Node) UnmarshalJSON(b []byte) error {
	var wire nodeWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	data, err := NewNodeData(wire.Type)
	if err != nil {
		return fmt.Errorf("node %s: %w", wire.ID, err)
	}

	if len(wire.Data) > 0 && string(wire.Data) != "null" {
		if err := json.Unmarshal(wire.Data, data); err != nil {
			return fmt.Errorf("node %s: invalid %s data: %w", wire.ID, wire.Type, err)
		}
	}

	*n = Node{
		ID:           wire.ID,
		Type:         wire.Type,
		Label:        wire.Label,
		Data:         data,
		Position:     wire.Position,
		AudioURL:     wire.AudioURL,
		AudioAssetID: wire.AudioAssetID,
		AudioStatus:  wire.AudioStatus,
	}

	audio := data.Audio()
	if n.AudioURL == "" {
		n.AudioURL = audio.AudioURL
	}

	if n.AudioAssetID == "" {
		n.AudioAssetID = audio.AudioAssetID
	}

	if n.AudioURL != "" && n.AudioStatus == AudioStatusNone {
		n.AudioStatus = AudioStatusReady
	}

	audio.AudioURL = n.AudioURL
	audio.AudioAssetID = n.AudioAssetID

	return nil
}

// HasAudio reports whether the node carries pre-rendered audio.
func (n *Node) HasAudio() bool {
	return n.AudioURL != ""
}

// SetAudio applies a pipeline write-back to both audio locations.
func (n *Node) SetAudio(audio NodeAudio) {
	n.AudioURL = audio.URL
	n.AudioAssetID = audio.AssetID
	n.AudioStatus = audio.Status

	if n.Data != nil {
		fields := n.Data.Audio()
		fields.AudioURL = audio.URL
		fields.AudioAssetID = audio.AssetID
	}
}

// NewNode builds a node with its payload. The payload type must match nodeType.
func NewNode(id string, nodeType NodeType, data NodeData) *Node {
	node := &Node{ID: id, Type: nodeType, Data: data}

	if data != nil {
		audio := data.Audio()
		node.AudioURL = audio.AudioURL
		node.AudioAssetID = audio.AudioAssetID

		if node.AudioURL != "" {
			node.AudioStatus = AudioStatusReady
		}
	}

	return node
}
