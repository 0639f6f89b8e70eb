// Package greeting plays a prompt and moves on. It serves both greeting and audio nodes.
package greeting

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type GreetingNodeFactory struct {
	nodeType models.NodeType
}

func (f *GreetingNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewGreetingNode(deps), nil
}

func (f *GreetingNodeFactory) ID() models.NodeType {
	return f.nodeType
}

func (f *GreetingNodeFactory) Name() string {
	if f.nodeType == models.NodeTypeAudio {
		return "Audio"
	}

	return "Greeting"
}

func (f *GreetingNodeFactory) Description() string {
	return "Plays a message, using pre-rendered audio when available, then follows the default edge."
}

func (f *GreetingNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "Message spoken to the caller. Supports {{variable}} placeholders.",
				"examples":    []string{"Welcome to Acme. Calls may be recorded."},
			},
			"voice":    map[string]any{"type": "string"},
			"language": map[string]any{"type": "string"},
			"loop":     map[string]any{"type": "integer", "minimum": 1, "maximum": 10},
			"audioUrl": map[string]any{"type": "string"},
		},
	}
}

func NewGreetingNodeFactory() protocol.NodeFactory {
	return &GreetingNodeFactory{nodeType: models.NodeTypeGreeting}
}

func NewAudioNodeFactory() protocol.NodeFactory {
	return &GreetingNodeFactory{nodeType: models.NodeTypeAudio}
}
