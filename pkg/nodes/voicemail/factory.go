// Package voicemail records a message from the caller.
package voicemail

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type VoicemailNodeFactory struct{}

func (f *VoicemailNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewVoicemailNode(deps), nil
}

func (f *VoicemailNodeFactory) ID() models.NodeType {
	return models.NodeTypeVoicemail
}

func (f *VoicemailNodeFactory) Name() string {
	return "Voicemail"
}

func (f *VoicemailNodeFactory) Description() string {
	return "Plays a prompt and records the caller. The recording url is stored in the voicemail_url variable."
}

func (f *VoicemailNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt":      map[string]any{"type": "string", "examples": []string{"Please leave a message after the beep."}},
			"maxLength":   map[string]any{"type": "integer", "minimum": 1, "maximum": 600, "default": defaultMaxLength},
			"playBeep":    map[string]any{"type": "boolean", "default": true},
			"transcribe":  map[string]any{"type": "boolean"},
			"finishOnKey": map[string]any{"type": "string", "default": defaultFinishOnKey},
			"voice":       map[string]any{"type": "string"},
			"language":    map[string]any{"type": "string"},
		},
	}
}

func NewVoicemailNodeFactory() protocol.NodeFactory {
	return &VoicemailNodeFactory{}
}
