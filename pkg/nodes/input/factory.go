// Package input gathers DTMF digits or speech and branches on what the caller entered.
package input

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type InputNodeFactory struct{}

func (f *InputNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewInputNode(deps), nil
}

func (f *InputNodeFactory) ID() models.NodeType {
	return models.NodeTypeInput
}

func (f *InputNodeFactory) Name() string {
	return "Input"
}

func (f *InputNodeFactory) Description() string {
	return "Prompts the caller and collects digits or speech. Each outgoing edge handle is a value to match; " +
		"timeout, no_match and max_attempts handle the unhappy paths."
}

func (f *InputNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":     "string",
				"examples": []string{"For sales press 1, for support press 2."},
			},
			"inputType": map[string]any{
				"type":    "string",
				"enum":    []string{models.InputTypeDTMF, models.InputTypeSpeech, models.InputTypeBoth},
				"default": models.InputTypeDTMF,
			},
			"numDigits":      map[string]any{"type": "integer", "minimum": 1, "maximum": 20},
			"timeoutSeconds": map[string]any{"type": "integer", "minimum": 1, "maximum": 60, "default": defaultTimeoutSeconds},
			"maxAttempts":    map[string]any{"type": "integer", "minimum": 1, "maximum": 10, "default": defaultMaxAttempts},
			"finishOnKey":    map[string]any{"type": "string"},
			"invalidMessage": map[string]any{"type": "string"},
			"timeoutMessage": map[string]any{"type": "string"},
			"variableName":   map[string]any{"type": "string", "maxLength": 64},
			"speechHints":    map[string]any{"type": "string"},
			"voice":          map[string]any{"type": "string"},
			"language":       map[string]any{"type": "string"},
		},
	}
}

func NewInputNodeFactory() protocol.NodeFactory {
	return &InputNodeFactory{}
}
