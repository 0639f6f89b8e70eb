// Package setvariable stores a value in the call's variables.
package setvariable

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type SetVariableNodeFactory struct{}

func (f *SetVariableNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewSetVariableNode(deps), nil
}

func (f *SetVariableNodeFactory) ID() models.NodeType {
	return models.NodeTypeSetVariable
}

func (f *SetVariableNodeFactory) Name() string {
	return "Set Variable"
}

func (f *SetVariableNodeFactory) Description() string {
	return "Assigns a value to a call variable. String values are rendered and coerced to numbers, booleans or JSON."
}

func (f *SetVariableNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"variable": map[string]any{"type": "string", "maxLength": 64},
			"value": map[string]any{
				"examples": []any{"{{caller_choice}}", 3, true},
			},
		},
		"required": []string{"variable"},
	}
}

func NewSetVariableNodeFactory() protocol.NodeFactory {
	return &SetVariableNodeFactory{}
}
