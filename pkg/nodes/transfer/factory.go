// Package transfer dials another number and branches on how the dial ended.
package transfer

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type TransferNodeFactory struct{}

func (f *TransferNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewTransferNode(deps), nil
}

func (f *TransferNodeFactory) ID() models.NodeType {
	return models.NodeTypeTransfer
}

func (f *TransferNodeFactory) Name() string {
	return "Transfer"
}

func (f *TransferNodeFactory) Description() string {
	return "Transfers the call to a phone number. Routes answered, busy, no_answer or failed once the dial ends."
}

func (f *TransferNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"destination": map[string]any{
				"type":     "string",
				"pattern":  `^\+?[1-9]\d{1,14}$`,
				"examples": []string{"+15551234567"},
			},
			"timeout":        map[string]any{"type": "integer", "minimum": 5, "maximum": 120, "default": defaultDialTimeout},
			"callerId":       map[string]any{"type": "string"},
			"record":         map[string]any{"type": "boolean"},
			"message":        map[string]any{"type": "string"},
			"failureMessage": map[string]any{"type": "string"},
		},
	}
}

func NewTransferNodeFactory() protocol.NodeFactory {
	return &TransferNodeFactory{}
}
