// Package sms sends a text message during the call.
package sms

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type SMSNodeFactory struct{}

func (f *SMSNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewSMSNode(deps), nil
}

func (f *SMSNodeFactory) ID() models.NodeType {
	return models.NodeTypeSMS
}

func (f *SMSNodeFactory) Name() string {
	return "SMS"
}

func (f *SMSNodeFactory) Description() string {
	return "Sends a text message, to the caller unless 'to' is set, and continues on the default edge."
}

func (f *SMSNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to":   map[string]any{"type": "string"},
			"from": map[string]any{"type": "string"},
			"body": map[string]any{
				"type":      "string",
				"maxLength": 1600,
				"examples":  []string{"Your reference number is {{ticket}}"},
			},
		},
		"required": []string{"body"},
	}
}

func NewSMSNodeFactory() protocol.NodeFactory {
	return &SMSNodeFactory{}
}
