// Package aiassistant hands the call's audio stream to a conversational agent.
package aiassistant

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type AIAssistantNodeFactory struct{}

func (f *AIAssistantNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewAIAssistantNode(deps), nil
}

func (f *AIAssistantNodeFactory) ID() models.NodeType {
	return models.NodeTypeAIAssistant
}

func (f *AIAssistantNodeFactory) Name() string {
	return "AI Assistant"
}

func (f *AIAssistantNodeFactory) Description() string {
	return "Connects the call to a streaming agent. When the agent returns control, an optional handoff value selects the outgoing edge."
}

func (f *AIAssistantNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"welcomeMessage": map[string]any{"type": "string"},
			"streamUrl": map[string]any{
				"type":     "string",
				"examples": []string{"wss://agent.example.com/stream"},
			},
			"agentId": map[string]any{"type": "string"},
			"parameters": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
	}
}

func NewAIAssistantNodeFactory() protocol.NodeFactory {
	return &AIAssistantNodeFactory{}
}
