// Package queue places the caller in a named hold queue.
package queue

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type QueueNodeFactory struct{}

func (f *QueueNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewQueueNode(deps), nil
}

func (f *QueueNodeFactory) ID() models.NodeType {
	return models.NodeTypeQueue
}

func (f *QueueNodeFactory) Name() string {
	return "Queue"
}

func (f *QueueNodeFactory) Description() string {
	return "Enqueues the caller until an agent picks up. Follows 'bridged' after the conversation and 'failed' otherwise."
}

func (f *QueueNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"queueName": map[string]any{"type": "string", "maxLength": 64},
			"waitUrl":   map[string]any{"type": "string"},
			"message":   map[string]any{"type": "string"},
		},
		"required": []string{"queueName"},
	}
}

func NewQueueNodeFactory() protocol.NodeFactory {
	return &QueueNodeFactory{}
}
