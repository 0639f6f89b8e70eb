// Package repeat sends the caller back through the flow a bounded number of times.
package repeat

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type RepeatNodeFactory struct{}

func (f *RepeatNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewRepeatNode(deps), nil
}

func (f *RepeatNodeFactory) ID() models.NodeType {
	return models.NodeTypeRepeat
}

func (f *RepeatNodeFactory) Name() string {
	return "Repeat"
}

func (f *RepeatNodeFactory) Description() string {
	return "Replays the previous node or follows its default edge up to maxRepeats times, then goes to the fallback."
}

func (f *RepeatNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"maxRepeats":     map[string]any{"type": "integer", "minimum": 1, "maximum": 10, "default": defaultMaxRepeats},
			"repeatMessage":  map[string]any{"type": "string"},
			"replayLast":     map[string]any{"type": "boolean"},
			"fallbackNodeId": map[string]any{"type": "string"},
		},
	}
}

func NewRepeatNodeFactory() protocol.NodeFactory {
	return &RepeatNodeFactory{}
}
