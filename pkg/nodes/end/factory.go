// Package end says goodbye and hangs up.
package end

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type EndNodeFactory struct{}

func (f *EndNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewEndNode(deps), nil
}

func (f *EndNodeFactory) ID() models.NodeType {
	return models.NodeTypeEnd
}

func (f *EndNodeFactory) Name() string {
	return "End"
}

func (f *EndNodeFactory) Description() string {
	return "Plays a closing message and always hangs up."
}

func (f *EndNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string", "examples": []string{models.DefaultGoodbyeMessage}},
			"reason":  map[string]any{"type": "string"},
		},
	}
}

func NewEndNodeFactory() protocol.NodeFactory {
	return &EndNodeFactory{}
}
