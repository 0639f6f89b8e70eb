package greeting

import (
	"context"
	"errors"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/speech"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type GreetingNode struct {
	speaker *speech.Speaker
}

func NewGreetingNode(deps protocol.Dependencies) *GreetingNode {
	return &GreetingNode{speaker: speech.New(deps)}
}

func (n *GreetingNode) Enter(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, ok := req.Node.Data.(*models.GreetingData)
	if !ok {
		return nil, errors.New("greeting node without greeting data")
	}

	result := protocol.Route(protocol.HandleDefault)
	result.Verbs = n.speaker.Prompt(ctx, req, data.Text, speech.Voice{
		Voice:    data.Voice,
		Language: data.Language,
		Loop:     data.Loop,
	})

	return result, nil
}

// Continue never happens for greetings; a stray callback just moves on.
func (n *GreetingNode) Continue(_ context.Context, _ *protocol.Request) (*protocol.Result, error) {
	return protocol.Route(protocol.HandleDefault), nil
}
