package end

import (
	"context"
	"errors"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/speech"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type EndNode struct {
	speaker *speech.Speaker
}

func NewEndNode(deps protocol.Dependencies) *EndNode {
	return &EndNode{speaker: speech.New(deps)}
}

func (n *EndNode) Enter(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, ok := req.Node.Data.(*models.EndData)
	if !ok {
		return nil, errors.New("end node without end data")
	}

	reason := data.Reason
	if reason == "" {
		reason = "completed"
	}

	message := data.Message
	if message == "" && !req.Node.HasAudio() {
		message = models.DefaultGoodbyeMessage
	}

	verbs := n.speaker.Prompt(ctx, req, message, speech.Voice{})
	verbs = append(verbs, callcontrol.Hangup{})

	return &protocol.Result{
		Verbs:     verbs,
		Hangup:    true,
		Status:    models.ExecutionStatusCompleted,
		EndReason: reason,
		Success:   true,
	}, nil
}

func (n *EndNode) Continue(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	return n.Enter(ctx, req)
}
