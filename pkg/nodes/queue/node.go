package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/speech"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/template"
)

// Queue results reported by the platform when the caller leaves the queue.
const (
	ResultBridged = "bridged"
	ResultHangup  = "hangup"
)

type QueueNode struct {
	speaker *speech.Speaker
}

func NewQueueNode(deps protocol.Dependencies) *QueueNode {
	return &QueueNode{speaker: speech.New(deps)}
}

func (n *QueueNode) Enter(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, ok := req.Node.Data.(*models.QueueData)
	if !ok {
		return nil, errors.New("queue node without queue data")
	}

	queue := template.Render(data.QueueName, req.Execution.Variables)
	if queue == "" {
		return &protocol.Result{
			Handles: []string{protocol.HandleFailed},
			Err:     errors.New("queue name rendered empty"),
		}, nil
	}

	verbs := n.speaker.Prompt(ctx, req, data.Message, speech.Voice{})
	verbs = append(verbs, callcontrol.Enqueue{
		Action:  req.ContinueURL(),
		WaitURL: data.WaitURL,
		Queue:   queue,
	})

	return &protocol.Result{Verbs: verbs, Wait: true, Input: queue, Success: true}, nil
}

func (n *QueueNode) Continue(_ context.Context, req *protocol.Request) (*protocol.Result, error) {
	result := strings.ToLower(req.Event.QueueResult)

	switch result {
	case ResultBridged:
		return &protocol.Result{
			Handles:   []string{protocol.HandleBridged, protocol.HandleDefault},
			QuietEnd:  true,
			EndReason: "queue_bridged",
			Input:     result,
			Success:   true,
		}, nil
	case ResultHangup:
		return &protocol.Result{
			Verbs:     []callcontrol.Verb{callcontrol.Hangup{}},
			Hangup:    true,
			EndReason: "caller_hangup",
			Input:     result,
			Success:   true,
		}, nil
	default:
		return &protocol.Result{
			Handles:   []string{protocol.HandleFailed, protocol.HandleDefault},
			EndReason: "queue_" + result,
			Input:     result,
			Err:       fmt.Errorf("queue ended with result %q", result),
		}, nil
	}
}
