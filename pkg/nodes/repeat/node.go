package repeat

import (
	"context"
	"errors"

	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/speech"
	"github.com/dukex/ivrflow/pkg/protocol"
)

const defaultMaxRepeats = 3

// CountVariable names the variable holding how often the node already repeated.
func CountVariable(nodeID string) string {
	return "repeat_count_" + nodeID
}

type RepeatNode struct {
	speaker *speech.Speaker
}

func NewRepeatNode(deps protocol.Dependencies) *RepeatNode {
	return &RepeatNode{speaker: speech.New(deps)}
}

func (n *RepeatNode) Enter(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, ok := req.Node.Data.(*models.RepeatData)
	if !ok {
		return nil, errors.New("repeat node without repeat data")
	}

	maxRepeats := data.MaxRepeats
	if maxRepeats == 0 {
		maxRepeats = defaultMaxRepeats
	}

	key := CountVariable(req.Node.ID)
	count := counter(req.Execution.Variables[key])

	if count >= maxRepeats {
		result := &protocol.Result{
			Handles:    []string{protocol.HandleFallback, protocol.HandleMaxReached},
			NextNodeID: data.FallbackNodeID,
			EndReason:  "max_repeats",
			Success:    true,
		}

		return result, nil
	}

	execution.SetVariable(req.Execution, key, count+1)

	result := protocol.Route(protocol.HandleDefault)
	result.Verbs = n.speaker.Prompt(ctx, req, data.RepeatMessage, speech.Voice{})

	if data.ReplayLast {
		if previous := req.Execution.PreviousNodeID(req.Node.ID); previous != "" {
			result.NextNodeID = previous
		}
	}

	return result, nil
}

func (n *RepeatNode) Continue(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	return n.Enter(ctx, req)
}

// counter reads the stored count. Stores round-trip numbers through JSON, so any numeric kind may show up.
func counter(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
