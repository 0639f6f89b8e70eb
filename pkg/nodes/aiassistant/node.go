package aiassistant

import (
	"context"
	"errors"
	"sort"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/speech"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/template"
)

// HandleHandoff is the generic branch taken when the agent hands the call back with a reason.
const HandleHandoff = "handoff"

// VariableHandoff holds the last handoff value reported by the agent.
const VariableHandoff = "ai_handoff"

var ErrNoStreamURL = errors.New("ai assistant stream url is not configured")

type AIAssistantNode struct {
	speaker *speech.Speaker
}

func NewAIAssistantNode(deps protocol.Dependencies) *AIAssistantNode {
	return &AIAssistantNode{speaker: speech.New(deps)}
}

func (n *AIAssistantNode) Enter(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, ok := req.Node.Data.(*models.AIAssistantData)
	if !ok {
		return nil, errors.New("ai assistant node without ai assistant data")
	}

	if data.StreamURL == "" {
		return &protocol.Result{Handles: []string{protocol.HandleError}, Err: ErrNoStreamURL}, nil
	}

	parameters := []callcontrol.Parameter{
		{Name: "callId", Value: req.Execution.CallID},
		{Name: "workflowId", Value: req.Workflow.ID},
		{Name: "nodeId", Value: req.Node.ID},
	}

	if data.AgentID != "" {
		parameters = append(parameters, callcontrol.Parameter{Name: "agentId", Value: data.AgentID})
	}

	if req.Execution.Caller != "" {
		parameters = append(parameters, callcontrol.Parameter{Name: "caller", Value: req.Execution.Caller})
	}

	names := make([]string, 0, len(data.Parameters))
	for name := range data.Parameters {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		parameters = append(parameters, callcontrol.Parameter{
			Name:  name,
			Value: template.Render(data.Parameters[name], req.Execution.Variables),
		})
	}

	verbs := n.speaker.Prompt(ctx, req, data.WelcomeMessage, speech.Voice{})
	verbs = append(verbs, callcontrol.Connect{
		Action: req.ContinueURL(),
		Stream: callcontrol.Stream{URL: data.StreamURL, Parameters: parameters},
	})

	return &protocol.Result{Verbs: verbs, Wait: true, Success: true}, nil
}

func (n *AIAssistantNode) Continue(_ context.Context, req *protocol.Request) (*protocol.Result, error) {
	handoff := req.Event.Handoff
	if handoff == "" {
		return &protocol.Result{
			Handles:   []string{protocol.HandleCompleted, protocol.HandleDefault},
			QuietEnd:  true,
			EndReason: "ai_completed",
			Success:   true,
		}, nil
	}

	execution.SetVariable(req.Execution, VariableHandoff, handoff)

	return &protocol.Result{
		Handles:   []string{handoff, HandleHandoff, protocol.HandleDefault},
		QuietEnd:  true,
		EndReason: "ai_handoff",
		Input:     handoff,
		Success:   true,
	}, nil
}
