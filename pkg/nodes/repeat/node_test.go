package repeat_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/repeat"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepeatNode_CountsThenFallsBack(t *testing.T) {
	t.Parallel()

	node := models.NewNode("again", models.NodeTypeRepeat, &models.RepeatData{
		MaxRepeats:     2,
		RepeatMessage:  "Let me repeat that.",
		FallbackNodeID: "operator",
	})
	execution := models.NewExecution("CA1", "wf-1", "acme", "", "", time.Now())
	req := &protocol.Request{Workflow: &models.Workflow{ID: "wf-1"}, Node: node, Execution: execution}

	handler, err := repeat.NewRepeatNodeFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	first, err := handler.Enter(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, execution.Variables[repeat.CountVariable("again")])
	assert.Equal(t, []string{protocol.HandleDefault}, first.Handles)
	assert.Empty(t, first.NextNodeID)
	assert.Equal(t, []callcontrol.Verb{callcontrol.Say{Text: "Let me repeat that."}}, first.Verbs)

	// stores hand the count back as a JSON number
	execution.Variables[repeat.CountVariable("again")] = float64(1)

	_, err = handler.Enter(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, execution.Variables[repeat.CountVariable("again")])

	third, err := handler.Enter(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "operator", third.NextNodeID)
	assert.Equal(t, []string{protocol.HandleFallback, protocol.HandleMaxReached}, third.Handles)
	assert.Empty(t, third.Verbs)
	assert.Equal(t, 2, execution.Variables[repeat.CountVariable("again")])
}

func TestRepeatNode_ReplayLast(t *testing.T) {
	t.Parallel()

	node := models.NewNode("again", models.NodeTypeRepeat, &models.RepeatData{ReplayLast: true})
	execution := models.NewExecution("CA1", "wf-1", "acme", "", "", time.Now())
	execution.VisitedNodes = []models.VisitedNode{{NodeID: "welcome"}, {NodeID: "menu"}, {NodeID: "again"}}

	handler, err := repeat.NewRepeatNodeFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	result, err := handler.Enter(context.Background(), &protocol.Request{Workflow: &models.Workflow{}, Node: node, Execution: execution})
	require.NoError(t, err)
	assert.Equal(t, "menu", result.NextNodeID)
}
