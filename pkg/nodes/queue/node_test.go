package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/queue"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type urls struct{}

func (urls) Continue(workflowID, nodeID string) string { return "/c/" + nodeID }
func (urls) Enter(workflowID, nodeID string) string    { return "/e/" + nodeID }

func request(result string) *protocol.Request {
	execution := models.NewExecution("CA1", "wf-1", "acme", "", "", time.Now())
	execution.Variables["team"] = "support"

	return &protocol.Request{
		Workflow:  &models.Workflow{ID: "wf-1"},
		Node:      models.NewNode("hold", models.NodeTypeQueue, &models.QueueData{QueueName: "{{team}}", Message: "Please hold."}),
		Execution: execution,
		Event:     protocol.Event{QueueResult: result},
		URLs:      urls{},
	}
}

func TestQueueNode(t *testing.T) {
	t.Parallel()

	handler, err := queue.NewQueueNodeFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	result, err := handler.Enter(context.Background(), request(""))
	require.NoError(t, err)
	require.Len(t, result.Verbs, 2)
	assert.Equal(t, callcontrol.Say{Text: "Please hold."}, result.Verbs[0])
	assert.Equal(t, callcontrol.Enqueue{Action: "/c/hold", Queue: "support"}, result.Verbs[1])
	assert.True(t, result.Wait)

	tests := []struct {
		name    string
		result  string
		handles []string
		hangup  bool
	}{
		{name: "bridged", result: "bridged", handles: []string{protocol.HandleBridged, protocol.HandleDefault}},
		{name: "caller hung up", result: "hangup", hangup: true},
		{name: "queue full", result: "queue-full", handles: []string{protocol.HandleFailed, protocol.HandleDefault}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := handler.Continue(context.Background(), request(tt.result))
			require.NoError(t, err)
			assert.Equal(t, tt.handles, result.Handles)
			assert.Equal(t, tt.hangup, result.Hangup)
		})
	}
}
