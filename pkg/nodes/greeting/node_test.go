package greeting_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/greeting"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreetingNode_Enter(t *testing.T) {
	t.Parallel()

	node := models.NewNode("welcome", models.NodeTypeGreeting, &models.GreetingData{Text: "Welcome", Loop: 2})
	req := &protocol.Request{
		Workflow:  &models.Workflow{ID: "wf-1"},
		Node:      node,
		Execution: models.NewExecution("CA1", "wf-1", "acme", "", "", time.Now()),
	}

	handler, err := greeting.NewGreetingNodeFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	result, err := handler.Enter(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{protocol.HandleDefault}, result.Handles)
	assert.False(t, result.Wait)
	assert.Equal(t, []callcontrol.Verb{callcontrol.Say{Text: "Welcome", Loop: 2}}, result.Verbs)
}

func TestGreetingNodeFactory_Types(t *testing.T) {
	t.Parallel()

	assert.Equal(t, models.NodeTypeGreeting, greeting.NewGreetingNodeFactory().ID())
	assert.Equal(t, models.NodeTypeAudio, greeting.NewAudioNodeFactory().ID())
	assert.Equal(t, "Audio", greeting.NewAudioNodeFactory().Name())
}
