package sms_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/sms"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMSNode(t *testing.T) {
	t.Parallel()

	handler, err := sms.NewSMSNodeFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	data := &models.SMSData{Body: "Ticket {{ticket}}"}

	t.Run("defaults to the caller", func(t *testing.T) {
		t.Parallel()

		execution := models.NewExecution("CA1", "wf-1", "acme", "+15550001111", "", time.Now())
		execution.Variables["ticket"] = 981

		result, err := handler.Enter(context.Background(), &protocol.Request{
			Node:      models.NewNode("text", models.NodeTypeSMS, data),
			Execution: execution,
		})
		require.NoError(t, err)
		assert.Equal(t, []callcontrol.Verb{callcontrol.Sms{To: "+15550001111", Body: "Ticket 981"}}, result.Verbs)
		assert.Equal(t, []string{protocol.HandleDefault}, result.Handles)
	})

	t.Run("no recipient", func(t *testing.T) {
		t.Parallel()

		result, err := handler.Enter(context.Background(), &protocol.Request{
			Node:      models.NewNode("text", models.NodeTypeSMS, data),
			Execution: models.NewExecution("CA2", "wf-1", "acme", "", "", time.Now()),
		})
		require.NoError(t, err)
		assert.ErrorIs(t, result.Err, sms.ErrNoRecipient)
		assert.Empty(t, result.Verbs)
	})
}
