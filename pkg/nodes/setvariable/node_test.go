package setvariable_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/setvariable"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVariableNode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    any
		expected any
		wantErr  bool
	}{
		{name: "literal", value: "plain", expected: "plain"},
		{name: "number", value: 7, expected: 7},
		{name: "rendered number", value: "{{digits}}", expected: float64(2)},
		{name: "rendered json", value: `{"choice": "{{digits}}"}`, expected: map[string]any{"choice": "2"}},
		{name: "broken json", value: `{choice: {{digits}}}`, wantErr: true},
	}

	handler, err := setvariable.NewSetVariableNodeFactory().Create(protocol.Dependencies{})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			execution := models.NewExecution("CA1", "wf-1", "acme", "", "", time.Now())
			execution.Variables["digits"] = "2"

			result, err := handler.Enter(context.Background(), &protocol.Request{
				Node:      models.NewNode("set", models.NodeTypeSetVariable, &models.SetVariableData{Variable: "out", Value: tt.value}),
				Execution: execution,
			})
			require.NoError(t, err)

			if tt.wantErr {
				assert.Error(t, result.Err)
				assert.Equal(t, []string{protocol.HandleError, protocol.HandleDefault}, result.Handles)
				assert.NotContains(t, execution.Variables, "out")

				return
			}

			assert.Equal(t, tt.expected, execution.Variables["out"])
			assert.Equal(t, []string{protocol.HandleDefault}, result.Handles)
		})
	}
}
