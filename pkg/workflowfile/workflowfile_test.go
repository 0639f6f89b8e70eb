package workflowfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/workflowfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAML(t *testing.T) {
	t.Parallel()

	workflow, err := workflowfile.Load(filepath.Join("testdata", "main_menu.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "wf-main", workflow.ID)
	assert.Equal(t, models.WorkflowStatusActive, workflow.Status)
	assert.Equal(t, "alice", workflow.Config.DefaultVoice)
	require.Len(t, workflow.Nodes, 5)
	require.Len(t, workflow.Edges, 4)

	menu, ok := workflow.NodeByID("menu")
	require.True(t, ok)

	input, ok := menu.Data.(*models.InputData)
	require.True(t, ok)
	assert.Equal(t, 1, input.NumDigits)
	assert.Equal(t, 3, input.MaxAttempts)

	vm, _ := workflow.NodeByID("vm")
	voicemail := vm.Data.(*models.VoicemailData)
	require.NotNil(t, voicemail.PlayBeep)
	assert.True(t, *voicemail.PlayBeep)

	require.NotNil(t, workflow.Edges[1].SourceHandle)
	assert.Equal(t, "1", *workflow.Edges[1].SourceHandle)

	assert.True(t, models.ValidateGraph(workflow).Valid())
}

func TestLoad_JSON(t *testing.T) {
	t.Parallel()

	workflow, err := workflowfile.Load(filepath.Join("testdata", "support.json"))
	require.NoError(t, err)

	queue, ok := workflow.NodeByID("queue")
	require.True(t, ok)
	assert.Equal(t, "support", queue.Data.(*models.QueueData).QueueName)
}

func TestLoadDir(t *testing.T) {
	t.Parallel()

	workflows, err := workflowfile.LoadDir("testdata")
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "wf-main", workflows[0].ID)
	assert.Equal(t, "wf-support", workflows[1].ID)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   string
		format workflowfile.Format
		target error
	}{
		{name: "empty", data: "  \n", format: workflowfile.FormatYAML, target: workflowfile.ErrEmptyFile},
		{name: "unknown format", data: "id: x", format: "toml", target: workflowfile.ErrUnknownFormat},
		{name: "broken yaml", data: "nodes: [", format: workflowfile.FormatYAML},
		{name: "unknown node type", data: `{"nodes":[{"id":"a","type":"fax","data":{}}]}`, format: workflowfile.FormatJSON, target: models.ErrUnknownNodeType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := workflowfile.Parse([]byte(tt.data), tt.format)
			require.Error(t, err)

			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestLoad_UnknownExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "flow.toml")
	require.NoError(t, os.WriteFile(path, []byte("id = 1"), 0o600))

	_, err := workflowfile.Load(path)
	assert.ErrorIs(t, err, workflowfile.ErrUnknownFormat)
}
