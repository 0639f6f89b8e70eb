// Package persistencetest holds behavior checks shared by every persistence implementation.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

// SampleWorkflow returns a small valid call flow with a fresh id.
func SampleWorkflow(tenantID string) *models.Workflow {
	return &models.Workflow{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Name:     "Main menu",
		Status:   models.WorkflowStatusActive,
		Nodes: []*models.Node{
			models.NewNode("welcome", models.NodeTypeGreeting, &models.GreetingData{Text: "Welcome to Acme"}),
			models.NewNode("menu", models.NodeTypeInput, &models.InputData{Prompt: "Press 1 for sales", NumDigits: 1}),
			models.NewNode("bye", models.NodeTypeEnd, &models.EndData{Message: "Goodbye"}),
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "welcome", Target: "menu"},
			{ID: "e2", Source: "menu", Target: "bye", SourceHandle: strPtr("1")},
		},
	}
}

func WorkflowRepository(t *testing.T, repo persistence.WorkflowRepository) {
	t.Helper()

	ctx := context.Background()

	t.Run("save and read back", func(t *testing.T) {
		workflow := SampleWorkflow("tenant-" + uuid.NewString())
		require.NoError(t, repo.Save(ctx, workflow))
		assert.Equal(t, int64(1), workflow.Revision)

		stored, err := repo.GetByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.Name, stored.Name)
		assert.Len(t, stored.Nodes, 3)
		assert.Len(t, stored.Edges, 2)
		assert.Equal(t, "1", stored.Edges[1].Handle())

		data, ok := stored.Nodes[1].Data.(*models.InputData)
		require.True(t, ok)
		assert.Equal(t, 1, data.NumDigits)
	})

	t.Run("missing workflow", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.NewString())
		require.Error(t, err)
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("stale revision is rejected", func(t *testing.T) {
		workflow := SampleWorkflow("tenant-" + uuid.NewString())
		require.NoError(t, repo.Save(ctx, workflow))

		first, err := repo.GetByID(ctx, workflow.ID)
		require.NoError(t, err)

		second, err := repo.GetByID(ctx, workflow.ID)
		require.NoError(t, err)

		first.Name = "Edited first"
		require.NoError(t, repo.Save(ctx, first))
		assert.Equal(t, int64(2), first.Revision)

		second.Name = "Edited second"
		err = repo.Save(ctx, second)
		require.Error(t, err)
		assert.ErrorIs(t, err, persistence.ErrRevisionConflict)
	})

	t.Run("node audio write-back touches one node", func(t *testing.T) {
		workflow := SampleWorkflow("tenant-" + uuid.NewString())
		require.NoError(t, repo.Save(ctx, workflow))

		revision, err := repo.UpdateNodeAudio(ctx, workflow.ID, "menu", models.NodeAudio{
			URL:     "https://cdn.example.com/menu.mp3",
			AssetID: "asset-menu",
			Status:  models.AudioStatusReady,
		})
		require.NoError(t, err)
		assert.Equal(t, workflow.Revision+1, revision)

		stored, err := repo.GetByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, revision, stored.Revision)

		menu, _ := stored.NodeByID("menu")
		assert.Equal(t, "https://cdn.example.com/menu.mp3", menu.AudioURL)
		assert.Equal(t, "https://cdn.example.com/menu.mp3", menu.Data.Audio().AudioURL)
		assert.Equal(t, models.AudioStatusReady, menu.AudioStatus)

		welcome, _ := stored.NodeByID("welcome")
		assert.Empty(t, welcome.AudioURL)

		_, err = repo.UpdateNodeAudio(ctx, workflow.ID, "ghost", models.NodeAudio{URL: "x"})
		assert.True(t, persistence.IsNodeNotFound(err))

		_, err = repo.UpdateNodeAudio(ctx, uuid.NewString(), "menu", models.NodeAudio{URL: "x"})
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("active workflow by tenant", func(t *testing.T) {
		tenantID := "tenant-" + uuid.NewString()

		draft := SampleWorkflow(tenantID)
		draft.Status = models.WorkflowStatusDraft
		require.NoError(t, repo.Save(ctx, draft))

		_, err := repo.ActiveByTenant(ctx, tenantID)
		require.Error(t, err)
		assert.ErrorIs(t, err, persistence.ErrActiveWorkflowNotFound)

		active := SampleWorkflow(tenantID)
		require.NoError(t, repo.Save(ctx, active))

		found, err := repo.ActiveByTenant(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, active.ID, found.ID)
	})

	t.Run("delete", func(t *testing.T) {
		workflow := SampleWorkflow("tenant-" + uuid.NewString())
		require.NoError(t, repo.Save(ctx, workflow))
		require.NoError(t, repo.Delete(ctx, workflow.ID))

		_, err := repo.GetByID(ctx, workflow.ID)
		assert.True(t, persistence.IsWorkflowNotFound(err))
		assert.True(t, persistence.IsWorkflowNotFound(repo.Delete(ctx, workflow.ID)))
	})
}

func ExecutionRepository(t *testing.T, repo persistence.ExecutionRepository) {
	t.Helper()

	ctx := context.Background()

	newExecution := func() *models.Execution {
		return models.NewExecution("CA"+uuid.NewString(), "wf-1", "tenant-1", "+15551110000", "+15552220000", time.Now().UTC())
	}

	t.Run("create and read back", func(t *testing.T) {
		execution := newExecution()
		execution.Variables["tier"] = "gold"

		require.NoError(t, repo.Create(ctx, execution))
		assert.Equal(t, int64(1), execution.Version)

		stored, err := repo.GetByCallID(ctx, execution.CallID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusActive, stored.Status)
		assert.Equal(t, "gold", stored.Variables["tier"])
		assert.Equal(t, int64(1), stored.Version)
	})

	t.Run("duplicate call", func(t *testing.T) {
		execution := newExecution()
		require.NoError(t, repo.Create(ctx, execution))

		err := repo.Create(ctx, newExecutionWithID(execution.CallID))
		require.Error(t, err)
		assert.ErrorIs(t, err, persistence.ErrDuplicateCall)
	})

	t.Run("missing call", func(t *testing.T) {
		_, err := repo.GetByCallID(ctx, "CA-missing-"+uuid.NewString())
		assert.True(t, persistence.IsExecutionNotFound(err))
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		execution := newExecution()
		require.NoError(t, repo.Create(ctx, execution))

		first, err := repo.GetByCallID(ctx, execution.CallID)
		require.NoError(t, err)

		second, err := repo.GetByCallID(ctx, execution.CallID)
		require.NoError(t, err)

		first.CurrentNodeID = "menu"
		require.NoError(t, repo.Update(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		second.CurrentNodeID = "other"
		err = repo.Update(ctx, second)
		require.Error(t, err)
		assert.ErrorIs(t, err, persistence.ErrVersionConflict)

		stored, err := repo.GetByCallID(ctx, execution.CallID)
		require.NoError(t, err)
		assert.Equal(t, "menu", stored.CurrentNodeID)
	})

	t.Run("list by status", func(t *testing.T) {
		execution := newExecution()
		require.NoError(t, repo.Create(ctx, execution))

		execution.Status = models.ExecutionStatusCompleted
		require.NoError(t, repo.Update(ctx, execution))

		completed, err := repo.ListByStatus(ctx, models.ExecutionStatusCompleted)
		require.NoError(t, err)
		assert.True(t, containsCall(completed, execution.CallID))

		active, err := repo.ListByStatus(ctx, models.ExecutionStatusActive)
		require.NoError(t, err)
		assert.False(t, containsCall(active, execution.CallID))
	})

	t.Run("delete", func(t *testing.T) {
		execution := newExecution()
		require.NoError(t, repo.Create(ctx, execution))
		require.NoError(t, repo.Delete(ctx, execution.CallID))

		_, err := repo.GetByCallID(ctx, execution.CallID)
		assert.True(t, persistence.IsExecutionNotFound(err))
	})
}

func AudioJobRepository(t *testing.T, repo persistence.AudioJobRepository) {
	t.Helper()

	ctx := context.Background()

	t.Run("save, read and purge", func(t *testing.T) {
		workflowID := uuid.NewString()
		old := time.Now().UTC().Add(-48 * time.Hour)

		finished := &models.AudioJob{
			ID:         uuid.NewString(),
			WorkflowID: workflowID,
			NodeIDs:    []string{"welcome"},
			Status:     models.AudioJobCompleted,
			CreatedAt:  old,
			FinishedAt: &old,
		}
		running := &models.AudioJob{
			ID:         uuid.NewString(),
			WorkflowID: workflowID,
			NodeIDs:    []string{"menu"},
			Status:     models.AudioJobProcessing,
			CreatedAt:  old,
		}

		require.NoError(t, repo.Save(ctx, finished))
		require.NoError(t, repo.Save(ctx, running))

		stored, err := repo.GetByID(ctx, finished.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"welcome"}, stored.NodeIDs)

		jobs, err := repo.ListByWorkflow(ctx, workflowID)
		require.NoError(t, err)
		assert.Len(t, jobs, 2)

		deleted, err := repo.DeleteFinishedBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, 1)

		_, err = repo.GetByID(ctx, finished.ID)
		assert.ErrorIs(t, err, persistence.ErrAudioJobNotFound)

		_, err = repo.GetByID(ctx, running.ID)
		assert.NoError(t, err)
	})
}

func newExecutionWithID(callID string) *models.Execution {
	return models.NewExecution(callID, "wf-1", "tenant-1", "+15551110000", "+15552220000", time.Now().UTC())
}

func containsCall(executions []*models.Execution, callID string) bool {
	for _, execution := range executions {
		if execution.CallID == callID {
			return true
		}
	}

	return false
}
