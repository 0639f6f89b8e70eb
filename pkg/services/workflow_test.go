package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dukex/ivrflow/pkg/log"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/dukex/ivrflow/pkg/persistence/memory"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/registry"
	"github.com/dukex/ivrflow/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduledJob struct {
	workflowID string
	nodeIDs    []string
}

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
}

func (s *recordingScheduler) Enqueue(_ context.Context, workflowID string, nodeIDs []string, _ bool) (*models.AudioJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, scheduledJob{workflowID: workflowID, nodeIDs: nodeIDs})

	return &models.AudioJob{ID: "job-1", WorkflowID: workflowID, NodeIDs: nodeIDs}, nil
}

func (s *recordingScheduler) scheduled() []scheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]scheduledJob(nil), s.jobs...)
}

func newService(t *testing.T) (*services.Workflow, *recordingScheduler) {
	t.Helper()

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	reg := registry.NewRegistry(log.Discard(), protocol.Dependencies{})
	reg.RegisterDefaultNodes()

	scheduler := &recordingScheduler{}

	return services.NewWorkflow(store, reg, log.Discard(), services.WithAudioScheduler(scheduler)), scheduler
}

func handle(h string) *string {
	return &h
}

func menuWorkflow() *models.Workflow {
	return &models.Workflow{
		TenantID: "acme",
		Name:     "Main menu",
		Nodes: []*models.Node{
			models.NewNode("welcome", models.NodeTypeGreeting, &models.GreetingData{Text: "Welcome"}),
			models.NewNode("menu", models.NodeTypeInput, &models.InputData{Prompt: "Press 1", NumDigits: 1}),
			models.NewNode("bye", models.NodeTypeEnd, &models.EndData{
				AudioFields: models.AudioFields{AudioURL: "https://cdn.example.com/bye.mp3"},
				Message:     "Goodbye",
			}),
		},
		Edges: []*models.Edge{
			{Source: "welcome", Target: "menu"},
			{Source: "menu", Target: "bye", SourceHandle: handle("1")},
		},
	}
}

func TestWorkflow_Create(t *testing.T) {
	t.Parallel()

	service, scheduler := newService(t)

	created, err := service.Create(context.Background(), menuWorkflow())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.Equal(t, int64(1), created.Revision)
	assert.False(t, created.CreatedAt.IsZero())

	for _, edge := range created.Edges {
		assert.NotEmpty(t, edge.ID)
	}

	jobs := scheduler.scheduled()
	require.Len(t, jobs, 1)
	assert.Equal(t, created.ID, jobs[0].workflowID)
	assert.Equal(t, []string{"welcome", "menu"}, jobs[0].nodeIDs)
}

func TestWorkflow_CreateRejectsInvalidGraphs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*models.Workflow)
		expected error
	}{
		{
			name:     "nil workflow",
			expected: services.ErrWorkflowNil,
		},
		{
			name:     "missing name",
			mutate:   func(w *models.Workflow) { w.Name = "" },
			expected: services.ErrWorkflowNameRequired,
		},
		{
			name:     "missing tenant",
			mutate:   func(w *models.Workflow) { w.TenantID = "" },
			expected: services.ErrTenantRequired,
		},
		{
			name: "ambiguous branch",
			mutate: func(w *models.Workflow) {
				w.Edges = append(w.Edges, &models.Edge{Source: "menu", Target: "welcome", SourceHandle: handle("1")})
			},
			expected: services.ErrInvalidGraph,
		},
		{
			name: "schema violation",
			mutate: func(w *models.Workflow) {
				w.Nodes = append(w.Nodes, models.NewNode("q", models.NodeTypeQueue, &models.QueueData{}))
			},
			expected: services.ErrInvalidGraph,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			service, scheduler := newService(t)

			var workflow *models.Workflow
			if tt.mutate != nil {
				workflow = menuWorkflow()
				tt.mutate(workflow)
			}

			_, err := service.Create(context.Background(), workflow)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			assert.True(t, services.IsValidationError(err))
			assert.Empty(t, scheduler.scheduled())
		})
	}
}

func TestWorkflow_InvalidGraphDetails(t *testing.T) {
	t.Parallel()

	service, _ := newService(t)

	workflow := menuWorkflow()
	workflow.Edges = append(workflow.Edges, &models.Edge{ID: "e9", Source: "menu", Target: "ghost"})

	_, err := service.Create(context.Background(), workflow)

	var serviceErr *services.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "INVALID_GRAPH", serviceErr.Code)
	assert.Contains(t, serviceErr.Details, "edge e9 references unknown target ghost")
}

func TestWorkflow_ReplaceGraph(t *testing.T) {
	t.Parallel()

	service, scheduler := newService(t)

	created, err := service.Create(context.Background(), menuWorkflow())
	require.NoError(t, err)

	t.Run("stale revision", func(t *testing.T) {
		_, err := service.ReplaceGraph(context.Background(), created.ID, services.ReplaceGraphRequest{
			Nodes:    menuWorkflow().Nodes,
			Revision: created.Revision + 5,
		})
		assert.ErrorIs(t, err, persistence.ErrRevisionConflict)
		assert.True(t, services.IsConflictError(err))
	})

	t.Run("keeps audio of unchanged prompts", func(t *testing.T) {
		graph := menuWorkflow()
		graph.Nodes[2] = models.NewNode("bye", models.NodeTypeEnd, &models.EndData{Message: "Goodbye"})
		graph.Nodes[0] = models.NewNode("welcome", models.NodeTypeGreeting, &models.GreetingData{Text: "Hello there"})

		updated, err := service.ReplaceGraph(context.Background(), created.ID, services.ReplaceGraphRequest{
			Name:     "Main menu v2",
			Nodes:    graph.Nodes,
			Edges:    graph.Edges,
			Revision: created.Revision,
		})
		require.NoError(t, err)
		assert.Equal(t, "Main menu v2", updated.Name)
		assert.Equal(t, created.Revision+1, updated.Revision)

		bye, ok := updated.NodeByID("bye")
		require.True(t, ok)
		assert.Equal(t, "https://cdn.example.com/bye.mp3", bye.AudioURL)

		jobs := scheduler.scheduled()
		assert.Equal(t, []string{"welcome", "menu"}, jobs[len(jobs)-1].nodeIDs)
	})
}

func TestWorkflow_UpdateNode(t *testing.T) {
	t.Parallel()

	service, _ := newService(t)

	created, err := service.Create(context.Background(), menuWorkflow())
	require.NoError(t, err)

	t.Run("changed prompt drops audio", func(t *testing.T) {
		data, err := json.Marshal(map[string]any{"message": "See you soon"})
		require.NoError(t, err)

		updated, err := service.UpdateNode(context.Background(), created.ID, "bye", services.UpdateNodeRequest{
			Data:     data,
			Revision: created.Revision,
		})
		require.NoError(t, err)

		bye, _ := updated.NodeByID("bye")
		assert.Equal(t, "See you soon", bye.Data.(*models.EndData).Message)
		assert.False(t, bye.HasAudio())
	})

	t.Run("type cannot change", func(t *testing.T) {
		current, err := service.FetchByID(context.Background(), created.ID)
		require.NoError(t, err)

		_, err = service.UpdateNode(context.Background(), created.ID, "bye", services.UpdateNodeRequest{
			Type:     models.NodeTypeGreeting,
			Data:     json.RawMessage(`{"text":"Hi"}`),
			Revision: current.Revision,
		})
		assert.ErrorIs(t, err, services.ErrNodeTypeChanged)
	})

	t.Run("unknown node", func(t *testing.T) {
		current, err := service.FetchByID(context.Background(), created.ID)
		require.NoError(t, err)

		_, err = service.UpdateNode(context.Background(), created.ID, "ghost", services.UpdateNodeRequest{
			Data:     json.RawMessage(`{}`),
			Revision: current.Revision,
		})
		assert.ErrorIs(t, err, persistence.ErrNodeNotFound)
	})
}

func TestWorkflow_SetStatus(t *testing.T) {
	t.Parallel()

	service, _ := newService(t)

	created, err := service.Create(context.Background(), menuWorkflow())
	require.NoError(t, err)

	active, err := service.SetStatus(context.Background(), created.ID, models.WorkflowStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, active.Status)

	status := models.WorkflowStatusActive
	listed, err := service.List(context.Background(), services.ListWorkflowsRequest{TenantID: "acme", Status: &status})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	_, err = service.SetStatus(context.Background(), created.ID, "archived")
	assert.ErrorIs(t, err, services.ErrInvalidStatus)

	empty, err := service.Create(context.Background(), &models.Workflow{TenantID: "acme", Name: "Empty flow"})
	require.NoError(t, err)

	_, err = service.SetStatus(context.Background(), empty.ID, models.WorkflowStatusActive)
	assert.ErrorIs(t, err, services.ErrNodesRequired)
	assert.True(t, services.IsActivationError(err))
}

func TestWorkflow_Validate(t *testing.T) {
	t.Parallel()

	service, _ := newService(t)

	created, err := service.Create(context.Background(), menuWorkflow())
	require.NoError(t, err)

	report, err := service.Validate(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid())
	assert.NotEmpty(t, report.Warnings)

	_, err = service.Validate(context.Background(), "ghost")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflow_HealthCheck(t *testing.T) {
	t.Parallel()

	service, _ := newService(t)

	message, ok := service.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)
}

func TestWorkflow_Import(t *testing.T) {
	t.Parallel()

	service, _ := newService(t)
	ctx := context.Background()

	definition := menuWorkflow()
	definition.ID = "wf-imported"
	definition.Status = models.WorkflowStatusActive

	created, isNew, err := service.Import(ctx, definition)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "wf-imported", created.ID)
	assert.Equal(t, models.WorkflowStatusActive, created.Status)

	again := menuWorkflow()
	again.ID = "wf-imported"
	again.Name = "Main menu v2"
	again.Status = models.WorkflowStatusInactive

	updated, isNew, err := service.Import(ctx, again)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "Main menu v2", updated.Name)
	assert.Equal(t, models.WorkflowStatusInactive, updated.Status)
	assert.Greater(t, updated.Revision, created.Revision)

	_, _, err = service.Import(ctx, nil)
	assert.ErrorIs(t, err, services.ErrWorkflowNil)
}

func TestWorkflow_ValidateDefinition(t *testing.T) {
	t.Parallel()

	service, _ := newService(t)

	workflow := menuWorkflow()
	workflow.Nodes = append(workflow.Nodes, models.NewNode("q", models.NodeTypeQueue, &models.QueueData{}))

	report, err := service.ValidateDefinition(workflow)
	require.NoError(t, err)
	assert.False(t, report.Valid())
}
