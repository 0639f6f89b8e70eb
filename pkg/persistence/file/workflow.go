package file

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	mu    sync.Mutex
	store documents
}

func (wr *WorkflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.list()
}

func (wr *WorkflowRepository) list() ([]*models.Workflow, error) {
	ids, err := wr.store.ids()
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		var workflow models.Workflow

		found, err := wr.store.read(id, &workflow)
		if err != nil {
			return nil, err
		}

		if found {
			workflows = append(workflows, &workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.get("GetByID", id)
}

func (wr *WorkflowRepository) get(op, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := wr.store.read(id, &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError(op, id, err)
	}

	if !found {
		return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) ActiveByTenant(_ context.Context, tenantID string) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflows, err := wr.list()
	if err != nil {
		return nil, err
	}

	var latest *models.Workflow

	for _, workflow := range workflows {
		if workflow.TenantID != tenantID || workflow.Status != models.WorkflowStatusActive {
			continue
		}

		if latest == nil || workflow.UpdatedAt.After(latest.UpdatedAt) {
			latest = workflow
		}
	}

	if latest == nil {
		return nil, persistence.NewWorkflowError("ActiveByTenant", tenantID, persistence.ErrActiveWorkflowNotFound)
	}

	return latest, nil
}

// Save saves a workflow to the file system.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	now := time.Now().UTC()

	existing, err := wr.get("Save", workflow.ID)

	switch {
	case err == nil:
		if existing.Revision != workflow.Revision {
			return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrRevisionConflict)
		}

		workflow.CreatedAt = existing.CreatedAt
	case persistence.IsWorkflowNotFound(err):
		if workflow.CreatedAt.IsZero() {
			workflow.CreatedAt = now
		}
	default:
		return err
	}

	workflow.Revision++
	workflow.UpdatedAt = now

	if err := wr.store.write(workflow.ID, workflow); err != nil {
		workflow.Revision--

		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (wr *WorkflowRepository) UpdateNodeAudio(_ context.Context, workflowID, nodeID string, audio models.NodeAudio) (int64, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.get("UpdateNodeAudio", workflowID)
	if err != nil {
		return 0, err
	}

	node, ok := workflow.NodeByID(nodeID)
	if !ok {
		return 0, persistence.NewNodeError("UpdateNodeAudio", workflowID, nodeID, persistence.ErrNodeNotFound)
	}

	node.SetAudio(audio)
	workflow.Revision++
	workflow.UpdatedAt = time.Now().UTC()

	if err := wr.store.write(workflowID, workflow); err != nil {
		return 0, persistence.NewNodeError("UpdateNodeAudio", workflowID, nodeID, err)
	}

	return workflow.Revision, nil
}

// Delete removes a workflow by its ID.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	found, err := wr.store.remove(id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if !found {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}
