package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	memdb "github.com/hashicorp/go-memdb"
)

type WorkflowRepository struct {
	db *memdb.MemDB
}

func (r *WorkflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableWorkflows, "id")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := []*models.Workflow{}

	for obj := it.Next(); obj != nil; obj = it.Next() {
		clone, err := obj.(*models.Workflow).Clone()
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, clone)
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	workflow, err := r.get(txn, id)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow.Clone()
}

func (r *WorkflowRepository) ActiveByTenant(_ context.Context, tenantID string) (*models.Workflow, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableWorkflows, "tenant", tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant workflows: %w", err)
	}

	var active []*models.Workflow

	for obj := it.Next(); obj != nil; obj = it.Next() {
		if workflow := obj.(*models.Workflow); workflow.Status == models.WorkflowStatusActive {
			active = append(active, workflow)
		}
	}

	if len(active) == 0 {
		return nil, persistence.NewWorkflowError("ActiveByTenant", tenantID, persistence.ErrActiveWorkflowNotFound)
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].UpdatedAt.After(active[j].UpdatedAt)
	})

	return active[0].Clone()
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	now := time.Now().UTC()

	existing, err := r.get(txn, workflow.ID)

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

	clone, err := workflow.Clone()
	if err != nil {
		return err
	}

	if err := txn.Insert(tableWorkflows, clone); err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	txn.Commit()

	return nil
}

func (r *WorkflowRepository) UpdateNodeAudio(_ context.Context, workflowID, nodeID string, audio models.NodeAudio) (int64, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := r.get(txn, workflowID)
	if err != nil {
		return 0, persistence.NewWorkflowError("UpdateNodeAudio", workflowID, err)
	}

	updated, err := existing.Clone()
	if err != nil {
		return 0, err
	}

	node, ok := updated.NodeByID(nodeID)
	if !ok {
		return 0, persistence.NewNodeError("UpdateNodeAudio", workflowID, nodeID, persistence.ErrNodeNotFound)
	}

	node.SetAudio(audio)
	updated.Revision++
	updated.UpdatedAt = time.Now().UTC()

	if err := txn.Insert(tableWorkflows, updated); err != nil {
		return 0, fmt.Errorf("failed to update node audio: %w", err)
	}

	txn.Commit()

	return updated.Revision, nil
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := r.get(txn, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if err := txn.Delete(tableWorkflows, existing); err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	txn.Commit()

	return nil
}

func (r *WorkflowRepository) get(txn *memdb.Txn, id string) (*models.Workflow, error) {
	raw, err := txn.First(tableWorkflows, "id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	if raw == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	return raw.(*models.Workflow), nil
}
