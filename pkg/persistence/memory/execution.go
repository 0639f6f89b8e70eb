package memory

import (
	"context"
	"fmt"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	memdb "github.com/hashicorp/go-memdb"
)

type ExecutionRepository struct {
	db *memdb.MemDB
}

func (r *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableExecutions, "id", execution.CallID)
	if err != nil {
		return fmt.Errorf("failed to read execution %s: %w", execution.CallID, err)
	}

	if raw != nil {
		return persistence.NewExecutionError("Create", execution.CallID, persistence.ErrDuplicateCall)
	}

	execution.Version = 1

	if err := r.insert(txn, execution); err != nil {
		return err
	}

	txn.Commit()

	return nil
}

func (r *ExecutionRepository) GetByCallID(_ context.Context, callID string) (*models.Execution, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableExecutions, "id", callID)
	if err != nil {
		return nil, fmt.Errorf("failed to read execution %s: %w", callID, err)
	}

	if raw == nil {
		return nil, persistence.NewExecutionError("GetByCallID", callID, persistence.ErrExecutionNotFound)
	}

	return raw.(*models.Execution).Clone()
}

func (r *ExecutionRepository) Update(_ context.Context, execution *models.Execution) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableExecutions, "id", execution.CallID)
	if err != nil {
		return fmt.Errorf("failed to read execution %s: %w", execution.CallID, err)
	}

	if raw == nil {
		return persistence.NewExecutionError("Update", execution.CallID, persistence.ErrExecutionNotFound)
	}

	if stored := raw.(*models.Execution); stored.Version != execution.Version {
		return persistence.NewExecutionError("Update", execution.CallID, persistence.ErrVersionConflict)
	}

	execution.Version++

	if err := r.insert(txn, execution); err != nil {
		execution.Version--

		return err
	}

	txn.Commit()

	return nil
}

func (r *ExecutionRepository) ListByStatus(_ context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableExecutions, "status", string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	executions := []*models.Execution{}

	for obj := it.Next(); obj != nil; obj = it.Next() {
		clone, err := obj.(*models.Execution).Clone()
		if err != nil {
			return nil, err
		}

		executions = append(executions, clone)
	}

	return executions, nil
}

func (r *ExecutionRepository) Delete(_ context.Context, callID string) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableExecutions, "id", callID)
	if err != nil {
		return fmt.Errorf("failed to read execution %s: %w", callID, err)
	}

	if raw == nil {
		return persistence.NewExecutionError("Delete", callID, persistence.ErrExecutionNotFound)
	}

	if err := txn.Delete(tableExecutions, raw); err != nil {
		return fmt.Errorf("failed to delete execution %s: %w", callID, err)
	}

	txn.Commit()

	return nil
}

func (r *ExecutionRepository) insert(txn *memdb.Txn, execution *models.Execution) error {
	clone, err := execution.Clone()
	if err != nil {
		return err
	}

	if err := txn.Insert(tableExecutions, clone); err != nil {
		return fmt.Errorf("failed to store execution %s: %w", execution.CallID, err)
	}

	return nil
}
