package file

import (
	"context"
	"sync"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
)

// ExecutionRepository keeps one JSON file per call.
type ExecutionRepository struct {
	mu    sync.Mutex
	store documents
}

func (er *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	var existing models.Execution

	found, err := er.store.read(execution.CallID, &existing)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.CallID, err)
	}

	if found {
		return persistence.NewExecutionError("Create", execution.CallID, persistence.ErrDuplicateCall)
	}

	execution.Version = 1

	if err := er.store.write(execution.CallID, execution); err != nil {
		return persistence.NewExecutionError("Create", execution.CallID, err)
	}

	return nil
}

func (er *ExecutionRepository) GetByCallID(_ context.Context, callID string) (*models.Execution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	return er.get("GetByCallID", callID)
}

func (er *ExecutionRepository) get(op, callID string) (*models.Execution, error) {
	var execution models.Execution

	found, err := er.store.read(callID, &execution)
	if err != nil {
		return nil, persistence.NewExecutionError(op, callID, err)
	}

	if !found {
		return nil, persistence.NewExecutionError(op, callID, persistence.ErrExecutionNotFound)
	}

	if execution.Variables == nil {
		execution.Variables = map[string]any{}
	}

	if execution.Counters == nil {
		execution.Counters = map[string]int{}
	}

	return &execution, nil
}

func (er *ExecutionRepository) Update(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.get("Update", execution.CallID)
	if err != nil {
		return err
	}

	if stored.Version != execution.Version {
		return persistence.NewExecutionError("Update", execution.CallID, persistence.ErrVersionConflict)
	}

	execution.Version++

	if err := er.store.write(execution.CallID, execution); err != nil {
		execution.Version--

		return persistence.NewExecutionError("Update", execution.CallID, err)
	}

	return nil
}

func (er *ExecutionRepository) ListByStatus(_ context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	ids, err := er.store.ids()
	if err != nil {
		return nil, err
	}

	executions := []*models.Execution{}

	for _, id := range ids {
		execution, err := er.get("ListByStatus", id)
		if err != nil {
			// Skip invalid files
			continue
		}

		if execution.Status == status {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

func (er *ExecutionRepository) Delete(_ context.Context, callID string) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	found, err := er.store.remove(callID)
	if err != nil {
		return persistence.NewExecutionError("Delete", callID, err)
	}

	if !found {
		return persistence.NewExecutionError("Delete", callID, persistence.ErrExecutionNotFound)
	}

	return nil
}
