package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
)

// ExecutionRepository keeps the execution document in JSONB with the version in its own column.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	execution.Version = 1

	document, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.CallID, err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO executions (call_id, workflow_id, tenant_id, status, document, version, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
		ON CONFLICT (call_id) DO NOTHING`,
		execution.CallID, execution.WorkflowID, execution.TenantID, execution.Status, document,
		execution.StartedAt, time.Now().UTC(),
	)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.CallID, err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return persistence.NewExecutionError("Create", execution.CallID, persistence.ErrDuplicateCall)
	}

	return nil
}

func (r *ExecutionRepository) GetByCallID(ctx context.Context, callID string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, `SELECT document, version FROM executions WHERE call_id = $1`, callID)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByCallID", callID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByCallID", callID, err)
	}

	return execution, nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		document []byte
		version  int64
	)

	if err := row.Scan(&document, &version); err != nil {
		return nil, err
	}

	var execution models.Execution
	if err := json.Unmarshal(document, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}

	execution.Version = version

	if execution.Variables == nil {
		execution.Variables = map[string]any{}
	}

	if execution.Counters == nil {
		execution.Counters = map[string]int{}
	}

	return &execution, nil
}

func (r *ExecutionRepository) Update(ctx context.Context, execution *models.Execution) error {
	expected := execution.Version
	execution.Version++

	document, err := json.Marshal(execution)
	if err != nil {
		execution.Version = expected

		return fmt.Errorf("failed to marshal execution %s: %w", execution.CallID, err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE executions SET status = $1, document = $2, version = version + 1, updated_at = $3
		WHERE call_id = $4 AND version = $5`,
		execution.Status, document, time.Now().UTC(), execution.CallID, expected,
	)
	if err != nil {
		execution.Version = expected

		return persistence.NewExecutionError("Update", execution.CallID, err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		execution.Version = expected

		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM executions WHERE call_id = $1)`, execution.CallID).Scan(&exists); err != nil {
			return persistence.NewExecutionError("Update", execution.CallID, err)
		}

		if !exists {
			return persistence.NewExecutionError("Update", execution.CallID, persistence.ErrExecutionNotFound)
		}

		return persistence.NewExecutionError("Update", execution.CallID, persistence.ErrVersionConflict)
	}

	return nil
}

func (r *ExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT document, version FROM executions WHERE status = $1 ORDER BY started_at`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	executions := []*models.Execution{}

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

func (r *ExecutionRepository) Delete(ctx context.Context, callID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM executions WHERE call_id = $1`, callID)
	if err != nil {
		return persistence.NewExecutionError("Delete", callID, err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return persistence.NewExecutionError("Delete", callID, persistence.ErrExecutionNotFound)
	}

	return nil
}
