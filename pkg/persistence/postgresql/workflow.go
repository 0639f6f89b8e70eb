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

// WorkflowRepository stores the graph of a workflow as JSONB columns next to its metadata.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `id, tenant_id, name, description, status, config, nodes, edges, revision, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow             models.Workflow
		config, nodes, edges []byte
		createdAt, updatedAt time.Time
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.TenantID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Status,
		&config,
		&nodes,
		&edges,
		&workflow.Revision,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(config, &workflow.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config of workflow %s: %w", workflow.ID, err)
	}

	if err := json.Unmarshal(nodes, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes of workflow %s: %w", workflow.ID, err)
	}

	if err := json.Unmarshal(edges, &workflow.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges of workflow %s: %w", workflow.ID, err)
	}

	workflow.CreatedAt = createdAt.UTC()
	workflow.UpdatedAt = updatedAt.UTC()

	return &workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+workflowColumns+` FROM workflows ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	workflows := []*models.Workflow{}

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, rows.Err()
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) ActiveByTenant(ctx context.Context, tenantID string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+workflowColumns+` FROM workflows
		WHERE tenant_id = $1 AND status = $2
		ORDER BY updated_at DESC
		LIMIT 1`, tenantID, models.WorkflowStatusActive)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("ActiveByTenant", tenantID, persistence.ErrActiveWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("ActiveByTenant", tenantID, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	config, err := json.Marshal(workflow.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	nodes, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}

	edges, err := json.Marshal(workflow.Edges)
	if err != nil {
		return fmt.Errorf("failed to marshal edges: %w", err)
	}

	if workflow.Nodes == nil {
		nodes = []byte("[]")
	}

	if workflow.Edges == nil {
		edges = []byte("[]")
	}

	now := time.Now().UTC()

	if workflow.Revision == 0 {
		if workflow.CreatedAt.IsZero() {
			workflow.CreatedAt = now
		}

		result, err := r.db.ExecContext(ctx, `
			INSERT INTO workflows (`+workflowColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10)
			ON CONFLICT (id) DO NOTHING`,
			workflow.ID, workflow.TenantID, workflow.Name, workflow.Description, workflow.Status,
			config, nodes, edges, workflow.CreatedAt, now,
		)
		if err != nil {
			return persistence.NewWorkflowError("Save", workflow.ID, err)
		}

		if affected, _ := result.RowsAffected(); affected == 0 {
			return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrRevisionConflict)
		}

		workflow.Revision = 1
		workflow.UpdatedAt = now

		return nil
	}

	var createdAt time.Time

	err = r.db.QueryRowContext(ctx, `
		UPDATE workflows
		SET tenant_id = $1, name = $2, description = $3, status = $4, config = $5, nodes = $6, edges = $7,
			revision = revision + 1, updated_at = $8
		WHERE id = $9 AND revision = $10
		RETURNING created_at`,
		workflow.TenantID, workflow.Name, workflow.Description, workflow.Status, config, nodes, edges,
		now, workflow.ID, workflow.Revision,
	).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.classifyMiss(ctx, "Save", workflow.ID)
		}

		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	workflow.Revision++
	workflow.CreatedAt = createdAt.UTC()
	workflow.UpdatedAt = now

	return nil
}

// classifyMiss tells a stale revision apart from a missing row after a conditional update matched nothing.
func (r *WorkflowRepository) classifyMiss(ctx context.Context, op, id string) error {
	var exists bool

	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return persistence.NewWorkflowError(op, id, err)
	}

	if exists {
		return persistence.NewWorkflowError(op, id, persistence.ErrRevisionConflict)
	}

	return persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
}

func (r *WorkflowRepository) UpdateNodeAudio(ctx context.Context, workflowID, nodeID string, audio models.NodeAudio) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte

	err = tx.QueryRowContext(ctx, `SELECT nodes FROM workflows WHERE id = $1 FOR UPDATE`, workflowID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, persistence.NewWorkflowError("UpdateNodeAudio", workflowID, persistence.ErrWorkflowNotFound)
		}

		return 0, persistence.NewWorkflowError("UpdateNodeAudio", workflowID, err)
	}

	var nodes []*models.Node
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return 0, fmt.Errorf("failed to unmarshal nodes of workflow %s: %w", workflowID, err)
	}

	var target *models.Node

	for _, node := range nodes {
		if node.ID == nodeID {
			target = node

			break
		}
	}

	if target == nil {
		return 0, persistence.NewNodeError("UpdateNodeAudio", workflowID, nodeID, persistence.ErrNodeNotFound)
	}

	target.SetAudio(audio)

	updated, err := json.Marshal(nodes)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal nodes of workflow %s: %w", workflowID, err)
	}

	var revision int64

	err = tx.QueryRowContext(ctx, `
		UPDATE workflows SET nodes = $1, revision = revision + 1, updated_at = $2
		WHERE id = $3
		RETURNING revision`, updated, time.Now().UTC(), workflowID).Scan(&revision)
	if err != nil {
		return 0, persistence.NewNodeError("UpdateNodeAudio", workflowID, nodeID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit node audio update: %w", err)
	}

	return revision, nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}
