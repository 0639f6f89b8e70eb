// Package persistence defines the storage contracts for workflows, call executions and audio jobs.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	AudioJobRepository() AudioJobRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores call flow graphs.
type WorkflowRepository interface {
	List(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// ActiveByTenant returns the most recently updated active workflow of a tenant.
	ActiveByTenant(ctx context.Context, tenantID string) (*models.Workflow, error)
	// Save creates the workflow or replaces it when workflow.Revision matches the stored revision.
	// On success workflow.Revision holds the new revision.
	Save(ctx context.Context, workflow *models.Workflow) error
	// UpdateNodeAudio writes the audio fields of a single node and bumps the revision,
	// leaving every other node untouched.
	UpdateNodeAudio(ctx context.Context, workflowID, nodeID string, audio models.NodeAudio) (int64, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores per-call state. Update is rejected when the version is stale.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	GetByCallID(ctx context.Context, callID string) (*models.Execution, error)
	// Update persists execution if execution.Version matches the stored version, then increments it.
	Update(ctx context.Context, execution *models.Execution) error
	ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error)
	Delete(ctx context.Context, callID string) error
}

type AudioJobRepository interface {
	Save(ctx context.Context, job *models.AudioJob) error
	GetByID(ctx context.Context, id string) (*models.AudioJob, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.AudioJob, error)
	// DeleteFinishedBefore removes terminal jobs that finished before the cutoff.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// WithExecutionRepository overrides the execution store of p, e.g. to keep call state in redis.
func WithExecutionRepository(p Persistence, executions ExecutionRepository) Persistence {
	return &composite{Persistence: p, executions: executions}
}

type composite struct {
	Persistence

	executions ExecutionRepository
}

func (c *composite) ExecutionRepository() ExecutionRepository {
	return c.executions
}

func (c *composite) Close(ctx context.Context) error {
	if closer, ok := c.executions.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}

	return c.Persistence.Close(ctx)
}
