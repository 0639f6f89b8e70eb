// Package execution manages per-call execution state on top of an ExecutionRepository.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/sethvargo/go-retry"
)

const (
	defaultConflictRetries = 5
	defaultConflictBackoff = 5 * time.Millisecond
)

// Store wraps an ExecutionRepository with the operations the interpreter and the status webhook need.
// Every mutating call is a read-modify-write retried when the stored version moved underneath it.
type Store struct {
	repo    persistence.ExecutionRepository
	logger  *slog.Logger
	now     func() time.Time
	retries uint64
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithConflictRetries(retries uint64) Option {
	return func(s *Store) {
		s.retries = retries
	}
}

func NewStore(repo persistence.ExecutionRepository, logger *slog.Logger, opts ...Option) *Store {
	store := &Store{
		repo:    repo,
		logger:  logger.With("module", "execution_store"),
		now:     time.Now,
		retries: defaultConflictRetries,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Now is the store clock.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

type CreateParams struct {
	CallID     string
	WorkflowID string
	TenantID   string
	Caller     string
	Callee     string
}

func (s *Store) CreateExecution(ctx context.Context, params CreateParams) (*models.Execution, error) {
	execution := models.NewExecution(params.CallID, params.WorkflowID, params.TenantID, params.Caller, params.Callee, s.Now())

	if err := s.repo.Create(ctx, execution); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "execution created", "call_id", params.CallID, "workflow_id", params.WorkflowID)

	return execution, nil
}

func (s *Store) GetExecution(ctx context.Context, callID string) (*models.Execution, error) {
	return s.repo.GetByCallID(ctx, callID)
}

// Commit persists an execution mutated in memory. It fails with ErrVersionConflict when someone
// else wrote first.
func (s *Store) Commit(ctx context.Context, execution *models.Execution) error {
	return s.repo.Update(ctx, execution)
}

func (s *Store) RecordNodeVisit(ctx context.Context, callID string, visit Visit) (*models.Execution, error) {
	return s.mutate(ctx, callID, func(execution *models.Execution) (bool, error) {
		ApplyVisit(execution, visit, s.Now())

		return true, nil
	})
}

func (s *Store) SetVariable(ctx context.Context, callID, name string, value any) (*models.Execution, error) {
	return s.mutate(ctx, callID, func(execution *models.Execution) (bool, error) {
		SetVariable(execution, name, value)

		return true, nil
	})
}

// GetVariable returns the variable and whether it is set.
func (s *Store) GetVariable(ctx context.Context, callID, name string) (any, bool, error) {
	execution, err := s.repo.GetByCallID(ctx, callID)
	if err != nil {
		return nil, false, err
	}

	value, ok := execution.Variables[name]

	return value, ok, nil
}

func (s *Store) IncrementCounter(ctx context.Context, callID, name string) (int, error) {
	var value int

	_, err := s.mutate(ctx, callID, func(execution *models.Execution) (bool, error) {
		value = IncrementCounter(execution, name)

		return true, nil
	})

	return value, err
}

// EndExecution moves an active execution to a terminal status. Ending an already terminal execution
// is a no-op that returns the stored execution.
func (s *Store) EndExecution(ctx context.Context, callID string, status models.ExecutionStatus, reason string, cause error) (*models.Execution, error) {
	execution, err := s.mutate(ctx, callID, func(execution *models.Execution) (bool, error) {
		return ApplyEnd(execution, status, reason, cause, s.Now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "execution ended", "call_id", callID, "status", execution.Status, "reason", execution.EndReason)

	return execution, nil
}

// mutate applies fn to a fresh copy and writes it back. fn reports whether anything changed.
func (s *Store) mutate(ctx context.Context, callID string, fn func(*models.Execution) (bool, error)) (*models.Execution, error) {
	var result *models.Execution

	backoff := retry.WithMaxRetries(s.retries, retry.NewConstant(defaultConflictBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		execution, err := s.repo.GetByCallID(ctx, callID)
		if err != nil {
			return err
		}

		changed, err := fn(execution)
		if err != nil {
			return err
		}

		if changed {
			if err := s.repo.Update(ctx, execution); err != nil {
				if errors.Is(err, persistence.ErrVersionConflict) {
					return retry.RetryableError(err)
				}

				return err
			}
		}

		result = execution

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update execution %s: %w", callID, err)
	}

	return result, nil
}
