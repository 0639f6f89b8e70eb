package execution_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/log"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/dukex/ivrflow/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, repo persistence.ExecutionRepository) (*execution.Store, *time.Time) {
	t.Helper()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	store := execution.NewStore(repo, log.Discard(), execution.WithClock(func() time.Time {
		return now
	}))

	return store, &now
}

func memoryRepo(t *testing.T) persistence.ExecutionRepository {
	t.Helper()

	p, err := memory.NewPersistence()
	require.NoError(t, err)

	return p.ExecutionRepository()
}

func create(t *testing.T, store *execution.Store, callID string) *models.Execution {
	t.Helper()

	created, err := store.CreateExecution(context.Background(), execution.CreateParams{
		CallID:     callID,
		WorkflowID: "wf-1",
		TenantID:   "acme",
		Caller:     "+15551110000",
		Callee:     "+15552220000",
	})
	require.NoError(t, err)

	return created
}

func TestStore_CreateExecution(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, memoryRepo(t))
	created := create(t, store, "CA1")

	assert.Equal(t, models.ExecutionStatusActive, created.Status)
	assert.Empty(t, created.VisitedNodes)
	assert.Equal(t, int64(1), created.Version)

	_, err := store.CreateExecution(context.Background(), execution.CreateParams{CallID: "CA1"})
	assert.ErrorIs(t, err, persistence.ErrDuplicateCall)
}

func TestStore_RecordNodeVisit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newStore(t, memoryRepo(t))
	create(t, store, "CA1")

	_, err := store.RecordNodeVisit(ctx, "CA1", execution.Visit{NodeID: "welcome", NodeType: models.NodeTypeGreeting, Success: true})
	require.NoError(t, err)

	updated, err := store.RecordNodeVisit(ctx, "CA1", execution.Visit{
		NodeID:   "menu",
		NodeType: models.NodeTypeInput,
		Input:    "9",
		Err:      errors.New("no match"),
	})
	require.NoError(t, err)

	assert.Equal(t, "menu", updated.CurrentNodeID)
	assert.Equal(t, 2, updated.NodeExecutionCount)
	require.Len(t, updated.VisitedNodes, 2)
	assert.Equal(t, "9", updated.VisitedNodes[1].Input)
	assert.Equal(t, "no match", updated.VisitedNodes[1].Error)
	assert.False(t, updated.VisitedNodes[1].Success)

	_, err = store.RecordNodeVisit(ctx, "CA-missing", execution.Visit{NodeID: "menu"})
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestStore_Variables(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newStore(t, memoryRepo(t))
	create(t, store, "CA1")

	_, err := store.SetVariable(ctx, "CA1", "tier", "gold")
	require.NoError(t, err)

	value, ok, err := store.GetVariable(ctx, "CA1", "tier")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gold", value)

	_, ok, err = store.GetVariable(ctx, "CA1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	first, err := store.IncrementCounter(ctx, "CA1", "attempts:menu")
	require.NoError(t, err)

	second, err := store.IncrementCounter(ctx, "CA1", "attempts:menu")
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestStore_EndExecution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, now := newStore(t, memoryRepo(t))
	create(t, store, "CA1")

	*now = now.Add(90 * time.Second)

	ended, err := store.EndExecution(ctx, "CA1", models.ExecutionStatusCompleted, "caller hung up", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, ended.Status)
	assert.Equal(t, int64(90000), ended.DurationMillis)
	require.NotNil(t, ended.EndedAt)

	again, err := store.EndExecution(ctx, "CA1", models.ExecutionStatusFailed, "late status", errors.New("boom"))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, again.Status)
	assert.Equal(t, "caller hung up", again.EndReason)
	assert.Empty(t, again.Error)
	assert.Equal(t, ended.Version, again.Version)
}

type conflictingRepo struct {
	persistence.ExecutionRepository

	conflicts int
}

func (r *conflictingRepo) Update(ctx context.Context, e *models.Execution) error {
	if r.conflicts > 0 {
		r.conflicts--

		return persistence.NewExecutionError("Update", e.CallID, persistence.ErrVersionConflict)
	}

	return r.ExecutionRepository.Update(ctx, e)
}

func TestStore_RetriesVersionConflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &conflictingRepo{ExecutionRepository: memoryRepo(t)}
	store, _ := newStore(t, repo)
	create(t, store, "CA1")

	repo.conflicts = 2

	updated, err := store.SetVariable(ctx, "CA1", "lang", "es")
	require.NoError(t, err)
	assert.Equal(t, "es", updated.Variables["lang"])

	repo.conflicts = 100

	_, err = store.SetVariable(ctx, "CA1", "lang", "en")
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err))
}

func TestTransition(t *testing.T) {
	t.Parallel()

	e := models.NewExecution("CA1", "wf", "t", "", "", time.Now())

	require.NoError(t, execution.Transition(e, models.ExecutionStatusTimeout))
	assert.Equal(t, models.ExecutionStatusTimeout, e.Status)

	err := execution.Transition(e, models.ExecutionStatusCompleted)
	require.ErrorIs(t, err, execution.ErrInvalidTransition)

	err = execution.Transition(models.NewExecution("CA2", "wf", "t", "", "", time.Now()), models.ExecutionStatusActive)
	require.ErrorIs(t, err, execution.ErrInvalidTransition)
}
