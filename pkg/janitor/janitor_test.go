package janitor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/events"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/janitor"
	"github.com/dukex/ivrflow/pkg/log"
	"github.com/dukex/ivrflow/pkg/mocks"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type fixture struct {
	janitor *janitor.Janitor
	store   *execution.Store
	clock   *clock
	p       *memory.Persistence
}

func newFixture(t *testing.T, config janitor.Config) *fixture {
	t.Helper()

	p, err := memory.NewPersistence()
	require.NoError(t, err)

	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := execution.NewStore(p.ExecutionRepository(), log.Discard(), execution.WithClock(c.Now))

	return &fixture{
		janitor: janitor.New(config, p.ExecutionRepository(), store, p.AudioJobRepository(), log.Discard()),
		store:   store,
		clock:   c,
		p:       p,
	}
}

func (f *fixture) call(t *testing.T, callID string) {
	t.Helper()

	_, err := f.store.CreateExecution(context.Background(), execution.CreateParams{
		CallID:     callID,
		WorkflowID: "wf-main",
		TenantID:   "acme",
	})
	require.NoError(t, err)
}

func (f *fixture) job(t *testing.T, id string, status models.AudioJobStatus, finishedAgo time.Duration) {
	t.Helper()

	job := &models.AudioJob{ID: id, WorkflowID: "wf-main", Status: status, CreatedAt: f.clock.Now()}
	if status.IsTerminal() {
		finished := f.clock.Now().Add(-finishedAgo)
		job.FinishedAt = &finished
	}

	require.NoError(t, f.p.AudioJobRepository().Save(context.Background(), job))
}

func TestJanitor_Sweep(t *testing.T) {
	t.Parallel()

	f := newFixture(t, janitor.Config{StaleAfter: 2 * time.Hour, JobRetention: 24 * time.Hour})

	f.call(t, "CA-old")
	f.call(t, "CA-done")
	_, err := f.store.EndExecution(context.Background(), "CA-done", models.ExecutionStatusCompleted, "hangup", nil)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Hour)
	f.call(t, "CA-fresh")

	f.job(t, "job-old", models.AudioJobCompleted, 48*time.Hour)
	f.job(t, "job-recent", models.AudioJobPartial, time.Hour)
	f.job(t, "job-running", models.AudioJobProcessing, 0)

	report, err := f.janitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CA-old"}, report.ExpiredCalls)
	assert.Equal(t, 1, report.PrunedJobs)

	old, err := f.store.GetExecution(context.Background(), "CA-old")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusTimeout, old.Status)
	assert.Equal(t, janitor.StaleReason, old.EndReason)

	done, err := f.store.GetExecution(context.Background(), "CA-done")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, done.Status)

	fresh, err := f.store.GetExecution(context.Background(), "CA-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusActive, fresh.Status)

	jobs, err := f.p.AudioJobRepository().ListByWorkflow(context.Background(), "wf-main")
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	again, err := f.janitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.ExpiredCalls)
	assert.Zero(t, again.PrunedJobs)
}

func TestJanitor_PublishesCallEnded(t *testing.T) {
	t.Parallel()

	p, err := memory.NewPersistence()
	require.NoError(t, err)

	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := execution.NewStore(p.ExecutionRepository(), log.Discard(), execution.WithClock(c.Now))

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "CA-old", mocks.EventOfType(events.CallEndedEvent)).Return(nil).Once()

	j := janitor.New(janitor.Config{StaleAfter: time.Minute}, p.ExecutionRepository(), store, p.AudioJobRepository(),
		log.Discard(), janitor.WithPublisher(bus))

	_, err = store.CreateExecution(context.Background(), execution.CreateParams{CallID: "CA-old", WorkflowID: "wf-main"})
	require.NoError(t, err)

	c.Advance(time.Hour)

	report, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CA-old"}, report.ExpiredCalls)
	bus.AssertExpectations(t)
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr  string
		valid bool
	}{
		{"@every 5m", true},
		{"*/15 * * * *", true},
		{"0 */5 * * * *", true},
		{"@hourly", true},
		{"not a schedule", false},
		{"61 * * * *", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			_, err := janitor.ParseSchedule(tt.expr)
			assert.Equal(t, tt.valid, err == nil, err)
		})
	}
}

func TestJanitor_StartStop(t *testing.T) {
	t.Parallel()

	t.Run("invalid schedule", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, janitor.Config{Schedule: "sometimes"})
		assert.Error(t, f.janitor.Start(context.Background()))
	})

	t.Run("sweeps on schedule", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, janitor.Config{Schedule: "* * * * * *", StaleAfter: time.Minute})
		f.call(t, "CA-old")
		f.clock.Advance(time.Hour)

		require.NoError(t, f.janitor.Start(context.Background()))
		assert.ErrorIs(t, f.janitor.Start(context.Background()), janitor.ErrAlreadyStarted)

		assert.Eventually(t, func() bool {
			exec, err := f.store.GetExecution(context.Background(), "CA-old")
			return err == nil && exec.Status == models.ExecutionStatusTimeout
		}, 5*time.Second, 50*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		require.NoError(t, f.janitor.Stop(ctx))
		require.NoError(t, f.janitor.Stop(ctx))
	})
}
