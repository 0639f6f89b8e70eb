// Package janitor periodically ends abandoned calls and prunes finished audio jobs.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/ivrflow/pkg/eventbus"
	"github.com/dukex/ivrflow/pkg/events"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/metrics"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule     = "@every 5m"
	DefaultStaleAfter   = 2 * time.Hour
	DefaultJobRetention = 7 * 24 * time.Hour

	// StaleReason is recorded as the end reason of executions the platform never closed.
	StaleReason = "stale"
)

var ErrAlreadyStarted = errors.New("janitor already started")

type Config struct {
	// Schedule is a cron expression, with optional seconds field, or a descriptor such as "@every 5m".
	Schedule     string
	StaleAfter   time.Duration
	JobRetention time.Duration
}

func (c Config) withDefaults() Config {
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}

	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}

	if c.JobRetention <= 0 {
		c.JobRetention = DefaultJobRetention
	}

	return c
}

// Report summarizes one sweep.
type Report struct {
	ExpiredCalls []string
	PrunedJobs   int
}

type Janitor struct {
	config     Config
	executions persistence.ExecutionRepository
	store      *execution.Store
	jobs       persistence.AudioJobRepository
	publisher  eventbus.EventPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

type Option func(*Janitor)

func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(j *Janitor) {
		j.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Janitor) {
		j.metrics = m
	}
}

func New(
	config Config,
	executions persistence.ExecutionRepository,
	store *execution.Store,
	jobs persistence.AudioJobRepository,
	logger *slog.Logger,
	opts ...Option,
) *Janitor {
	j := &Janitor{
		config:     config.withDefaults(),
		executions: executions,
		store:      store,
		jobs:       jobs,
		publisher:  eventbus.Discard{},
		logger:     logger.With("module", "janitor"),
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

// ParseSchedule accepts both 6-field (with seconds) and standard 5-field expressions.
func ParseSchedule(expr string) (cron.Schedule, error) {
	withSeconds := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if schedule, err := withSeconds.Parse(expr); err == nil {
		return schedule, nil
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", expr, err)
	}

	return schedule, nil
}

// Start runs Sweep on the configured schedule until ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	schedule, err := ParseSchedule(j.config.Schedule)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return ErrAlreadyStarted
	}

	cronLogger := slogAdapter{logger: j.logger}
	j.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	j.cron.Schedule(schedule, cron.FuncJob(func() {
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.ErrorContext(ctx, "sweep failed", "error", err)
		}
	}))

	j.cron.Start()
	j.logger.Info("janitor started", "schedule", j.config.Schedule)

	return nil
}

// Stop halts the scheduler and waits for a running sweep, bounded by ctx.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) Sweep(ctx context.Context) (Report, error) {
	var report Report

	expired, expireErr := j.expireStaleCalls(ctx)
	report.ExpiredCalls = expired

	pruned, pruneErr := j.jobs.DeleteFinishedBefore(ctx, j.store.Now().Add(-j.config.JobRetention))
	if pruneErr != nil {
		pruneErr = fmt.Errorf("failed to prune audio jobs: %w", pruneErr)
	}

	report.PrunedJobs = pruned

	if len(expired) > 0 || pruned > 0 {
		j.logger.InfoContext(ctx, "sweep finished", "expired_calls", len(expired), "pruned_jobs", pruned)
	}

	return report, errors.Join(expireErr, pruneErr)
}

func (j *Janitor) expireStaleCalls(ctx context.Context) ([]string, error) {
	active, err := j.executions.ListByStatus(ctx, models.ExecutionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active executions: %w", err)
	}

	now := j.store.Now()
	expired := []string{}

	var errs []error

	for _, exec := range active {
		if exec.Duration(now) < j.config.StaleAfter {
			continue
		}

		ended, err := j.store.EndExecution(ctx, exec.CallID, models.ExecutionStatusTimeout, StaleReason, nil)
		if err != nil {
			if persistence.IsExecutionNotFound(err) {
				continue
			}

			errs = append(errs, fmt.Errorf("call %s: %w", exec.CallID, err))

			continue
		}

		// Ended concurrently by a status webhook.
		if ended.EndReason != StaleReason {
			continue
		}

		expired = append(expired, exec.CallID)

		j.metrics.CallEnded(string(ended.Status))
		eventbus.PublishBestEffort(ctx, j.logger, j.publisher, ended.CallID, events.NewCallEnded(ended))
	}

	return expired, errors.Join(errs...)
}

// slogAdapter lets cron report panics and skipped runs through slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...any) {
	a.logger.Error(msg, append(keysAndValues, "error", err)...)
}
