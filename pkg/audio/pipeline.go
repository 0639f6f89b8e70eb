package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/ivrflow/pkg/eventbus"
	"github.com/dukex/ivrflow/pkg/events"
	"github.com/dukex/ivrflow/pkg/metrics"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/otelhelper"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/dukex/ivrflow/pkg/template"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

var (
	ErrPipelineClosed = errors.New("audio pipeline is closed")
	ErrJobFinished    = errors.New("audio job already finished")
)

type Config struct {
	// Workers bounds how many jobs synthesize at the same time.
	Workers int64
	// JobTimeout cancels a job that has been running for too long.
	JobTimeout       time.Duration
	SynthesisTimeout time.Duration
	MaxAttempts      uint64
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:          2,
		JobTimeout:       10 * time.Minute,
		SynthesisTimeout: 30 * time.Second,
		MaxAttempts:      3,
		RetryBaseDelay:   500 * time.Millisecond,
		RetryMaxDelay:    10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}

	if c.SynthesisTimeout <= 0 {
		c.SynthesisTimeout = defaults.SynthesisTimeout
	}

	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}

	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaults.RetryBaseDelay
	}

	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaults.RetryMaxDelay
	}

	return c
}

// Pipeline runs audio jobs on a bounded set of workers and writes the produced audio back to the graph.
type Pipeline struct {
	config      Config
	workflows   persistence.WorkflowRepository
	jobs        persistence.AudioJobRepository
	synthesizer Synthesizer
	storage     AssetStorage
	logger      *slog.Logger
	publisher   eventbus.EventPublisher
	metrics     *metrics.Metrics
	tracer      trace.Tracer

	slots *semaphore.Weighted
	wg    sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
	ctx     context.Context
	stop    context.CancelFunc
}

type Option func(*Pipeline)

func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(p *Pipeline) {
		p.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

func NewPipeline(
	config Config,
	store persistence.Persistence,
	synthesizer Synthesizer,
	storage AssetStorage,
	logger *slog.Logger,
	opts ...Option,
) *Pipeline {
	config = config.withDefaults()
	ctx, stop := context.WithCancel(context.Background())

	p := &Pipeline{
		config:      config,
		workflows:   store.WorkflowRepository(),
		jobs:        store.AudioJobRepository(),
		synthesizer: synthesizer,
		storage:     storage,
		logger:      logger.With("module", "audio_pipeline"),
		publisher:   eventbus.Discard{},
		tracer:      otelhelper.NoopTracer(),
		slots:       semaphore.NewWeighted(config.Workers),
		cancels:     make(map[string]context.CancelFunc),
		ctx:         ctx,
		stop:        stop,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Enqueue records a pending job and starts it in the background. An empty nodeIDs selects every node with a prompt.
func (p *Pipeline) Enqueue(ctx context.Context, workflowID string, nodeIDs []string, force bool) (*models.AudioJob, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPipelineClosed
	}

	job := &models.AudioJob{
		ID:              uuid.NewString(),
		WorkflowID:      workflowID,
		NodeIDs:         append([]string(nil), nodeIDs...),
		ForceRegenerate: force,
		Status:          models.AudioJobPending,
		Errors:          []models.NodeFailure{},
		Degraded:        []string{},
		CreatedAt:       time.Now().UTC(),
	}

	if err := p.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save audio job: %w", err)
	}

	jobCtx, cancel := context.WithCancel(p.ctx)
	p.cancels[job.ID] = cancel

	p.logger.InfoContext(ctx, "audio job enqueued", "job_id", job.ID, "workflow_id", workflowID, "nodes", len(nodeIDs))

	p.wg.Add(1)

	go func(job *models.AudioJob) {
		defer p.wg.Done()
		defer p.forget(job.ID)

		if err := p.slots.Acquire(jobCtx, 1); err != nil {
			p.finish(jobCtx, job, "", models.AudioJobCancelled)

			return
		}
		defer p.slots.Release(1)

		runCtx, cancelRun := context.WithTimeout(jobCtx, p.config.JobTimeout)
		defer cancelRun()

		p.run(runCtx, job)
	}(job.Clone())

	return job.Clone(), nil
}

// Cancel stops a pending or running job. Nodes already written keep their audio.
func (p *Pipeline) Cancel(ctx context.Context, jobID string) error {
	p.mu.Lock()
	cancel, ok := p.cancels[jobID]
	p.mu.Unlock()

	if ok {
		cancel()

		return nil
	}

	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, jobID, job.Status)
	}

	// Left over from a previous process; nothing is running it anymore.
	job.Status = models.AudioJobCancelled
	finished := time.Now().UTC()
	job.FinishedAt = &finished

	return p.jobs.Save(ctx, job)
}

func (p *Pipeline) Job(ctx context.Context, jobID string) (*models.AudioJob, error) {
	return p.jobs.GetByID(ctx, jobID)
}

func (p *Pipeline) Jobs(ctx context.Context, workflowID string) ([]*models.AudioJob, error) {
	return p.jobs.ListByWorkflow(ctx, workflowID)
}

// Wait blocks until every enqueued job finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close refuses new jobs, cancels the running ones and waits for them to record their final state.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.stop()
	p.wg.Wait()
}

func (p *Pipeline) forget(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cancel, ok := p.cancels[jobID]; ok {
		cancel()
		delete(p.cancels, jobID)
	}
}

func (p *Pipeline) run(ctx context.Context, job *models.AudioJob) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "audio.job",
		attribute.String(otelhelper.JobIDKey, job.ID),
		attribute.String(otelhelper.WorkflowIDKey, job.WorkflowID),
	)
	defer span.End()

	logger := p.logger.With("job_id", job.ID, "workflow_id", job.WorkflowID)

	started := time.Now().UTC()
	job.Status = models.AudioJobProcessing
	job.StartedAt = &started
	p.save(ctx, job)

	workflow, err := p.workflows.GetByID(ctx, job.WorkflowID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load workflow for audio job", "error", err)
		otelhelper.SetError(span, err)

		job.Error = err.Error()
		p.finish(ctx, job, "", models.AudioJobFailed)

		return
	}

	targets, missing := selectNodes(workflow, job.NodeIDs)
	job.TotalNodes = len(targets) + len(missing)

	for _, nodeID := range missing {
		job.Errors = append(job.Errors, models.NodeFailure{NodeID: nodeID, Error: persistence.ErrNodeNotFound.Error()})
		job.ProcessedNodes++
	}

	p.save(ctx, job)
	p.publish(ctx, job, workflow.TenantID, "")

	for _, node := range targets {
		if ctx.Err() != nil {
			break
		}

		outcome := p.processNode(ctx, workflow, node, job.ForceRegenerate)
		applyOutcome(job, node.ID, outcome)

		if outcome.skipped {
			logger.DebugContext(ctx, "node audio skipped", "node_id", node.ID)
		}

		if outcome.err != nil {
			logger.WarnContext(ctx, "audio generation failed for node",
				"node_id", node.ID,
				"degraded", outcome.degraded,
				"error", outcome.err)
		}

		p.save(ctx, job)
		p.publish(ctx, job, workflow.TenantID, node.ID)
	}

	status := models.AudioJobCompleted

	switch {
	case ctx.Err() != nil:
		status = models.AudioJobCancelled
		job.Error = ctx.Err().Error()
	case len(job.Errors) > 0:
		status = models.AudioJobPartial
	}

	p.finish(ctx, job, workflow.TenantID, status)
	logger.InfoContext(ctx, "audio job finished",
		"status", job.Status,
		"processed", job.ProcessedNodes,
		"errors", len(job.Errors),
		"degraded", len(job.Degraded))
}

func (p *Pipeline) finish(ctx context.Context, job *models.AudioJob, tenantID string, status models.AudioJobStatus) {
	finished := time.Now().UTC()
	job.Status = status
	job.FinishedAt = &finished

	// The job context may already be cancelled; the final state must still land.
	ctx = context.WithoutCancel(ctx)

	p.save(ctx, job)
	p.publish(ctx, job, tenantID, "")
	p.metrics.AudioJobFinished(string(status))
}

func (p *Pipeline) save(ctx context.Context, job *models.AudioJob) {
	if err := p.jobs.Save(ctx, job); err != nil {
		p.logger.ErrorContext(ctx, "failed to save audio job", "job_id", job.ID, "error", err)
	}
}

func (p *Pipeline) publish(ctx context.Context, job *models.AudioJob, tenantID, nodeID string) {
	eventbus.PublishBestEffort(ctx, p.logger, p.publisher, job.ID, events.NewAudioJobProgress(job, tenantID, nodeID))
}

// nodeOutcome is the result of processing one node.
type nodeOutcome struct {
	skipped  bool
	degraded bool
	err      error
}

// applyOutcome records a node result. A degraded node still answers callers with native speech,
// so only nodes left without any answer count as errors and make the job partial.
func applyOutcome(job *models.AudioJob, nodeID string, outcome nodeOutcome) {
	job.ProcessedNodes++

	switch {
	case outcome.degraded:
		job.Degraded = append(job.Degraded, nodeID)
	case outcome.err != nil:
		job.Errors = append(job.Errors, models.NodeFailure{NodeID: nodeID, Error: outcome.err.Error()})
	}
}

func (p *Pipeline) processNode(ctx context.Context, workflow *models.Workflow, node *models.Node, force bool) nodeOutcome {
	if node.HasAudio() && !force {
		return nodeOutcome{skipped: true}
	}

	text := models.PromptText(node)
	if text == "" {
		return nodeOutcome{skipped: true}
	}

	if template.NeedsTemplating(text) {
		return nodeOutcome{skipped: true}
	}

	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "audio.node",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	voice, language := voiceOf(node, workflow)

	clip, err := p.synthesize(ctx, SynthesisRequest{Text: text, Voice: voice, Language: language})
	if err != nil {
		otelhelper.SetError(span, err)

		// Cancelled jobs and regenerations keep whatever audio the node had.
		if ctx.Err() != nil || node.HasAudio() {
			return nodeOutcome{err: err}
		}

		_, writeErr := p.workflows.UpdateNodeAudio(ctx, workflow.ID, node.ID, models.NodeAudio{Status: models.AudioStatusDegraded})
		if writeErr != nil {
			return nodeOutcome{err: fmt.Errorf("%w; also failed to mark node degraded: %w", err, writeErr)}
		}

		node.SetAudio(models.NodeAudio{Status: models.AudioStatusDegraded})
		otelhelper.MarkDegraded(span, "synthesis_failed")

		return nodeOutcome{degraded: true, err: err}
	}

	asset, err := p.storage.Put(ctx, clip)
	if err != nil {
		otelhelper.SetError(span, err)

		return nodeOutcome{err: fmt.Errorf("failed to store audio: %w", err)}
	}

	if _, err := p.workflows.UpdateNodeAudio(ctx, workflow.ID, node.ID, models.NodeAudio{
		URL:     asset.URL,
		AssetID: asset.ID,
		Status:  models.AudioStatusReady,
	}); err != nil {
		otelhelper.SetError(span, err)

		if deleteErr := p.storage.Delete(context.WithoutCancel(ctx), asset.ID); deleteErr != nil {
			p.logger.WarnContext(ctx, "failed to remove orphaned audio asset", "asset_id", asset.ID, "error", deleteErr)
		}

		return nodeOutcome{err: fmt.Errorf("failed to write audio back: %w", err)}
	}

	if node.AudioAssetID != "" && node.AudioAssetID != asset.ID {
		if err := p.storage.Delete(ctx, node.AudioAssetID); err != nil && !errors.Is(err, ErrAssetNotFound) {
			p.logger.WarnContext(ctx, "failed to remove replaced audio asset", "asset_id", node.AudioAssetID, "error", err)
		}
	}

	node.SetAudio(models.NodeAudio{URL: asset.URL, AssetID: asset.ID, Status: models.AudioStatusReady})

	return nodeOutcome{}
}

// synthesize retries temporary failures with exponential backoff, each attempt bounded by SynthesisTimeout.
func (p *Pipeline) synthesize(ctx context.Context, req SynthesisRequest) (*Clip, error) {
	backoff := retry.WithMaxRetries(p.config.MaxAttempts-1,
		retry.WithCappedDuration(p.config.RetryMaxDelay,
			retry.NewExponential(p.config.RetryBaseDelay)))

	var clip *Clip

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.config.SynthesisTimeout)
		defer cancel()

		started := time.Now()
		result, err := p.synthesizer.Synthesize(attemptCtx, req)
		p.metrics.ObserveSynthesis(err == nil, time.Since(started))

		if err != nil {
			if IsTemporary(err) && ctx.Err() == nil {
				return retry.RetryableError(err)
			}

			return err
		}

		clip = result

		return nil
	})
	if err != nil {
		return nil, err
	}

	return clip, nil
}

func selectNodes(workflow *models.Workflow, nodeIDs []string) ([]*models.Node, []string) {
	if len(nodeIDs) == 0 {
		var nodes []*models.Node

		for _, node := range workflow.Nodes {
			if models.PromptText(node) != "" {
				nodes = append(nodes, node)
			}
		}

		return nodes, nil
	}

	var (
		nodes   []*models.Node
		missing []string
		seen    = make(map[string]bool, len(nodeIDs))
	)

	for _, id := range nodeIDs {
		if seen[id] {
			continue
		}

		seen[id] = true

		node, ok := workflow.NodeByID(id)
		if !ok {
			missing = append(missing, id)

			continue
		}

		nodes = append(nodes, node)
	}

	return nodes, missing
}

func voiceOf(node *models.Node, workflow *models.Workflow) (string, string) {
	var voice, language string

	switch data := node.Data.(type) {
	case *models.GreetingData:
		voice, language = data.Voice, data.Language
	case *models.InputData:
		voice, language = data.Voice, data.Language
	case *models.VoicemailData:
		voice, language = data.Voice, data.Language
	}

	if voice == "" {
		voice = workflow.Config.DefaultVoice
	}

	if language == "" {
		language = workflow.Config.DefaultLanguage
	}

	return voice, language
}
