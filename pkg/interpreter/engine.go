// Package interpreter walks a workflow graph for a live call, one webhook at a time.
package interpreter

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/ivrflow/pkg/calllock"
	"github.com/dukex/ivrflow/pkg/eventbus"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/metrics"
	"github.com/dukex/ivrflow/pkg/otelhelper"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/dukex/ivrflow/pkg/registry"
	"github.com/dukex/ivrflow/pkg/tenant"
)

const (
	DefaultMaxStepsPerResponse = 25
	DefaultMaxNodeExecutions   = 100
	DefaultMaxCallDuration     = time.Hour
)

type Config struct {
	// BaseURL prefixes every callback url handed to the telephony platform.
	BaseURL             string
	MaxStepsPerResponse int
	MaxNodeExecutions   int
	MaxCallDuration     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxStepsPerResponse <= 0 {
		c.MaxStepsPerResponse = DefaultMaxStepsPerResponse
	}

	if c.MaxNodeExecutions <= 0 {
		c.MaxNodeExecutions = DefaultMaxNodeExecutions
	}

	if c.MaxCallDuration <= 0 {
		c.MaxCallDuration = DefaultMaxCallDuration
	}

	return c
}

// Engine turns telephony webhooks into call-control documents.
type Engine struct {
	config     Config
	urls       URLs
	workflows  persistence.WorkflowRepository
	executions *execution.Store
	registry   *registry.Registry
	tenants    tenant.Resolver
	locks      *calllock.Locker
	publisher  eventbus.EventPublisher
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

type Option func(*Engine)

func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func New(
	config Config,
	workflows persistence.WorkflowRepository,
	executions *execution.Store,
	nodes *registry.Registry,
	tenants tenant.Resolver,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	config = config.withDefaults()

	engine := &Engine{
		config:     config,
		urls:       NewURLs(config.BaseURL),
		workflows:  workflows,
		executions: executions,
		registry:   nodes,
		tenants:    tenants,
		locks:      calllock.New(),
		publisher:  eventbus.Discard{},
		tracer:     otelhelper.NoopTracer(),
		logger:     logger.With("module", "interpreter"),
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

func (e *Engine) URLs() URLs {
	return e.urls
}
