package web

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/ivrflow/pkg/metrics"
	"github.com/dukex/ivrflow/pkg/registry"
	"github.com/dukex/ivrflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type Server struct {
	logger    *slog.Logger
	engine    CallEngine
	workflows *services.Workflow
	pipeline  AudioPipeline
	registry  *registry.Registry
	metrics   *metrics.Metrics
	assetsDir string
	validate  *validator.Validate

	app *fiber.App
}

type Option func(*Server)

// WithAudio enables the audio job endpoints and the asset route.
func WithAudio(pipeline AudioPipeline, assetsDir string) Option {
	return func(s *Server) {
		s.pipeline = pipeline
		s.assetsDir = assetsDir
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func NewServer(
	logger *slog.Logger,
	engine CallEngine,
	workflows *services.Workflow,
	registry *registry.Registry,
	opts ...Option,
) *Server {
	s := &Server{
		logger:    logger.With("module", "web"),
		engine:    engine,
		workflows: workflows,
		registry:  registry,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	api := NewAPIHandlers(s.workflows, s.validate, s.registry)
	voice := NewVoiceHandlers(s.engine, s.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())
	app.Get("/health", api.HealthCheck)

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("ivrflow")
	})

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	v := app.Group("/voice")
	v.Post("/incoming", voice.Incoming)
	v.Post("/status", voice.Status)
	v.Post("/:workflowId/nodes/:nodeId/continue", voice.Continue)
	v.Post("/:workflowId/nodes/:nodeId/enter", voice.Enter)

	app.Get("/node-types", api.GetNodeTypes)

	w := app.Group("/workflows")
	w.Get("/", api.GetWorkflows)
	w.Post("/", api.CreateWorkflow)
	w.Get("/:id", api.GetWorkflow)
	w.Delete("/:id", api.DeleteWorkflow)
	w.Put("/:id/graph", api.ReplaceGraph)
	w.Patch("/:id/nodes/:nodeId", api.UpdateWorkflowNode)
	w.Post("/:id/status", api.SetWorkflowStatus)
	w.Get("/:id/validate", api.ValidateWorkflow)

	if s.pipeline != nil {
		audio := NewAudioHandlers(s.pipeline, s.workflows, s.validate, s.assetsDir)

		w.Post("/:id/audio/jobs", audio.EnqueueJob)
		w.Get("/:id/audio/jobs", audio.ListJobs)
		w.Post("/:id/audio/generate", audio.GenerateNow)

		app.Get("/audio/jobs/:jobId", audio.GetJob)
		app.Delete("/audio/jobs/:jobId", audio.CancelJob)
		app.Get("/assets/:name", audio.Asset)
	}

	s.app = app

	return app
}

func (s *Server) Start(port int) error {
	s.logger.Info("HTTP server listening", "port", port)

	return s.App().Listen(":" + strconv.Itoa(port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}

	return s.app.ShutdownWithContext(ctx)
}
