package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dukex/ivrflow/pkg/audio"
	"github.com/dukex/ivrflow/pkg/cmd"
	"github.com/dukex/ivrflow/pkg/eventbus"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/interpreter"
	"github.com/dukex/ivrflow/pkg/janitor"
	"github.com/dukex/ivrflow/pkg/log"
	"github.com/dukex/ivrflow/pkg/metrics"
	"github.com/dukex/ivrflow/pkg/otelhelper"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/services"
	"github.com/dukex/ivrflow/pkg/tenant"
	"github.com/dukex/ivrflow/pkg/web"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPort     = 8080
	shutdownTimeout = 15 * time.Second
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Answer telephony webhooks and serve the workflow API",
		Flags: append(logFlags(),
			databaseFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the HTTP server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "public-base-url",
				Usage:    "Externally reachable base URL used in callback and asset URLs",
				Required: true,
				Sources:  cli.EnvVars("PUBLIC_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "execution-store-url",
				Usage:   "Optional redis:// URL for call state shared by several servers",
				Sources: cli.EnvVars("EXECUTION_STORE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (none, gochannel, kafka)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "tenants-file",
				Usage:   "YAML file mapping called numbers to tenants",
				Sources: cli.EnvVars("TENANTS_FILE"),
			},
			&cli.StringFlag{
				Name:    "default-tenant",
				Usage:   "Tenant for numbers missing from the tenants file",
				Sources: cli.EnvVars("DEFAULT_TENANT"),
			},
			&cli.StringFlag{
				Name:    "tts-base-url",
				Usage:   "Base URL of the OpenAI compatible speech API",
				Value:   "https://api.openai.com/v1",
				Sources: cli.EnvVars("TTS_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "tts-api-key",
				Usage:   "API key of the speech API",
				Sources: cli.EnvVars("TTS_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "tts-model",
				Usage:   "Speech model",
				Value:   audio.DefaultModel,
				Sources: cli.EnvVars("TTS_MODEL"),
			},
			&cli.BoolFlag{
				Name:    "inline-tts",
				Usage:   "Synthesize prompts without pre-rendered audio while the caller waits",
				Value:   false,
				Sources: cli.EnvVars("INLINE_TTS"),
			},
			&cli.StringFlag{
				Name:    "assets-dir",
				Usage:   "Directory holding generated audio",
				Value:   "./data/assets",
				Sources: cli.EnvVars("ASSETS_DIR"),
			},
			&cli.IntFlag{
				Name:    "audio-workers",
				Usage:   "Concurrent audio generation jobs",
				Value:   int(audio.DefaultConfig().Workers),
				Sources: cli.EnvVars("AUDIO_WORKERS"),
			},
			&cli.DurationFlag{
				Name:    "max-call-duration",
				Usage:   "Calls running longer are ended",
				Value:   interpreter.DefaultMaxCallDuration,
				Sources: cli.EnvVars("MAX_CALL_DURATION"),
			},
			&cli.StringFlag{
				Name:    "janitor-schedule",
				Usage:   "Cron schedule of the cleanup of stale calls and old audio jobs",
				Value:   janitor.DefaultSchedule,
				Sources: cli.EnvVars("JANITOR_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.FloatFlag{
				Name:    "tracing-sample-ratio",
				Usage:   "Share of calls traced when no upstream trace is present",
				Value:   1,
				Sources: cli.EnvVars("TRACING_SAMPLE_RATIO"),
			},
		),
		Action: serve,
	}
}

func serve(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("ivrflow")
	logger.InfoContext(ctx, "Initializing ivrflow")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to open persistence: %w", err)
	}

	store, err = cmd.WithExecutionStore(ctx, logger, store, command.String("execution-store-url"))
	if err != nil {
		return fmt.Errorf("failed to open execution store: %w", err)
	}

	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	var publisher eventbus.EventPublisher = eventbus.Discard{}

	bus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	if bus != nil {
		publisher = bus

		defer func() {
			if err := bus.Close(); err != nil {
				logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		}()
	}

	tracer := otelhelper.NoopTracer()

	if command.Bool("tracing") {
		var shutdown otelhelper.ShutdownFunc

		tracer, shutdown, err = otelhelper.NewTracer(ctx, "ivrflow", command.Float("tracing-sample-ratio"))
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()
	}

	tenants, err := newTenantResolver(command)
	if err != nil {
		return err
	}

	baseURL := strings.TrimRight(command.String("public-base-url"), "/")

	storage, err := audio.NewLocalStorage(command.String("assets-dir"), baseURL+"/assets")
	if err != nil {
		return err
	}

	synthesizer := audio.NewOpenAISynthesizer(command.String("tts-api-key"),
		audio.WithBaseURL(command.String("tts-base-url")),
		audio.WithModel(command.String("tts-model")),
	)

	var speech protocol.SpeechRenderer
	if command.Bool("inline-tts") {
		speech = audio.NewInlineRenderer(synthesizer, storage, logger)
	}

	m := metrics.New()
	registry := cmd.NewRegistry(logger, speech)
	executions := execution.NewStore(store.ExecutionRepository(), logger)

	engine := interpreter.New(
		interpreter.Config{
			BaseURL:         baseURL,
			MaxCallDuration: command.Duration("max-call-duration"),
		},
		store.WorkflowRepository(),
		executions,
		registry,
		tenants,
		logger,
		interpreter.WithPublisher(publisher),
		interpreter.WithMetrics(m),
		interpreter.WithTracer(tracer),
	)

	pipeline := newPipeline(command, store, synthesizer, storage, publisher, m, tracer)
	defer pipeline.Close()

	workflows := services.NewWorkflow(store, registry, logger, services.WithAudioScheduler(pipeline))

	server := web.NewServer(logger, engine, workflows, registry,
		web.WithAudio(pipeline, storage.Dir()),
		web.WithMetrics(m),
	)

	sweeper := janitor.New(
		janitor.Config{
			Schedule:   command.String("janitor-schedule"),
			StaleAfter: command.Duration("max-call-duration") * 2,
		},
		store.ExecutionRepository(),
		executions,
		store.AudioJobRepository(),
		logger,
		janitor.WithPublisher(publisher),
		janitor.WithMetrics(m),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(command.Int("port"))
	})

	g.Go(func() error {
		if err := sweeper.Start(gctx); err != nil {
			return err
		}

		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		logger.InfoContext(shutdownCtx, "Shutting down")

		return errors.Join(server.Shutdown(shutdownCtx), sweeper.Stop(shutdownCtx))
	})

	return g.Wait()
}

func newTenantResolver(command *cli.Command) (tenant.Resolver, error) {
	path := command.String("tenants-file")
	if path == "" {
		return tenant.NewStaticResolver(command.String("default-tenant")), nil
	}

	resolver, err := tenant.LoadFile(path)
	if err != nil {
		return nil, err
	}

	return resolver, nil
}

func newPipeline(
	command *cli.Command,
	store persistence.Persistence,
	synthesizer audio.Synthesizer,
	storage audio.AssetStorage,
	publisher eventbus.EventPublisher,
	m *metrics.Metrics,
	tracer trace.Tracer,
) *audio.Pipeline {
	config := audio.DefaultConfig()
	config.Workers = int64(command.Int("audio-workers"))

	return audio.NewPipeline(config, store, synthesizer, storage, log.WithModule("audio"),
		audio.WithPublisher(publisher),
		audio.WithMetrics(m),
		audio.WithTracer(tracer),
	)
}
