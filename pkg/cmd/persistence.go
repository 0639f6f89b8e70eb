package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/dukex/ivrflow/pkg/persistence/file"
	"github.com/dukex/ivrflow/pkg/persistence/memory"
	"github.com/dukex/ivrflow/pkg/persistence/postgresql"
	redisstore "github.com/dukex/ivrflow/pkg/persistence/redis"
	"github.com/redis/go-redis/v9"
)

var (
	supportedPersistenceProviders = []string{"memory", "file", "postgres", "postgresql"}

	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// NewPersistence opens the store named by the url scheme: memory://, file://<dir> or postgres://.
// An empty url keeps everything in memory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, err := parsePersistenceProvider(databaseURL)
	if err != nil {
		return nil, err
	}

	switch provider {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger.With("module", "postgresql"), databaseURL)
	case "file":
		return file.NewPersistence(databaseURL), nil
	default:
		return memory.NewPersistence()
	}
}

// WithExecutionStore moves call state to executionStoreURL, leaving workflows and audio jobs in p.
// Only redis:// and rediss:// are supported. An empty url returns p unchanged.
func WithExecutionStore(ctx context.Context, logger *slog.Logger, p persistence.Persistence, executionStoreURL string) (persistence.Persistence, error) {
	if executionStoreURL == "" {
		return p, nil
	}

	if !strings.HasPrefix(executionStoreURL, "redis://") && !strings.HasPrefix(executionStoreURL, "rediss://") {
		return nil, fmt.Errorf("%w: execution store %s", ErrUnsupportedProvider, executionStoreURL)
	}

	options, err := redis.ParseURL(executionStoreURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	executions := redisstore.NewExecutionRepository(client, redisstore.WithLogger(logger.With("module", "redis")))

	return persistence.WithExecutionRepository(p, executions), nil
}

func parsePersistenceProvider(databaseURL string) (string, error) {
	if databaseURL == "" {
		return "memory", nil
	}

	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: %q has no scheme", ErrUnsupportedProvider, databaseURL)
	}

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
}
