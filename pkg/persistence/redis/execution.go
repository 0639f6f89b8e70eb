// Package redis keeps per-call execution state in Redis so several webhook servers can share it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL    = 24 * time.Hour
	defaultPrefix = "ivrflow"
)

// ExecutionRepository stores each execution as a JSON string and indexes call ids by status.
// Updates run inside WATCH/MULTI so a stale version never overwrites a newer one.
type ExecutionRepository struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
	prefix string
}

// Option configures an ExecutionRepository.
type Option func(*ExecutionRepository)

// WithTTL sets how long an execution survives after its last write. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(r *ExecutionRepository) {
		r.ttl = ttl
	}
}

func WithPrefix(prefix string) Option {
	return func(r *ExecutionRepository) {
		r.prefix = prefix
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *ExecutionRepository) {
		r.logger = logger
	}
}

func NewExecutionRepository(client *redis.Client, opts ...Option) *ExecutionRepository {
	repo := &ExecutionRepository{
		client: client,
		logger: slog.Default(),
		ttl:    defaultTTL,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(repo)
	}

	return repo
}

// Open connects to a redis:// or rediss:// url and verifies the connection.
func Open(ctx context.Context, url string, opts ...Option) (*ExecutionRepository, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewExecutionRepository(client, opts...), nil
}

func (r *ExecutionRepository) Close() error {
	return r.client.Close()
}

func (r *ExecutionRepository) executionKey(callID string) string {
	return r.prefix + ":execution:" + callID
}

func (r *ExecutionRepository) statusKey(status models.ExecutionStatus) string {
	return r.prefix + ":executions:status:" + string(status)
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	execution.Version = 1

	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.CallID, err)
	}

	created, err := r.client.SetNX(ctx, r.executionKey(execution.CallID), data, r.ttl).Result()
	if err != nil {
		return persistence.NewExecutionError("Create", execution.CallID, err)
	}

	if !created {
		return persistence.NewExecutionError("Create", execution.CallID, persistence.ErrDuplicateCall)
	}

	if err := r.client.SAdd(ctx, r.statusKey(execution.Status), execution.CallID).Err(); err != nil {
		return persistence.NewExecutionError("Create", execution.CallID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByCallID(ctx context.Context, callID string) (*models.Execution, error) {
	execution, err := r.load(ctx, r.client, callID)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByCallID", callID, err)
	}

	return execution, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *ExecutionRepository) load(ctx context.Context, client getter, callID string) (*models.Execution, error) {
	data, err := client.Get(ctx, r.executionKey(callID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	return decode(data)
}

func decode(data []byte) (*models.Execution, error) {
	var execution models.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}

	if execution.Variables == nil {
		execution.Variables = map[string]any{}
	}

	if execution.Counters == nil {
		execution.Counters = map[string]int{}
	}

	return &execution, nil
}

func (r *ExecutionRepository) Update(ctx context.Context, execution *models.Execution) error {
	key := r.executionKey(execution.CallID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := r.load(ctx, tx, execution.CallID)
		if err != nil {
			return err
		}

		if stored.Version != execution.Version {
			return persistence.ErrVersionConflict
		}

		next := *execution
		next.Version++

		data, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("failed to marshal execution: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)

			if stored.Status != next.Status {
				pipe.SRem(ctx, r.statusKey(stored.Status), execution.CallID)
				pipe.SAdd(ctx, r.statusKey(next.Status), execution.CallID)
			}

			return nil
		})

		return err
	}, key)

	switch {
	case err == nil:
		execution.Version++

		return nil
	case errors.Is(err, redis.TxFailedErr):
		return persistence.NewExecutionError("Update", execution.CallID, persistence.ErrVersionConflict)
	default:
		return persistence.NewExecutionError("Update", execution.CallID, err)
	}
}

// ListByStatus returns the executions indexed under status. Ids whose key expired are pruned from the index.
func (r *ExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	callIDs, err := r.client.SMembers(ctx, r.statusKey(status)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}

	executions := []*models.Execution{}

	if len(callIDs) == 0 {
		return executions, nil
	}

	keys := make([]string, len(callIDs))
	for i, callID := range callIDs {
		keys[i] = r.executionKey(callID)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	var expired []any

	for i, value := range values {
		data, ok := value.(string)
		if !ok {
			expired = append(expired, callIDs[i])

			continue
		}

		execution, err := decode([]byte(data))
		if err != nil {
			return nil, err
		}

		if execution.Status == status {
			executions = append(executions, execution)
		}
	}

	if len(expired) > 0 {
		if err := r.client.SRem(ctx, r.statusKey(status), expired...).Err(); err != nil {
			r.logger.WarnContext(ctx, "failed to prune expired executions", "status", status, "error", err)
		}
	}

	return executions, nil
}

func (r *ExecutionRepository) Delete(ctx context.Context, callID string) error {
	execution, err := r.load(ctx, r.client, callID)
	if err != nil {
		return persistence.NewExecutionError("Delete", callID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.executionKey(callID))
	pipe.SRem(ctx, r.statusKey(execution.Status), callID)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewExecutionError("Delete", callID, err)
	}

	return nil
}
