package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
)

type AudioJobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAudioJobRepository(db *sql.DB, logger *slog.Logger) *AudioJobRepository {
	return &AudioJobRepository{db: db, logger: logger}
}

func (r *AudioJobRepository) Save(ctx context.Context, job *models.AudioJob) error {
	document, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal audio job %s: %w", job.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audio_jobs (id, workflow_id, status, document, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, document = EXCLUDED.document, finished_at = EXCLUDED.finished_at`,
		job.ID, job.WorkflowID, job.Status, document, job.CreatedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save audio job %s: %w", job.ID, err)
	}

	return nil
}

func (r *AudioJobRepository) GetByID(ctx context.Context, id string) (*models.AudioJob, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx, `SELECT document FROM audio_jobs WHERE id = $1`, id).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audio job %s: %w", id, persistence.ErrAudioJobNotFound)
		}

		return nil, fmt.Errorf("failed to read audio job %s: %w", id, err)
	}

	var job models.AudioJob
	if err := json.Unmarshal(document, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audio job %s: %w", id, err)
	}

	return &job, nil
}

func (r *AudioJobRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.AudioJob, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT document FROM audio_jobs WHERE workflow_id = $1 ORDER BY created_at`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audio jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.AudioJob{}

	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan audio job: %w", err)
		}

		var job models.AudioJob
		if err := json.Unmarshal(document, &job); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audio job: %w", err)
		}

		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

func (r *AudioJobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM audio_jobs
		WHERE finished_at IS NOT NULL AND finished_at < $1 AND status IN ('completed', 'partial', 'failed', 'cancelled')`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audio jobs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged audio jobs: %w", err)
	}

	return int(affected), nil
}
