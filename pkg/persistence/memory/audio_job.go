package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	memdb "github.com/hashicorp/go-memdb"
)

type AudioJobRepository struct {
	db *memdb.MemDB
}

func (r *AudioJobRepository) Save(_ context.Context, job *models.AudioJob) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tableAudioJobs, job.Clone()); err != nil {
		return fmt.Errorf("failed to save audio job %s: %w", job.ID, err)
	}

	txn.Commit()

	return nil
}

func (r *AudioJobRepository) GetByID(_ context.Context, id string) (*models.AudioJob, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableAudioJobs, "id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio job %s: %w", id, err)
	}

	if raw == nil {
		return nil, fmt.Errorf("audio job %s: %w", id, persistence.ErrAudioJobNotFound)
	}

	return raw.(*models.AudioJob).Clone(), nil
}

func (r *AudioJobRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.AudioJob, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableAudioJobs, "workflow", workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audio jobs: %w", err)
	}

	jobs := []*models.AudioJob{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		jobs = append(jobs, obj.(*models.AudioJob).Clone())
	}

	return jobs, nil
}

func (r *AudioJobRepository) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(tableAudioJobs, "id")
	if err != nil {
		return 0, fmt.Errorf("failed to scan audio jobs: %w", err)
	}

	var expired []*models.AudioJob

	for obj := it.Next(); obj != nil; obj = it.Next() {
		job := obj.(*models.AudioJob)
		if job.Status.IsTerminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			expired = append(expired, job)
		}
	}

	for _, job := range expired {
		if err := txn.Delete(tableAudioJobs, job); err != nil {
			return 0, fmt.Errorf("failed to delete audio job %s: %w", job.ID, err)
		}
	}

	txn.Commit()

	return len(expired), nil
}
