package file

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
)

type AudioJobRepository struct {
	mu    sync.Mutex
	store documents
}

func (ar *AudioJobRepository) Save(_ context.Context, job *models.AudioJob) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	return ar.store.write(job.ID, job)
}

func (ar *AudioJobRepository) GetByID(_ context.Context, id string) (*models.AudioJob, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	return ar.get(id)
}

func (ar *AudioJobRepository) get(id string) (*models.AudioJob, error) {
	var job models.AudioJob

	found, err := ar.store.read(id, &job)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("audio job %s: %w", id, persistence.ErrAudioJobNotFound)
	}

	return &job, nil
}

func (ar *AudioJobRepository) all() ([]*models.AudioJob, error) {
	ids, err := ar.store.ids()
	if err != nil {
		return nil, err
	}

	jobs := make([]*models.AudioJob, 0, len(ids))

	for _, id := range ids {
		job, err := ar.get(id)
		if err != nil {
			continue
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

func (ar *AudioJobRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.AudioJob, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	all, err := ar.all()
	if err != nil {
		return nil, err
	}

	jobs := []*models.AudioJob{}

	for _, job := range all {
		if job.WorkflowID == workflowID {
			jobs = append(jobs, job)
		}
	}

	return jobs, nil
}

func (ar *AudioJobRepository) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	all, err := ar.all()
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, job := range all {
		if !job.Status.IsTerminal() || job.FinishedAt == nil || !job.FinishedAt.Before(cutoff) {
			continue
		}

		if _, err := ar.store.remove(job.ID); err != nil {
			return deleted, err
		}

		deleted++
	}

	return deleted, nil
}
