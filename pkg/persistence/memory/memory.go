// Package memory provides an in-process persistence implementation backed by go-memdb.
package memory

import (
	"context"
	"fmt"

	"github.com/dukex/ivrflow/pkg/persistence"
	memdb "github.com/hashicorp/go-memdb"
)

const (
	tableWorkflows  = "workflows"
	tableExecutions = "executions"
	tableAudioJobs  = "audio_jobs"
)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableWorkflows: {
				Name: tableWorkflows,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"tenant": {
						Name:         "tenant",
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "TenantID"},
					},
				},
			},
			tableExecutions: {
				Name: tableExecutions,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "CallID"},
					},
					"status": {
						Name:    "status",
						Indexer: &memdb.StringFieldIndex{Field: "Status"},
					},
				},
			},
			tableAudioJobs: {
				Name: tableAudioJobs,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"workflow": {
						Name:         "workflow",
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "WorkflowID"},
					},
				},
			},
		},
	}
}

// Persistence keeps every record in memory. Records are cloned on the way in and out.
type Persistence struct {
	db         *memdb.MemDB
	workflows  *WorkflowRepository
	executions *ExecutionRepository
	audioJobs  *AudioJobRepository
}

func NewPersistence() (*Persistence, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create memory database: %w", err)
	}

	return &Persistence{
		db:         db,
		workflows:  &WorkflowRepository{db: db},
		executions: &ExecutionRepository{db: db},
		audioJobs:  &AudioJobRepository{db: db},
	}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) AudioJobRepository() persistence.AudioJobRepository {
	return p.audioJobs
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
