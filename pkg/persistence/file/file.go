// Package file provides file-based persistence, one JSON document per record.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/ivrflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root       string
	workflows  *WorkflowRepository
	executions *ExecutionRepository
	audioJobs  *AudioJobRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:       cleanRoot,
		workflows:  &WorkflowRepository{store: documents{dir: filepath.Join(cleanRoot, "workflows")}},
		executions: &ExecutionRepository{store: documents{dir: filepath.Join(cleanRoot, "executions")}},
		audioJobs:  &AudioJobRepository{store: documents{dir: filepath.Join(cleanRoot, "audio_jobs")}},
	}
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflows
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executions
}

func (fp *Persistence) AudioJobRepository() persistence.AudioJobRepository {
	return fp.audioJobs
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

var errInvalidID = errors.New("id contains invalid characters")

// documents reads and writes JSON files named after record ids inside dir.
type documents struct {
	dir string
}

// validateID rejects ids that could escape the directory.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return errInvalidID
	}

	return nil
}

func (d documents) path(id string) string {
	return filepath.Join(d.dir, id+".json")
}

// read decodes the document into out, reporting false when it does not exist.
func (d documents) read(id string, out any) (bool, error) {
	if err := validateID(id); err != nil {
		return false, fmt.Errorf("invalid id %q: %w", id, err)
	}

	data, err := os.ReadFile(d.path(id)) // #nosec G304 -- id is validated
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", id, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return true, nil
}

func (d documents) write(id string, value any) error {
	if err := validateID(id); err != nil {
		return fmt.Errorf("invalid id %q: %w", id, err)
	}

	if err := os.MkdirAll(d.dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", d.dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	tmp := d.path(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	return os.Rename(tmp, d.path(id))
}

func (d documents) remove(id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, fmt.Errorf("invalid id %q: %w", id, err)
	}

	err := os.Remove(d.path(id))
	if err != nil && os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return true, nil
}

// ids lists the record ids present on disk.
func (d documents) ids() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}

		return nil, fmt.Errorf("failed to read directory %s: %w", d.dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}

	return ids, nil
}
