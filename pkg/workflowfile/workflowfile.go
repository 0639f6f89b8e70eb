// Package workflowfile reads workflow definitions written by hand in YAML or JSON.
package workflowfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dukex/ivrflow/pkg/models"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	ErrUnknownFormat = errors.New("unknown workflow file format")
	ErrEmptyFile     = errors.New("workflow file is empty")
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

func Load(path string) (*models.Workflow, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	workflow, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return workflow, nil
}

// LoadDir loads every workflow file in dir, sorted by file name. Other files are ignored.
func LoadDir(dir string) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if _, err := FormatOf(entry.Name()); err == nil {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	workflows := make([]*models.Workflow, 0, len(names))
	for _, name := range names {
		workflow, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// Parse decodes a workflow. YAML documents go through the JSON wire form so node payloads
// decode exactly as they do over the API.
func Parse(data []byte, format Format) (*models.Workflow, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyFile
	}

	switch format {
	case FormatJSON:
	case FormatYAML:
		var document any
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("invalid yaml: %w", err)
		}

		converted, err := json.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("yaml document is not representable as json: %w", err)
		}

		data = converted
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	if workflow.Nodes == nil {
		workflow.Nodes = []*models.Node{}
	}

	if workflow.Edges == nil {
		workflow.Edges = []*models.Edge{}
	}

	return &workflow, nil
}
