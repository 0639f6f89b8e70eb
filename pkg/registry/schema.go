package registry

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/ivrflow/pkg/models"
)

// SchemaError is a single field level schema violation.
type SchemaError struct {
	Field       string
	Description string
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidateNodeData checks a node payload against the JSON schema published by its factory.
func (r *Registry) ValidateNodeData(nodeType models.NodeType, data models.NodeData) ([]SchemaError, error) {
	factory, ok := r.Factory(nodeType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeTypeNotRegistered, nodeType)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(factory.Schema()),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	errs := make([]SchemaError, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, SchemaError{Field: e.Field(), Description: e.Description()})
	}

	return errs, nil
}

// ValidateWorkflowSchemas runs ValidateNodeData over every node and returns messages keyed by node id.
func (r *Registry) ValidateWorkflowSchemas(workflow *models.Workflow) (map[string][]string, error) {
	problems := make(map[string][]string)

	for _, node := range workflow.Nodes {
		errs, err := r.ValidateNodeData(node.Type, node.Data)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node.ID, err)
		}

		for _, e := range errs {
			problems[node.ID] = append(problems[node.ID], e.Error())
		}
	}

	return problems, nil
}
