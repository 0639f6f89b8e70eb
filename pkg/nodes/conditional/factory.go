// Package conditional branches the call on a variable comparison or an expression.
package conditional

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

// ConditionalNodeFactory creates ConditionalNode instances.
type ConditionalNodeFactory struct{}

func (f *ConditionalNodeFactory) Create(_ protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewConditionalNode(), nil
}

func (f *ConditionalNodeFactory) ID() models.NodeType {
	return models.NodeTypeConditional
}

func (f *ConditionalNodeFactory) Name() string {
	return "Conditional"
}

func (f *ConditionalNodeFactory) Description() string {
	return "Evaluates a condition over the call variables and routes to the true or false edge. " +
		"Evaluation errors use the error edge when present."
}

// Schema returns the JSON schema for Conditional node configuration.
func (f *ConditionalNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"variable": map[string]any{
				"type":        "string",
				"description": "Variable to inspect. Dotted paths reach into nested values.",
				"examples":    []string{"menu_choice", "customer.tier"},
			},
			"operator": map[string]any{
				"type": "string",
				"enum": []string{
					string(models.OperatorEquals),
					string(models.OperatorNotEquals),
					string(models.OperatorContains),
					string(models.OperatorGreaterThan),
					string(models.OperatorLessThan),
					string(models.OperatorExists),
					string(models.OperatorRegex),
					string(models.OperatorExpression),
				},
			},
			"value": map[string]any{
				"description": "Value compared against the variable. Supports {{variable}} placeholders.",
			},
			"expression": map[string]any{
				"type":        "string",
				"description": "Boolean expression over the variables, used with the expression operator.",
				"examples": []string{
					`balance > 100 && tier == "gold"`,
					`attempts < 3`,
				},
			},
		},
		"required": []string{"operator"},
		"examples": []map[string]any{
			{"variable": "menu_choice", "operator": "equals", "value": "1"},
			{"operator": "expression", "expression": `balance > 100`},
		},
	}
}

// NewConditionalNodeFactory creates a new factory instance.
func NewConditionalNodeFactory() protocol.NodeFactory {
	return &ConditionalNodeFactory{}
}
