// Package apicall calls an external HTTP endpoint and stores the response in a variable.
package apicall

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

type APICallNodeFactory struct{}

func NewAPICallNodeFactory() protocol.NodeFactory {
	return &APICallNodeFactory{}
}

func (f *APICallNodeFactory) Create(deps protocol.Dependencies) (protocol.NodeHandler, error) {
	return NewAPICallNode(deps), nil
}

func (f *APICallNodeFactory) ID() models.NodeType {
	return models.NodeTypeAPICall
}

func (f *APICallNodeFactory) Name() string {
	return "API Call"
}

func (f *APICallNodeFactory) Description() string {
	return "Performs an HTTP request while the caller waits. Follows 'success' for 2xx responses and 'error' otherwise."
}

// Schema returns the JSON schema for api call node data.
func (f *APICallNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "HTTP URL to request. Supports {{variable}} placeholders",
				"examples": []string{
					"https://api.example.com/accounts/{{account}}",
				},
			},
			"method": map[string]any{
				"type":    "string",
				"default": "GET",
				"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"description":          "HTTP headers. Values support placeholders",
				"additionalProperties": map[string]any{"type": "string"},
				"examples": []map[string]any{
					{"Authorization": "Bearer {{api_token}}"},
				},
			},
			"body": map[string]any{
				"type":     "string",
				"examples": []string{`{"caller": "{{caller}}", "choice": "{{menu_choice}}"}`},
			},
			"timeoutSeconds": map[string]any{
				"type":    "integer",
				"default": int(defaultTimeout.Seconds()),
				"minimum": 1,
				"maximum": 30,
			},
			"responseVariable": map[string]any{
				"type":        "string",
				"description": "Variable receiving the response body. JSON bodies are stored decoded",
			},
		},
		"required": []string{"url"},
	}
}
