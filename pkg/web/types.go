// Package web serves the telephony webhooks, the workflow editing API and the generated audio assets.
package web

import (
	"encoding/json"

	"github.com/dukex/ivrflow/pkg/audio"
	"github.com/dukex/ivrflow/pkg/models"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	TenantID    string                `json:"tenantId"              validate:"required"`
	Name        string                `json:"name"                  validate:"required,min=3"`
	Description string                `json:"description,omitempty"`
	Status      models.WorkflowStatus `json:"status,omitempty"      validate:"omitempty,oneof=draft active inactive"`
	Config      models.WorkflowConfig `json:"config"`
	Nodes       []*models.Node        `json:"nodes"`
	Edges       []*models.Edge        `json:"edges"`
}

// ReplaceGraphRequest carries a full graph edit based on a known revision.
type ReplaceGraphRequest struct {
	Revision    int64                  `json:"revision"              validate:"min=1"`
	Name        string                 `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description string                 `json:"description,omitempty"`
	Config      *models.WorkflowConfig `json:"config,omitempty"`
	Nodes       []*models.Node         `json:"nodes"`
	Edges       []*models.Edge         `json:"edges"`
}

// UpdateNodeRequest replaces one node payload. Type is optional and cannot differ from the stored type.
type UpdateNodeRequest struct {
	Revision int64           `json:"revision"       validate:"min=1"`
	Type     models.NodeType `json:"type,omitempty"`
	Data     json.RawMessage `json:"data"           validate:"required"`
}

type SetStatusRequest struct {
	Status models.WorkflowStatus `json:"status" validate:"required,oneof=draft active inactive"`
}

// GenerateAudioRequest starts an audio job. Empty nodeIds selects every node with a prompt.
type GenerateAudioRequest struct {
	NodeIDs         []string `json:"nodeIds,omitempty"         validate:"omitempty,dive,required"`
	ForceRegenerate bool     `json:"forceRegenerate,omitempty"`
}

// NodeTypeResponse describes a registered node type for editors.
type NodeTypeResponse struct {
	Type        models.NodeType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      map[string]any  `json:"schema"`
}

// GenerateResponse is returned by the synchronous generation endpoint.
type GenerateResponse struct {
	Report   *audio.GenerateReport `json:"report"`
	Failures []models.NodeFailure  `json:"failures,omitempty"`
}
