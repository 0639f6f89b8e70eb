// Package models defines the call flow graph, per-call execution state and audio job records.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not routed to
	WorkflowStatusActive   WorkflowStatus = "active"   // Receives calls for its tenant
	WorkflowStatusInactive WorkflowStatus = "inactive" // Kept for history
)

// WorkflowConfig holds per-workflow defaults applied when a node leaves a field empty.
type WorkflowConfig struct {
	DefaultVoice          string `json:"defaultVoice,omitempty"`
	DefaultLanguage       string `json:"defaultLanguage,omitempty"`
	DefaultTimeoutSeconds int    `json:"defaultTimeoutSeconds,omitempty" validate:"omitempty,min=1,max=60"`
	DefaultMaxAttempts    int    `json:"defaultMaxAttempts,omitempty"    validate:"omitempty,min=1,max=10"`
	InvalidInputMessage   string `json:"invalidInputMessage,omitempty"`
	ApologyMessage        string `json:"apologyMessage,omitempty"`
}

// Workflow is a directed graph of call flow nodes owned by a tenant.
type Workflow struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId"`
	Name        string         `json:"name"                  validate:"required,min=3"`
	Description string         `json:"description,omitempty"`
	Status      WorkflowStatus `json:"status"                validate:"required,oneof=draft active inactive"`
	Nodes       []*Node        `json:"nodes"`
	Edges       []*Edge        `json:"edges"`
	Config      WorkflowConfig `json:"config"`
	// Revision increases on every persisted change, including audio write-back.
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Edge connects two nodes. A nil SourceHandle is the default branch.
type Edge struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"                 validate:"required"`
	Target       string  `json:"target"                 validate:"required"`
	SourceHandle *string `json:"sourceHandle,omitempty"`
}

// Handle returns the branch label, empty for the default branch.
func (e *Edge) Handle() string {
	if e.SourceHandle == nil {
		return ""
	}

	return *e.SourceHandle
}

// NodeByID returns the node with the given id.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// StartNode returns the first greeting or audio node nobody points at, falling back to the first node.
func (w *Workflow) StartNode() *Node {
	if len(w.Nodes) == 0 {
		return nil
	}

	targets := make(map[string]bool, len(w.Edges))
	for _, edge := range w.Edges {
		targets[edge.Target] = true
	}

	for _, node := range w.Nodes {
		if (node.Type == NodeTypeGreeting || node.Type == NodeTypeAudio) && !targets[node.ID] {
			return node
		}
	}

	return w.Nodes[0]
}

// Clone returns a deep copy. Stores hand out clones so callers never share graph memory.
func (w *Workflow) Clone() (*Workflow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}

	var clone Workflow
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}

	return &clone, nil
}

// ApologyMessage is spoken before hanging up on a call that cannot continue.
func (w *Workflow) ApologyMessage() string {
	if w != nil && w.Config.ApologyMessage != "" {
		return w.Config.ApologyMessage
	}

	return DefaultApologyMessage
}

const (
	DefaultApologyMessage      = "We're sorry, an error occurred. Please try again later. Goodbye."
	DefaultInvalidInputMessage = "Sorry, I didn't understand that."
	DefaultGoodbyeMessage      = "Thank you for calling. Goodbye."
)
