// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/google/uuid"
)

const TestTenant = "acme"

// CreateTestWorkflow creates an active greeting → end workflow that can be overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:       uuid.New().String(),
		TenantID: TestTenant,
		Name:     "Test workflow",
		Status:   models.WorkflowStatusActive,
		Nodes: []*models.Node{
			models.NewNode("welcome", models.NodeTypeGreeting, &models.GreetingData{Text: "Welcome."}),
			models.NewNode("bye", models.NodeTypeEnd, &models.EndData{Message: "Goodbye."}),
		},
		Edges: []*models.Edge{Edge("welcome", "bye")},
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

func WithID(id string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.ID = id
	}
}

func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
	}
}

// WithGraph replaces nodes and edges.
func WithGraph(nodes []*models.Node, edges ...*models.Edge) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Nodes = nodes
		w.Edges = edges
	}
}

// Edge is the default transition from source to target.
func Edge(source, target string) *models.Edge {
	return &models.Edge{ID: source + "-" + target, Source: source, Target: target}
}

// Branch is the transition taken when source reports handle.
func Branch(source, handle, target string) *models.Edge {
	return &models.Edge{ID: source + "-" + handle + "-" + target, Source: source, Target: target, SourceHandle: &handle}
}
