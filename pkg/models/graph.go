package models

import (
	"fmt"
	"strings"
)

// GraphReport collects the problems found in a workflow graph.
type GraphReport struct {
	Errors      []string                    `json:"errors"`
	Warnings    []string                    `json:"warnings"`
	NodeResults map[string]ValidationResult `json:"nodeResults"`
}

func (r GraphReport) Valid() bool {
	return len(r.Errors) == 0
}

// GraphError is returned when a workflow graph fails validation.
type GraphError struct {
	Report GraphReport
}

func (e *GraphError) Error() string {
	return "invalid workflow graph: " + strings.Join(e.Report.Errors, "; ")
}

// Err returns a *GraphError when the report has errors.
func (r GraphReport) Err() error {
	if r.Valid() {
		return nil
	}

	return &GraphError{Report: r}
}

// ValidateGraph checks node id uniqueness, edge endpoints, branch ambiguity and every node payload.
func ValidateGraph(workflow *Workflow) GraphReport {
	report := GraphReport{
		Errors:      []string{},
		Warnings:    []string{},
		NodeResults: map[string]ValidationResult{},
	}

	nodes := make(map[string]*Node, len(workflow.Nodes))

	for i, node := range workflow.Nodes {
		if node == nil {
			report.Errors = append(report.Errors, fmt.Sprintf("node at position %d is empty", i))

			continue
		}

		if node.ID == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("node at position %d has no id", i))

			continue
		}

		if _, exists := nodes[node.ID]; exists {
			report.Errors = append(report.Errors, fmt.Sprintf("duplicate node id %s", node.ID))

			continue
		}

		nodes[node.ID] = node

		result := ValidateNode(node.Type, node.Data)
		report.NodeResults[node.ID] = result

		for _, msg := range result.Errors {
			report.Errors = append(report.Errors, fmt.Sprintf("node %s: %s", node.ID, msg))
		}

		for _, msg := range result.Warnings {
			report.Warnings = append(report.Warnings, fmt.Sprintf("node %s: %s", node.ID, msg))
		}
	}

	branches := make(map[string]bool, len(workflow.Edges))

	for _, edge := range workflow.Edges {
		if _, ok := nodes[edge.Source]; !ok {
			report.Errors = append(report.Errors, fmt.Sprintf("edge %s references unknown source %s", edge.ID, edge.Source))
		}

		if _, ok := nodes[edge.Target]; !ok {
			report.Errors = append(report.Errors, fmt.Sprintf("edge %s references unknown target %s", edge.ID, edge.Target))
		}

		key := edge.Source + "\x00" + edge.Handle()
		if branches[key] {
			report.Errors = append(report.Errors, fmt.Sprintf("node %s has more than one edge for branch %q", edge.Source, edge.Handle()))
		}

		branches[key] = true
	}

	repeatTargets(workflow, nodes, &report)

	if len(workflow.Nodes) == 0 {
		report.Warnings = append(report.Warnings, "workflow has no nodes")
	}

	return report
}

func repeatTargets(workflow *Workflow, nodes map[string]*Node, report *GraphReport) {
	for _, node := range workflow.Nodes {
		if node == nil {
			continue
		}

		data, ok := node.Data.(*RepeatData)
		if !ok || data.FallbackNodeID == "" {
			continue
		}

		if _, exists := nodes[data.FallbackNodeID]; !exists {
			report.Errors = append(report.Errors, fmt.Sprintf("node %s: fallback node %s does not exist", node.ID, data.FallbackNodeID))
		}
	}
}
