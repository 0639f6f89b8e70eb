package execution

import (
	"time"

	"github.com/dukex/ivrflow/pkg/models"
)

// Visit describes one node run recorded in the visit history.
type Visit struct {
	NodeID   string
	NodeType models.NodeType
	Input    string
	Success  bool
	Err      error
}

// ApplyVisit appends the visit, moves the current node and counts the execution step.
func ApplyVisit(execution *models.Execution, visit Visit, at time.Time) {
	entry := models.VisitedNode{
		NodeID:    visit.NodeID,
		NodeType:  visit.NodeType,
		VisitedAt: at,
		Input:     visit.Input,
		Success:   visit.Success,
	}

	if visit.Err != nil {
		entry.Error = visit.Err.Error()
	}

	execution.VisitedNodes = append(execution.VisitedNodes, entry)
	execution.CurrentNodeID = visit.NodeID
	execution.NodeExecutionCount++
}

// ApplyEnd ends an active execution. It reports false when the execution was already terminal,
// leaving it untouched.
func ApplyEnd(execution *models.Execution, status models.ExecutionStatus, reason string, cause error, at time.Time) (bool, error) {
	if execution.Status.IsTerminal() {
		return false, nil
	}

	if err := Transition(execution, status); err != nil {
		return false, err
	}

	ended := at
	execution.EndedAt = &ended
	execution.DurationMillis = ended.Sub(execution.StartedAt).Milliseconds()
	execution.EndReason = reason

	if cause != nil {
		execution.Error = cause.Error()
	}

	return true, nil
}

// IncrementCounter bumps a named counter and returns the new value.
func IncrementCounter(execution *models.Execution, name string) int {
	if execution.Counters == nil {
		execution.Counters = map[string]int{}
	}

	execution.Counters[name]++

	return execution.Counters[name]
}

func SetVariable(execution *models.Execution, name string, value any) {
	if execution.Variables == nil {
		execution.Variables = map[string]any{}
	}

	execution.Variables[name] = value
}
