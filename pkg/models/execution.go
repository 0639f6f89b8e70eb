package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionStatus is the lifecycle state of a call execution.
type ExecutionStatus string

const (
	ExecutionStatusActive    ExecutionStatus = "active"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusTimeout   ExecutionStatus = "timeout"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) IsTerminal() bool {
	return s != ExecutionStatusActive
}

// VisitedNode is one entry of the append-only visit history.
type VisitedNode struct {
	NodeID    string    `json:"nodeId"`
	NodeType  NodeType  `json:"nodeType"`
	VisitedAt time.Time `json:"visitedAt"`
	Input     string    `json:"input,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Execution is the state of one call walking through a workflow.
type Execution struct {
	CallID             string          `json:"callId"`
	WorkflowID         string          `json:"workflowId"`
	TenantID           string          `json:"tenantId"`
	Caller             string          `json:"caller"`
	Callee             string          `json:"callee"`
	CurrentNodeID      string          `json:"currentNodeId"`
	Status             ExecutionStatus `json:"status"`
	VisitedNodes       []VisitedNode   `json:"visitedNodes"`
	Variables          map[string]any  `json:"variables"`
	Counters           map[string]int  `json:"counters"`
	NodeExecutionCount int             `json:"nodeExecutionCount"`
	StartedAt          time.Time       `json:"startedAt"`
	EndedAt            *time.Time      `json:"endedAt,omitempty"`
	DurationMillis     int64           `json:"durationMs,omitempty"`
	EndReason          string          `json:"endReason,omitempty"`
	Error              string          `json:"error,omitempty"`

	// Version guards read-modify-write updates. Stores reject writes carrying a stale version.
	Version int64 `json:"version"`

	LastFingerprint string `json:"lastFingerprint,omitempty"`
	LastResponse    string `json:"lastResponse,omitempty"`
}

// NewExecution returns an active execution with empty bags.
func NewExecution(callID, workflowID, tenantID, caller, callee string, startedAt time.Time) *Execution {
	return &Execution{
		CallID:       callID,
		WorkflowID:   workflowID,
		TenantID:     tenantID,
		Caller:       caller,
		Callee:       callee,
		Status:       ExecutionStatusActive,
		VisitedNodes: []VisitedNode{},
		Variables:    map[string]any{},
		Counters:     map[string]int{},
		StartedAt:    startedAt,
	}
}

// Duration is the call length so far, or the final length once ended.
func (e *Execution) Duration(now time.Time) time.Duration {
	if e.EndedAt != nil {
		return e.EndedAt.Sub(e.StartedAt)
	}

	return now.Sub(e.StartedAt)
}

// PreviousNodeID returns the most recently visited node other than exclude.
func (e *Execution) PreviousNodeID(exclude string) string {
	for i := len(e.VisitedNodes) - 1; i >= 0; i-- {
		if id := e.VisitedNodes[i].NodeID; id != exclude {
			return id
		}
	}

	return ""
}

// Clone returns a deep copy.
func (e *Execution) Clone() (*Execution, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution: %w", err)
	}

	var clone Execution
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}

	if clone.Variables == nil {
		clone.Variables = map[string]any{}
	}

	if clone.Counters == nil {
		clone.Counters = map[string]int{}
	}

	return &clone, nil
}
