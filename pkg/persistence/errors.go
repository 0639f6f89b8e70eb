package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrActiveWorkflowNotFound indicates the tenant has no active workflow.
	ErrActiveWorkflowNotFound = errors.New("active workflow not found")

	// ErrNodeNotFound indicates a node was not found in the workflow.
	ErrNodeNotFound = errors.New("node not found")

	// ErrRevisionConflict indicates the workflow changed since it was read.
	ErrRevisionConflict = errors.New("workflow revision conflict")

	// ErrExecutionNotFound indicates no execution exists for the call.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrDuplicateCall indicates an execution already exists for the call.
	ErrDuplicateCall = errors.New("execution already exists for call")

	// ErrVersionConflict indicates the execution was updated concurrently.
	ErrVersionConflict = errors.New("execution version conflict")

	// ErrAudioJobNotFound indicates an audio job was not found.
	ErrAudioJobNotFound = errors.New("audio job not found")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "UpdateNodeAudio")
	WorkflowID string
	NodeID     string
	Err        error
}

func (e *WorkflowError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s operation failed for node %s in workflow %s: %v", e.Op, e.NodeID, e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

func NewNodeError(op, workflowID, nodeID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, NodeID: nodeID, Err: err}
}

// ExecutionError wraps execution-related errors with the call they belong to.
type ExecutionError struct {
	Op     string
	CallID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for call %s: %v", e.Op, e.CallID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewExecutionError(op, callID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, CallID: callID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) || errors.Is(err, ErrActiveWorkflowNotFound)
}

func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsConflict reports optimistic concurrency failures of any store.
func IsConflict(err error) bool {
	return errors.Is(err, ErrRevisionConflict) || errors.Is(err, ErrVersionConflict)
}
