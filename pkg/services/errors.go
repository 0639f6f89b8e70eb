// Package services holds the workflow editing rules shared by the HTTP surface and the CLI.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/ivrflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidStatus        = errors.New("invalid workflow status")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrTenantRequired       = errors.New("workflow tenant is required")
	ErrInvalidGraph         = errors.New("invalid workflow graph")

	// Activation Errors (422 Unprocessable Entity).
	ErrNodesRequired     = errors.New("workflow must have at least one node")
	ErrStartNodeRequired = errors.New("workflow must have a start node")

	// Business Logic Conflicts (409 Conflict).
	ErrNodeTypeChanged = errors.New("node type cannot change")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string   // Operation name
	Code    string   // Error code for API responses
	Message string   // Human-readable message
	Details []string // Individual problems, e.g. graph validation messages
	Err     error    // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrTenantRequired) ||
		errors.Is(err, ErrInvalidGraph)
}

// IsActivationError reports a workflow that is well formed but cannot take calls yet.
func IsActivationError(err error) bool {
	return errors.Is(err, ErrNodesRequired) || errors.Is(err, ErrStartNodeRequired)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNodeTypeChanged) || persistence.IsConflict(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
