package execution

import (
	"errors"
	"fmt"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/qmuntal/stateless"
)

// ErrInvalidTransition is returned when a terminal execution is moved to another status.
var ErrInvalidTransition = errors.New("invalid execution status transition")

type trigger string

const (
	triggerComplete trigger = "complete"
	triggerFail     trigger = "fail"
	triggerTimeout  trigger = "timeout"
	triggerCancel   trigger = "cancel"
)

var triggerFor = map[models.ExecutionStatus]trigger{
	models.ExecutionStatusCompleted: triggerComplete,
	models.ExecutionStatusFailed:    triggerFail,
	models.ExecutionStatusTimeout:   triggerTimeout,
	models.ExecutionStatusCancelled: triggerCancel,
}

func lifecycle(status models.ExecutionStatus) *stateless.StateMachine {
	fsm := stateless.NewStateMachine(status)

	fsm.Configure(models.ExecutionStatusActive).
		Permit(triggerComplete, models.ExecutionStatusCompleted).
		Permit(triggerFail, models.ExecutionStatusFailed).
		Permit(triggerTimeout, models.ExecutionStatusTimeout).
		Permit(triggerCancel, models.ExecutionStatusCancelled)

	fsm.Configure(models.ExecutionStatusCompleted)
	fsm.Configure(models.ExecutionStatusFailed)
	fsm.Configure(models.ExecutionStatusTimeout)
	fsm.Configure(models.ExecutionStatusCancelled)

	return fsm
}

// Transition moves the execution to a terminal status.
func Transition(execution *models.Execution, status models.ExecutionStatus) error {
	t, ok := triggerFor[status]
	if !ok {
		return fmt.Errorf("%w: %s is not a terminal status", ErrInvalidTransition, status)
	}

	fsm := lifecycle(execution.Status)

	if err := fsm.Fire(t); err != nil {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, execution.Status, status)
	}

	execution.Status = fsm.MustState().(models.ExecutionStatus)

	return nil
}
