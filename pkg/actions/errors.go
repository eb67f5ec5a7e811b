package actions

import (
	"errors"
	"fmt"

	"github.com/dukex/flowcrm/pkg/models"
)

var (
	ErrInvalidAction     = errors.New("invalid action")
	ErrWorkflowExecution = errors.New("workflow execution failed")
)

// InvalidActionError is returned when an action definition cannot be accepted.
type InvalidActionError struct {
	ActionType models.ActionType
	Field      string
	Message    string
}

func (e *InvalidActionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s action: %s: %s", e.ActionType, e.Field, e.Message)
	}

	return fmt.Sprintf("invalid %s action: %s", e.ActionType, e.Message)
}

func (e *InvalidActionError) Is(target error) bool {
	return target == ErrInvalidAction
}

// WorkflowExecutionError is returned when an action fails while it runs.
type WorkflowExecutionError struct {
	ActionType models.ActionType
	WorkflowID int64
	Err        error
}

func (e *WorkflowExecutionError) Error() string {
	return fmt.Sprintf("workflow %d: %s action failed: %v", e.WorkflowID, e.ActionType, e.Err)
}

func (e *WorkflowExecutionError) Unwrap() error {
	return e.Err
}

func (e *WorkflowExecutionError) Is(target error) bool {
	return target == ErrWorkflowExecution
}

func executionError(actionType models.ActionType, exec *Execution, format string, args ...any) error {
	return &WorkflowExecutionError{ActionType: actionType, WorkflowID: exec.WorkflowID, Err: fmt.Errorf(format, args...)}
}
