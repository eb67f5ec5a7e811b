package persistence

import (
	"errors"
	"fmt"
)

var ErrWorkflowNotFound = errors.New("workflow not found")

// WorkflowError wraps a failed repository operation with the workflow it concerned.
type WorkflowError struct {
	Op         string
	WorkflowID int64
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %d: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func NewWorkflowError(op string, workflowID int64, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
