package expression

import (
	"errors"
	"fmt"
)

var ErrInvalidCondition = errors.New("invalid condition")

// InvalidConditionError reports a malformed term list, or an operator that cannot be applied
// to the category of value it meets during evaluation.
type InvalidConditionError struct {
	Field    string
	Operator Operator
	Index    int
	Message  string
}

func (e *InvalidConditionError) Error() string {
	switch {
	case e.Field != "" && e.Operator != "":
		return fmt.Sprintf("invalid condition on field %q with operator %s: %s", e.Field, e.Operator, e.Message)
	case e.Field != "":
		return fmt.Sprintf("invalid condition on field %q: %s", e.Field, e.Message)
	case e.Index >= 0:
		return fmt.Sprintf("invalid condition at position %d: %s", e.Index, e.Message)
	default:
		return "invalid condition: " + e.Message
	}
}

func (e *InvalidConditionError) Unwrap() error {
	return ErrInvalidCondition
}

func (e *InvalidConditionError) Is(target error) bool {
	return target == ErrInvalidCondition
}

// NewInvalidConditionError builds an error not tied to a term position.
func NewInvalidConditionError(field string, op Operator, format string, args ...any) *InvalidConditionError {
	return &InvalidConditionError{
		Field:    field,
		Operator: op,
		Index:    -1,
		Message:  fmt.Sprintf(format, args...),
	}
}

func termError(index int, term Term, format string, args ...any) *InvalidConditionError {
	return &InvalidConditionError{
		Field:    term.Name,
		Operator: term.Operator,
		Index:    index,
		Message:  fmt.Sprintf(format, args...),
	}
}
