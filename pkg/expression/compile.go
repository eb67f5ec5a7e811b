package expression

import (
	"fmt"
	"slices"
	"strings"
)

// slot is an element of the working sequence during compilation: a sub-tree, or a pending connective.
type slot struct {
	node *Node
	op   Operator
}

// Validate checks the shape of a flat term list.
func Validate(terms []Term) error {
	if len(terms) == 0 {
		return &InvalidConditionError{Index: -1, Message: "condition requires at least one term"}
	}

	if len(terms)%2 == 0 {
		return &InvalidConditionError{Index: len(terms) - 1, Message: "condition must start and end with a comparison"}
	}

	for i, term := range terms {
		if i%2 == 1 {
			if !term.IsConnective() {
				return termError(i, term, "expected AND or OR, got %q", term.Operator)
			}

			continue
		}

		if err := validateTerm(i, term); err != nil {
			return err
		}
	}

	return nil
}

func validateTerm(i int, term Term) error {
	switch {
	case term.Operator == "":
		return termError(i, term, "operator is required")
	case term.IsConnective():
		return termError(i, term, "expected a comparison, got connective")
	case !term.Operator.IsComparison():
		return termError(i, term, "unknown operator")
	case strings.TrimSpace(term.Name) == "":
		return termError(i, term, "field name is required")
	case term.TriggerOn != "" && !term.TriggerOn.Valid():
		return termError(i, term, "unknown triggerOn %q", term.TriggerOn)
	}

	if term.Operator.IsUnary() {
		return nil
	}

	if isBlank(term.Value) {
		// a change-detection leaf without a literal only asks whether the field changed
		if term.TriggerOn == IsChanged {
			return nil
		}

		return termError(i, term, "value is required")
	}

	if term.Operator.IsRange() {
		values, ok := AsList(term.Value)
		if !ok || len(values) != 2 {
			return termError(i, term, "requires exactly two values")
		}

		if isBlank(values[0]) || isBlank(values[1]) {
			return termError(i, term, "range bounds cannot be empty")
		}
	}

	return nil
}

// Compile builds the expression tree for a flat term list. AND binds tighter than OR and
// both are left associative.
func Compile(terms []Term) (*Node, error) {
	if err := Validate(terms); err != nil {
		return nil, err
	}

	seq := make([]slot, 0, len(terms))
	for _, term := range terms {
		if term.IsConnective() {
			seq = append(seq, slot{op: term.Operator})

			continue
		}

		seq = append(seq, slot{node: NewLeaf(term)})
	}

	seq = fold(seq, And)
	seq = fold(seq, Or)

	if len(seq) != 1 || seq[0].node == nil {
		return nil, fmt.Errorf("%w: term list did not reduce to a single expression", ErrInvalidCondition)
	}

	return seq[0].node, nil
}

// fold repeatedly replaces the first (left, op, right) triple with a single connective node.
func fold(seq []slot, op Operator) []slot {
	for {
		i := slices.IndexFunc(seq, func(s slot) bool { return s.node == nil && s.op == op })
		if i < 0 {
			return seq
		}

		merged := slot{node: NewConnective(op, seq[i-1].node, seq[i+1].node)}
		seq = slices.Replace(seq, i-1, i+2, merged)
	}
}

// Flatten walks the tree in order and returns the flat term list it was compiled from.
func Flatten(node *Node) []Term {
	if node == nil {
		return nil
	}

	if node.IsLeaf() {
		return []Term{node.Term()}
	}

	terms := Flatten(node.left)
	terms = append(terms, node.Term())

	return append(terms, Flatten(node.right)...)
}

// AsList converts a literal holding several values into a slice.
func AsList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		return toAny(v), true
	case []float64:
		return toAny(v), true
	case []int:
		return toAny(v), true
	case []int64:
		return toAny(v), true
	default:
		return nil, false
	}
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}

	return out
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	default:
		return false
	}
}
