package expression

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Term is one element of the flat list authors edit: a comparison, or a bare AND/OR connective.
type Term struct {
	Operator  Operator  `json:"operator"`
	Name      string    `json:"name,omitempty"`
	Value     any       `json:"value,omitempty"`
	TriggerOn TriggerOn `json:"triggerOn,omitempty"`
}

// IsConnective reports whether the term is an AND/OR marker.
func (t Term) IsConnective() bool {
	return t.Operator.IsConnective()
}

// Node is an immutable node of a compiled condition. Leaves carry a comparison; internal
// nodes carry AND/OR and exactly two children.
type Node struct {
	operator  Operator
	name      string
	value     any
	triggerOn TriggerOn
	left      *Node
	right     *Node
}

// NewLeaf builds a leaf from a comparison term.
func NewLeaf(term Term) *Node {
	return &Node{
		operator:  term.Operator,
		name:      term.Name,
		value:     term.Value,
		triggerOn: term.TriggerOn,
	}
}

// NewConnective joins two sub-trees.
func NewConnective(op Operator, left, right *Node) *Node {
	return &Node{operator: op, left: left, right: right}
}

// Operator returns the comparison of a leaf or the connective joining two sub-trees.
func (n *Node) Operator() Operator { return n.operator }

// Name returns the field path a leaf compares.
func (n *Node) Name() string { return n.name }

// Value returns the literal a leaf compares against.
func (n *Node) Value() any { return n.value }

// Left returns the first operand of a connective, nil for a leaf.
func (n *Node) Left() *Node { return n.left }

// Right returns the second operand of a connective, nil for a leaf.
func (n *Node) Right() *Node { return n.right }

// IsLeaf reports whether n is a comparison rather than a connective.
func (n *Node) IsLeaf() bool {
	return n.left == nil && n.right == nil
}

// TriggerOn returns the snapshot selection of a leaf, NEW_VALUE when none was given.
func (n *Node) TriggerOn() TriggerOn {
	if n.triggerOn == "" && n.IsLeaf() {
		return NewValue
	}

	return n.triggerOn
}

// WithValue returns a copy of the leaf carrying a different literal.
func (n *Node) WithValue(value any) *Node {
	c := *n
	c.value = value

	return &c
}

// Term returns the leaf as a flat term, or the connective marker of an internal node.
func (n *Node) Term() Term {
	if !n.IsLeaf() {
		return Term{Operator: n.operator}
	}

	return Term{
		Operator:  n.operator,
		Name:      n.name,
		Value:     n.value,
		TriggerOn: n.triggerOn,
	}
}

// Leaves returns the leaves of the tree, left to right.
func (n *Node) Leaves() []*Node {
	if n == nil {
		return nil
	}

	if n.IsLeaf() {
		return []*Node{n}
	}

	return append(n.left.Leaves(), n.right.Leaves()...)
}

// Equal reports whether two trees have the same shape and content.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}

	if n.operator != other.operator || n.name != other.name || n.triggerOn != other.triggerOn {
		return false
	}

	if !reflect.DeepEqual(n.value, other.value) {
		return false
	}

	return n.left.Equal(other.left) && n.right.Equal(other.right)
}

type nodeJSON struct {
	Operator  Operator          `json:"operator"`
	Name      string            `json:"name,omitempty"`
	Value     any               `json:"value,omitempty"`
	TriggerOn TriggerOn         `json:"triggerOn,omitempty"`
	Operands  []json.RawMessage `json:"operands,omitempty"`
}

func (n *Node) MarshalJSON() ([]byte, error) {
	out := map[string]any{"operator": n.operator}

	if n.IsLeaf() {
		out["name"] = n.name
		if n.value != nil {
			out["value"] = n.value
		}

		if n.triggerOn != "" {
			out["triggerOn"] = n.triggerOn
		}

		return json.Marshal(out)
	}

	out["operands"] = []*Node{n.left, n.right}

	return json.Marshal(out)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Operator.IsConnective():
		if len(raw.Operands) != 2 {
			return NewInvalidConditionError("", raw.Operator, "connective requires exactly two operands, got %d", len(raw.Operands))
		}

		var left, right Node
		if err := json.Unmarshal(raw.Operands[0], &left); err != nil {
			return err
		}

		if err := json.Unmarshal(raw.Operands[1], &right); err != nil {
			return err
		}

		*n = Node{operator: raw.Operator, left: &left, right: &right}
	case raw.Operator.IsComparison():
		if len(raw.Operands) != 0 {
			return NewInvalidConditionError(raw.Name, raw.Operator, "comparison cannot have operands")
		}

		if raw.Name == "" {
			return NewInvalidConditionError("", raw.Operator, "comparison requires a field name")
		}

		*n = Node{operator: raw.Operator, name: raw.Name, value: raw.Value, triggerOn: raw.TriggerOn}
	default:
		return NewInvalidConditionError(raw.Name, raw.Operator, "unknown operator")
	}

	return nil
}

// String renders the tree in infix form, mostly for logs.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}

	if n.IsLeaf() {
		if n.value == nil {
			return fmt.Sprintf("%s %s", n.name, n.operator)
		}

		return fmt.Sprintf("%s %s %v", n.name, n.operator, n.value)
	}

	return fmt.Sprintf("(%s %s %s)", n.left, n.operator, n.right)
}
