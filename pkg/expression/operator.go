// Package expression holds the condition tree of a workflow and the compiler that builds it
// from the flat term list authors edit.
package expression

// Operator is either a connective (AND, OR) or a comparison applied by a leaf.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"

	Equal          Operator = "EQUAL"
	NotEqual       Operator = "NOT_EQUAL"
	Greater        Operator = "GREATER"
	GreaterOrEqual Operator = "GREATER_OR_EQUAL"
	Less           Operator = "LESS"
	LessOrEqual    Operator = "LESS_OR_EQUAL"
	Between        Operator = "BETWEEN"
	NotBetween     Operator = "NOT_BETWEEN"
	In             Operator = "IN"
	NotIn          Operator = "NOT_IN"
	Contains       Operator = "CONTAINS"
	NotContains    Operator = "NOT_CONTAINS"
	BeginsWith     Operator = "BEGINS_WITH"
	IsNull         Operator = "IS_NULL"
	IsNotNull      Operator = "IS_NOT_NULL"
	IsEmpty        Operator = "IS_EMPTY"
	IsNotEmpty     Operator = "IS_NOT_EMPTY"
)

// ComparisonOperators lists every operator a leaf may carry.
var ComparisonOperators = []Operator{
	Equal, NotEqual,
	Greater, GreaterOrEqual, Less, LessOrEqual,
	Between, NotBetween,
	In, NotIn,
	Contains, NotContains, BeginsWith,
	IsNull, IsNotNull, IsEmpty, IsNotEmpty,
}

// IsConnective reports whether op joins two sub-expressions.
func (op Operator) IsConnective() bool {
	return op == And || op == Or
}

// IsComparison reports whether op is a known leaf operator.
func (op Operator) IsComparison() bool {
	for _, c := range ComparisonOperators {
		if c == op {
			return true
		}
	}

	return false
}

// IsUnary reports whether op takes no literal value.
func (op Operator) IsUnary() bool {
	switch op {
	case IsNull, IsNotNull, IsEmpty, IsNotEmpty:
		return true
	default:
		return false
	}
}

// IsRange reports whether op takes a two-element [from, to] literal.
func (op Operator) IsRange() bool {
	return op == Between || op == NotBetween
}

// TriggerOn selects which snapshot of an event a leaf is evaluated against.
type TriggerOn string

const (
	NewValue  TriggerOn = "NEW_VALUE"
	OldValue  TriggerOn = "OLD_VALUE"
	IsChanged TriggerOn = "IS_CHANGED"
)

// Valid reports whether t is a known trigger selection. The empty value is not valid.
func (t TriggerOn) Valid() bool {
	switch t {
	case NewValue, OldValue, IsChanged:
		return true
	default:
		return false
	}
}
