// Package condition evaluates compiled workflow conditions against record snapshots.
package condition

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/flowcrm/pkg/events"
	"github.com/dukex/flowcrm/pkg/expression"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/schema"
)

// Evaluator decides whether a condition holds for a record or a record change.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	registry *schema.Registry
}

// NewEvaluator resolves field paths through registry.
func NewEvaluator(registry *schema.Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Satisfies evaluates every leaf against record.
func (e *Evaluator) Satisfies(node *expression.Node, record models.Record) (bool, error) {
	return e.walk(node, func(leaf *expression.Node) (bool, error) {
		field, err := e.field(record.EntityType(), leaf)
		if err != nil {
			return false, err
		}

		return compare(field, leaf.Operator(), field.Get(record), leaf.Value())
	})
}

// Evaluate evaluates each leaf against the snapshot its triggerOn selects.
func (e *Evaluator) Evaluate(node *expression.Node, event *events.EntityEvent) (bool, error) {
	return e.walk(node, func(leaf *expression.Node) (bool, error) {
		switch leaf.TriggerOn() {
		case expression.IsChanged:
			return e.SatisfiesValueIsChanged(event, leaf)
		case expression.OldValue:
			field, err := e.field(event.New.EntityType(), leaf)
			if err != nil {
				return false, err
			}

			var actual any
			if event.Old != nil {
				actual = field.Get(event.Old)
			}

			return compare(field, leaf.Operator(), actual, leaf.Value())
		default:
			field, err := e.field(event.New.EntityType(), leaf)
			if err != nil {
				return false, err
			}

			return compare(field, leaf.Operator(), field.Get(event.New), leaf.Value())
		}
	})
}

// SatisfiesValueIsChanged holds when the leaf's field differs between the old and new snapshots
// and, if the leaf also carries a comparison, the new value satisfies it.
func (e *Evaluator) SatisfiesValueIsChanged(event *events.EntityEvent, leaf *expression.Node) (bool, error) {
	field, err := e.field(event.New.EntityType(), leaf)
	if err != nil {
		return false, err
	}

	current := field.Get(event.New)

	var previous any
	if event.Old != nil {
		previous = field.Get(event.Old)
	}

	if reflect.DeepEqual(changeKey(previous), changeKey(current)) {
		return false, nil
	}

	if leaf.Value() == nil && !leaf.Operator().IsUnary() {
		return true, nil
	}

	return compare(field, leaf.Operator(), current, leaf.Value())
}

func (e *Evaluator) walk(node *expression.Node, leafFn func(*expression.Node) (bool, error)) (bool, error) {
	if node == nil {
		return false, expression.NewInvalidConditionError("", "", "expression is empty")
	}

	if node.IsLeaf() {
		return leafFn(node)
	}

	left, leftErr := e.walk(node.Left(), leafFn)
	right, rightErr := e.walk(node.Right(), leafFn)

	if leftErr != nil {
		return false, leftErr
	}

	if rightErr != nil {
		return false, rightErr
	}

	switch node.Operator() {
	case expression.And:
		return left && right, nil
	case expression.Or:
		return left || right, nil
	default:
		return false, expression.NewInvalidConditionError("", node.Operator(), "not a connective")
	}
}

func (e *Evaluator) field(entityType models.EntityType, leaf *expression.Node) (*schema.Field, error) {
	field, ok := e.registry.Lookup(entityType, leaf.Name())
	if !ok {
		return nil, expression.NewInvalidConditionError(leaf.Name(), leaf.Operator(), "unknown field for %s", entityType)
	}

	return field, nil
}

// changeKey reduces a value to what identifies it for change detection.
func changeKey(value any) any {
	switch v := value.(type) {
	case models.IdName:
		return v.ID
	case []models.IdName:
		ids := make([]int64, len(v))
		for i, ref := range v {
			ids[i] = ref.ID
		}

		return ids
	case models.Money:
		return v
	case time.Time:
		return v.UnixNano()
	default:
		if f, ok := numeric(value); ok {
			return f
		}

		return value
	}
}

// compare applies op to the actual value of field. Unary operators and absent values never fail.
func compare(field *schema.Field, op expression.Operator, actual, literal any) (bool, error) {
	if op.IsUnary() {
		return presence(op, actual), nil
	}

	if actual == nil {
		return nullOutcome(op), nil
	}

	c := comparison{path: field.Path, op: op, literal: literal}

	switch field.Kind {
	case schema.KindReference:
		return c.reference(actual.(models.IdName).ID)
	case schema.KindReferenceList:
		return c.referenceList(actual.([]models.IdName))
	case schema.KindMoney:
		return c.number(actual.(models.Money).Value)
	case schema.KindNumber:
		f, _ := numeric(actual)

		return c.number(f)
	case schema.KindBoolean:
		return c.boolean(actual.(bool))
	case schema.KindDate:
		return c.date(actual.(time.Time))
	case schema.KindMultiValue:
		return c.multi(actual.([]string))
	case schema.KindString:
		return c.text(actual.(string))
	default:
		return c.dynamic(actual)
	}
}

func presence(op expression.Operator, actual any) bool {
	empty := actual == nil
	if s, ok := actual.(string); ok {
		empty = strings.TrimSpace(s) == ""
	}

	switch op {
	case expression.IsNull:
		return actual == nil
	case expression.IsNotNull:
		return actual != nil
	case expression.IsEmpty:
		return empty
	default:
		return !empty
	}
}

func nullOutcome(op expression.Operator) bool {
	switch op {
	case expression.IsNull, expression.IsEmpty, expression.NotEqual, expression.NotIn, expression.NotContains:
		return true
	default:
		return false
	}
}

type comparison struct {
	path    string
	op      expression.Operator
	literal any
}

func (c comparison) unsupported(category string) (bool, error) {
	return false, expression.NewInvalidConditionError(c.path, c.op, "operator not supported for %s values", category)
}

func (c comparison) unparsable(category string) (bool, error) {
	return false, expression.NewInvalidConditionError(c.path, c.op, "value %v is not a valid %s", c.literal, category)
}

func (c comparison) reference(id int64) (bool, error) {
	switch c.op {
	case expression.Equal, expression.NotEqual:
		want, ok := refID(c.literal)
		if !ok {
			return c.unparsable("reference")
		}

		return (id == want) == (c.op == expression.Equal), nil
	case expression.In, expression.NotIn:
		ids, ok := refIDs(c.literal)
		if !ok {
			return c.unparsable("reference list")
		}

		found := false
		for _, want := range ids {
			found = found || want == id
		}

		return found == (c.op == expression.In), nil
	default:
		return c.unsupported("reference")
	}
}

func (c comparison) referenceList(refs []models.IdName) (bool, error) {
	switch c.op {
	case expression.Contains, expression.NotContains:
		ids, ok := refIDs(c.literal)
		if !ok {
			return c.unparsable("reference list")
		}

		found := false
		for _, want := range ids {
			for _, ref := range refs {
				found = found || ref.ID == want
			}
		}

		return found == (c.op == expression.Contains), nil
	default:
		return c.unsupported("reference list")
	}
}

func (c comparison) number(actual float64) (bool, error) {
	switch c.op {
	case expression.Equal, expression.NotEqual:
		want, ok := numberLiteral(c.literal)
		if !ok {
			return c.unparsable("number")
		}

		return (actual == want) == (c.op == expression.Equal), nil
	case expression.Greater, expression.GreaterOrEqual, expression.Less, expression.LessOrEqual:
		want, ok := numberLiteral(c.literal)
		if !ok {
			return c.unparsable("number")
		}

		return orderHolds(c.op, actual, want), nil
	case expression.Between, expression.NotBetween:
		bounds, ok := expression.AsList(c.literal)
		if !ok || len(bounds) != 2 {
			return c.unparsable("range")
		}

		lo, okLo := numberLiteral(bounds[0])
		hi, okHi := numberLiteral(bounds[1])
		if !okLo || !okHi || lo > hi {
			return c.unparsable("range")
		}

		inside := lo <= actual && actual <= hi

		return inside == (c.op == expression.Between), nil
	case expression.In, expression.NotIn:
		found := false
		for _, token := range tokens(c.literal) {
			if f, ok := schema.ToFloat(token); ok && f == actual {
				found = true
			}
		}

		return found == (c.op == expression.In), nil
	default:
		return c.unsupported("number")
	}
}

func (c comparison) text(actual string) (bool, error) {
	switch c.op {
	case expression.Equal, expression.NotEqual:
		equal := strings.EqualFold(actual, stringify(c.literal))
		if a, ok := schema.ToFloat(actual); ok {
			if b, ok := numberLiteral(c.literal); ok {
				equal = a == b
			}
		}

		return equal == (c.op == expression.Equal), nil
	case expression.Contains, expression.NotContains:
		found := strings.Contains(strings.ToLower(actual), strings.ToLower(stringify(c.literal)))

		return found == (c.op == expression.Contains), nil
	case expression.BeginsWith:
		return strings.HasPrefix(strings.ToLower(actual), strings.ToLower(stringify(c.literal))), nil
	case expression.In, expression.NotIn:
		found := false
		for _, token := range tokens(c.literal) {
			found = found || strings.EqualFold(actual, token)
		}

		return found == (c.op == expression.In), nil
	default:
		if f, ok := schema.ToFloat(actual); ok {
			return c.number(f)
		}

		return c.unsupported("text")
	}
}

func (c comparison) boolean(actual bool) (bool, error) {
	switch c.op {
	case expression.Equal, expression.NotEqual:
		want, err := strconv.ParseBool(strings.TrimSpace(stringify(c.literal)))
		if err != nil {
			return c.unparsable("boolean")
		}

		return (actual == want) == (c.op == expression.Equal), nil
	default:
		return c.unsupported("boolean")
	}
}

func (c comparison) date(actual time.Time) (bool, error) {
	switch c.op {
	case expression.Equal, expression.NotEqual:
		want, dateOnly, ok := dateLiteral(c.literal)
		if !ok {
			return c.unparsable("date")
		}

		equal := actual.Equal(want)
		if dateOnly {
			equal = actual.UTC().Format(time.DateOnly) == want.Format(time.DateOnly)
		}

		return equal == (c.op == expression.Equal), nil
	case expression.Greater, expression.GreaterOrEqual, expression.Less, expression.LessOrEqual:
		want, _, ok := dateLiteral(c.literal)
		if !ok {
			return c.unparsable("date")
		}

		return orderHolds(c.op, float64(actual.UnixMilli()), float64(want.UnixMilli())), nil
	case expression.Between, expression.NotBetween:
		bounds, ok := expression.AsList(c.literal)
		if !ok || len(bounds) != 2 {
			return c.unparsable("range")
		}

		lo, _, okLo := dateLiteral(bounds[0])
		hi, _, okHi := dateLiteral(bounds[1])
		if !okLo || !okHi || lo.After(hi) {
			return c.unparsable("range")
		}

		inside := !actual.Before(lo) && !actual.After(hi)

		return inside == (c.op == expression.Between), nil
	default:
		return c.unsupported("date")
	}
}

func (c comparison) multi(actual []string) (bool, error) {
	literal := stringify(c.literal)

	var match func(string) bool

	switch c.op {
	case expression.Equal, expression.NotEqual:
		match = func(v string) bool { return strings.EqualFold(v, literal) }
	case expression.Contains, expression.NotContains:
		match = func(v string) bool { return strings.Contains(strings.ToLower(v), strings.ToLower(literal)) }
	case expression.BeginsWith:
		match = func(v string) bool { return strings.HasPrefix(strings.ToLower(v), strings.ToLower(literal)) }
	case expression.In, expression.NotIn:
		candidates := tokens(c.literal)
		match = func(v string) bool {
			for _, token := range candidates {
				if strings.EqualFold(v, token) {
					return true
				}
			}

			return false
		}
	default:
		return c.unsupported("multi-value")
	}

	found := false
	for _, v := range actual {
		found = found || match(v)
	}

	switch c.op {
	case expression.NotEqual, expression.NotContains, expression.NotIn:
		return !found, nil
	default:
		return found, nil
	}
}

// dynamic compares tenant-defined fields by the shape of the stored value.
func (c comparison) dynamic(actual any) (bool, error) {
	if f, ok := numeric(actual); ok {
		return c.number(f)
	}

	switch v := actual.(type) {
	case bool:
		return c.boolean(v)
	case string:
		return c.text(v)
	case map[string]any:
		if id, ok := refID(v); ok {
			return c.reference(id)
		}
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			values = append(values, stringify(item))
		}

		return c.multi(values)
	}

	return c.text(fmt.Sprint(actual))
}

func orderHolds(op expression.Operator, actual, want float64) bool {
	switch op {
	case expression.Greater:
		return actual > want
	case expression.GreaterOrEqual:
		return actual >= want
	case expression.Less:
		return actual < want
	default:
		return actual <= want
	}
}

// numeric widens numbers to float64. Strings are not numbers here.
func numeric(value any) (float64, bool) {
	if _, ok := value.(string); ok {
		return 0, false
	}

	return schema.ToFloat(value)
}

func numberLiteral(literal any) (float64, bool) {
	if m, ok := literal.(map[string]any); ok {
		return schema.ToFloat(m["value"])
	}

	return schema.ToFloat(literal)
}

func dateLiteral(literal any) (time.Time, bool, bool) {
	if s, ok := literal.(string); ok {
		t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
		if err == nil {
			return t, true, true
		}
	}

	t, ok := schema.ToTime(literal)

	return t, false, ok
}

// refID extracts the id a literal refers to: a number, a numeric string, or an {id, name} pair.
func refID(literal any) (int64, bool) {
	switch v := literal.(type) {
	case models.IdName:
		return v.ID, true
	case *models.IdName:
		if v == nil {
			return 0, false
		}

		return v.ID, true
	case map[string]any:
		return schema.ToInt64(v["id"])
	default:
		return schema.ToInt64(literal)
	}
}

func refIDs(literal any) ([]int64, bool) {
	if s, ok := literal.(string); ok {
		var ids []int64
		for _, token := range tokens(s) {
			id, ok := schema.ToInt64(token)
			if !ok {
				return nil, false
			}

			ids = append(ids, id)
		}

		return ids, len(ids) > 0
	}

	if list, ok := expression.AsList(literal); ok {
		ids := make([]int64, 0, len(list))
		for _, item := range list {
			id, ok := refID(item)
			if !ok {
				return nil, false
			}

			ids = append(ids, id)
		}

		return ids, true
	}

	id, ok := refID(literal)
	if !ok {
		return nil, false
	}

	return []int64{id}, true
}

// tokens splits an IN literal: a comma-separated string, or a list.
func tokens(literal any) []string {
	if list, ok := expression.AsList(literal); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, stringify(item))
		}

		return out
	}

	var out []string
	for _, token := range strings.Split(stringify(literal), ",") {
		if token = strings.TrimSpace(token); token != "" {
			out = append(out, token)
		}
	}

	return out
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case models.IdName:
		return v.Name
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			return name
		}

		return fmt.Sprint(v)
	default:
		return fmt.Sprint(v)
	}
}
