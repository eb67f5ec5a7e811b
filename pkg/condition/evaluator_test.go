package condition

import (
	"testing"
	"time"

	"github.com/dukex/flowcrm/pkg/events"
	"github.com/dukex/flowcrm/pkg/expression"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func leaf(op expression.Operator, name string, value any) *expression.Node {
	return expression.NewLeaf(expression.Term{Operator: op, Name: name, Value: value})
}

func compile(t *testing.T, terms ...expression.Term) *expression.Node {
	t.Helper()

	node, err := expression.Compile(terms)
	require.NoError(t, err)

	return node
}

func newEvaluator() *Evaluator {
	return NewEvaluator(schema.Default())
}

func sampleLead() *models.Lead {
	created := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	lead := &models.Lead{
		ID:           7,
		TenantID:     3,
		FirstName:    "Om",
		LastName:     "Shah",
		City:         "Pune",
		Emails:       []models.Email{{Value: "om@acme.io", Primary: true}},
		OwnerID:      &models.IdName{ID: 242, Name: "Tony"},
		Pipeline:     &models.IdName{ID: 11, Name: "Inbound"},
		Products:     []models.IdName{{ID: 1, Name: "Widget"}, {ID: 2, Name: "Gadget"}},
		Score:        ptr(10.0),
		DoNotDisturb: true,
		CreatedAt:    &created,
	}

	lead.CustomFieldValues = map[string]any{
		"tier":    "gold",
		"seats":   25.0,
		"regions": []any{"EMEA", "APAC"},
	}

	return lead
}

func TestSatisfies_ReferenceComparedById(t *testing.T) {
	deal := &models.Deal{ID: 1, OwnedBy: &models.IdName{ID: 242, Name: "Tony"}}
	e := newEvaluator()

	tests := []struct {
		name    string
		literal any
		want    bool
	}{
		{"same id", 242.0, true},
		{"same id different name", map[string]any{"id": 242.0, "name": "Someone else"}, true},
		{"numeric string", "242", true},
		{"other id", 243.0, false},
		{"other id same name", map[string]any{"id": 243.0, "name": "Tony"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Satisfies(leaf(expression.Equal, "ownedBy", tt.literal), deal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			got, err = e.Satisfies(leaf(expression.NotEqual, "ownedBy", tt.literal), deal)
			require.NoError(t, err)
			assert.Equal(t, !tt.want, got)
		})
	}
}

func TestSatisfies_NullActualValueIsTotal(t *testing.T) {
	e := newEvaluator()
	lead := &models.Lead{ID: 7}

	want := map[expression.Operator]bool{
		expression.IsNull:      true,
		expression.IsEmpty:     true,
		expression.NotEqual:    true,
		expression.NotIn:       true,
		expression.NotContains: true,
	}

	literals := map[expression.Operator]any{
		expression.Between:    []any{1.0, 5.0},
		expression.NotBetween: []any{1.0, 5.0},
	}

	for _, field := range []string{"firstName", "score", "pipeline", "products", "createdAt", "emails", "customFieldValues.tier"} {
		for _, op := range expression.ComparisonOperators {
			literal, ok := literals[op]
			if !ok {
				literal = "1"
			}

			got, err := e.Satisfies(leaf(op, field, literal), lead)
			require.NoError(t, err, "%s %s", field, op)
			assert.Equal(t, want[op], got, "%s %s", field, op)
		}
	}
}

func TestSatisfies_Categories(t *testing.T) {
	e := newEvaluator()
	lead := sampleLead()

	tests := []struct {
		name string
		node *expression.Node
		want bool
	}{
		{"string equal ignores case", leaf(expression.Equal, "firstName", "om"), true},
		{"string not equal", leaf(expression.NotEqual, "firstName", "Yash"), true},
		{"string contains", leaf(expression.Contains, "lastName", "HA"), true},
		{"string not contains", leaf(expression.NotContains, "lastName", "xyz"), true},
		{"string begins with", leaf(expression.BeginsWith, "city", "pu"), true},
		{"string in trims tokens", leaf(expression.In, "city", "Mumbai,  pune , Delhi"), true},
		{"string not in", leaf(expression.NotIn, "city", "Mumbai, Delhi"), true},
		{"number equal widens", leaf(expression.Equal, "score", int64(10)), true},
		{"number equal from string", leaf(expression.Equal, "score", "10"), true},
		{"number greater", leaf(expression.Greater, "score", 9.5), true},
		{"number less or equal", leaf(expression.LessOrEqual, "score", 10.0), true},
		{"number less", leaf(expression.Less, "score", 10.0), false},
		{"between includes lower bound", leaf(expression.Between, "score", []any{10.0, 20.0}), true},
		{"between includes upper bound", leaf(expression.Between, "score", []any{1.0, 10.0}), true},
		{"between outside", leaf(expression.Between, "score", []any{11.0, 20.0}), false},
		{"not between", leaf(expression.NotBetween, "score", []any{11.0, 20.0}), true},
		{"number in", leaf(expression.In, "score", "5, 10"), true},
		{"reference sub path", leaf(expression.Equal, "pipeline.name", "inbound"), true},
		{"reference in", leaf(expression.In, "pipeline", "10, 11"), true},
		{"reference not in", leaf(expression.NotIn, "pipeline", "10, 12"), true},
		{"reference is not null", leaf(expression.IsNotNull, "pipeline", nil), true},
		{"reference is null", leaf(expression.IsNull, "pipelineStage", nil), true},
		{"reference list contains", leaf(expression.Contains, "products", 2.0), true},
		{"reference list contains any", leaf(expression.Contains, "products", "9, 1"), true},
		{"reference list not contains", leaf(expression.NotContains, "products", 3.0), true},
		{"reference list is not empty", leaf(expression.IsNotEmpty, "products", nil), true},
		{"boolean", leaf(expression.Equal, "dnd", "true"), true},
		{"date equal by day", leaf(expression.Equal, "createdAt", "2025-03-01"), true},
		{"date after", leaf(expression.Greater, "createdAt", "2025-02-28T00:00:00Z"), true},
		{"multi value contains", leaf(expression.Contains, "emails", "acme"), true},
		{"multi value equal", leaf(expression.Equal, "emails", "OM@acme.io"), true},
		{"custom text", leaf(expression.Equal, "customFieldValues.tier", "GOLD"), true},
		{"custom number", leaf(expression.GreaterOrEqual, "customFieldValues.seats", "25"), true},
		{"custom list", leaf(expression.Contains, "customFieldValues.regions", "apac"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Satisfies(tt.node, lead)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSatisfies_MoneyComparesAmount(t *testing.T) {
	deal := &models.Deal{ID: 1, EstimatedValue: &models.Money{CurrencyID: 1, Value: 1500}}

	got, err := newEvaluator().Satisfies(leaf(expression.Greater, "estimatedValue", 1000.0), deal)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = newEvaluator().Satisfies(leaf(expression.Equal, "estimatedValue.currencyId", 2.0), deal)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestSatisfies_InvalidConditionIsAnError(t *testing.T) {
	e := newEvaluator()
	lead := sampleLead()

	tests := []struct {
		name string
		node *expression.Node
	}{
		{"unknown field", leaf(expression.Equal, "nickname", "x")},
		{"ordering a reference", leaf(expression.Greater, "pipeline", 3.0)},
		{"begins with on a reference list", leaf(expression.BeginsWith, "products", "x")},
		{"contains on a number", leaf(expression.Contains, "score", "1")},
		{"unparsable number", leaf(expression.Greater, "score", "lots")},
		{"reversed range", leaf(expression.Between, "score", []any{20.0, 1.0})},
		{"ordering a boolean", leaf(expression.Less, "dnd", "true")},
		{"ordering text", leaf(expression.Greater, "firstName", "a")},
		{"reference by name", leaf(expression.Equal, "ownerId", "Tony")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Satisfies(tt.node, lead)
			assert.ErrorIs(t, err, expression.ErrInvalidCondition)
			assert.False(t, got)
		})
	}
}

func TestSatisfies_Connectives(t *testing.T) {
	e := newEvaluator()
	lead := sampleLead()

	node := compile(t,
		expression.Term{Operator: expression.Equal, Name: "firstName", Value: "Yash"},
		expression.Term{Operator: expression.And},
		expression.Term{Operator: expression.Equal, Name: "city", Value: "Pune"},
		expression.Term{Operator: expression.Or},
		expression.Term{Operator: expression.Greater, Name: "score", Value: 5.0},
	)

	got, err := e.Satisfies(node, lead)
	require.NoError(t, err)
	assert.True(t, got)

	both := compile(t,
		expression.Term{Operator: expression.Equal, Name: "firstName", Value: "Yash"},
		expression.Term{Operator: expression.And},
		expression.Term{Operator: expression.Greater, Name: "pipeline", Value: 1.0},
	)

	_, err = e.Satisfies(both, lead)
	assert.ErrorIs(t, err, expression.ErrInvalidCondition, "errors surface even when the other side is false")
}

func updateEvent(oldLead, newLead *models.Lead) *events.EntityEvent {
	event := &events.EntityEvent{
		New: newLead,
		Metadata: events.EventMetadata{
			TenantID:   newLead.TenantID,
			EntityType: models.EntityLead,
			Action:     models.TriggerUpdated,
		},
	}

	if oldLead != nil {
		event.Old = oldLead
	}

	return event
}

func TestEvaluate_TriggerOn(t *testing.T) {
	e := newEvaluator()

	before := sampleLead()
	before.FirstName = "Yash"

	after := sampleLead()
	after.OwnerID = &models.IdName{ID: 242, Name: "Tony Stark"}

	changed := func(op expression.Operator, name string, value any) *expression.Node {
		return expression.NewLeaf(expression.Term{Operator: op, Name: name, Value: value, TriggerOn: expression.IsChanged})
	}

	tests := []struct {
		name  string
		node  *expression.Node
		event *events.EntityEvent
		want  bool
	}{
		{"new value", leaf(expression.Equal, "firstName", "Om"), updateEvent(before, after), true},
		{
			"old value",
			expression.NewLeaf(expression.Term{Operator: expression.Equal, Name: "firstName", Value: "Yash", TriggerOn: expression.OldValue}),
			updateEvent(before, after),
			true,
		},
		{
			"old value on a created record",
			expression.NewLeaf(expression.Term{Operator: expression.IsNull, Name: "firstName", TriggerOn: expression.OldValue}),
			updateEvent(nil, after),
			true,
		},
		{"changed without comparison", changed(expression.Equal, "firstName", nil), updateEvent(before, after), true},
		{"changed to matching value", changed(expression.Equal, "firstName", "om"), updateEvent(before, after), true},
		{"changed to other value", changed(expression.Equal, "firstName", "Raj"), updateEvent(before, after), false},
		{"unchanged field", changed(expression.Equal, "city", nil), updateEvent(before, after), false},
		{"reference renamed only", changed(expression.Equal, "ownerId", nil), updateEvent(before, after), false},
		{"set on creation", changed(expression.IsNotNull, "firstName", nil), updateEvent(nil, after), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.node, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_NilExpression(t *testing.T) {
	_, err := newEvaluator().Evaluate(nil, updateEvent(nil, sampleLead()))
	assert.ErrorIs(t, err, expression.ErrInvalidCondition)
}
