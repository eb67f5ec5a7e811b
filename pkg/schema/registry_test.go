package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowcrm/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func TestRegistry_Value(t *testing.T) {
	registry := Default()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	lead := &models.Lead{
		ID:                7,
		FirstName:         "Om",
		LastName:          " ",
		Emails:            []models.Email{{Value: "om@x.io", Primary: true}, {Value: "om@y.io"}},
		Pipeline:          &models.IdName{ID: 11, Name: "Inbound"},
		Score:             ptr(42.5),
		CreatedAt:         &created,
		CustomFieldValues: map[string]any{"tier": "gold", "empty": ""},
	}

	tests := []struct {
		path string
		want any
	}{
		{"id", int64(7)},
		{"firstName", "Om"},
		{"lastName", nil},
		{"emails", []string{"om@x.io", "om@y.io"}},
		{"pipeline", models.IdName{ID: 11, Name: "Inbound"}},
		{"pipeline.id", int64(11)},
		{"pipeline.name", "Inbound"},
		{"pipelineStage", nil},
		{"pipelineStage.name", nil},
		{"products", nil},
		{"score", 42.5},
		{"requirementBudget", nil},
		{"createdAt", created},
		{"customFieldValues.tier", "gold"},
		{"customFieldValues.empty", nil},
		{"customFieldValues.missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := registry.Value(lead, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_UnknownField(t *testing.T) {
	_, err := Default().Value(&models.Deal{}, "firstName")
	assert.ErrorIs(t, err, ErrUnknownField)

	err = Default().Set(&models.Lead{}, "nickname", "x")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestRegistry_Set(t *testing.T) {
	registry := Default()

	t.Run("string", func(t *testing.T) {
		lead := &models.Lead{}
		require.NoError(t, registry.Set(lead, "firstName", "steve"))
		assert.Equal(t, "steve", lead.FirstName)
	})

	t.Run("number from converted string", func(t *testing.T) {
		lead := &models.Lead{}
		require.NoError(t, registry.Set(lead, "score", ConvertValue("17")))
		require.NotNil(t, lead.Score)
		assert.Equal(t, 17.0, *lead.Score)
	})

	t.Run("reference from id", func(t *testing.T) {
		deal := &models.Deal{}
		require.NoError(t, registry.Set(deal, "ownedBy", int64(242)))
		assert.Equal(t, &models.IdName{ID: 242}, deal.OwnedBy)
	})

	t.Run("reference from object", func(t *testing.T) {
		contact := &models.Contact{}
		require.NoError(t, registry.Set(contact, "company", map[string]any{"id": 5.0, "name": "Acme"}))
		assert.Equal(t, &models.IdName{ID: 5, Name: "Acme"}, contact.Company)
	})

	t.Run("money", func(t *testing.T) {
		deal := &models.Deal{}
		require.NoError(t, registry.Set(deal, "estimatedValue", ConvertValue(`{"currencyId":2,"value":990.5}`)))
		assert.Equal(t, &models.Money{CurrencyID: 2, Value: 990.5}, deal.EstimatedValue)
	})

	t.Run("boolean", func(t *testing.T) {
		contact := &models.Contact{}
		require.NoError(t, registry.Set(contact, "stakeholder", ConvertValue("true")))
		assert.True(t, contact.Stakeholder)
	})

	t.Run("emails from string", func(t *testing.T) {
		lead := &models.Lead{}
		require.NoError(t, registry.Set(lead, "emails", "new@x.io"))
		assert.Equal(t, []models.Email{{Value: "new@x.io", Primary: true}}, lead.Emails)
	})

	t.Run("custom field", func(t *testing.T) {
		lead := &models.Lead{}
		require.NoError(t, registry.Set(lead, "customFieldValues.tier", "gold"))
		assert.Equal(t, "gold", lead.CustomFieldValues["tier"])
	})

	t.Run("incompatible value", func(t *testing.T) {
		lead := &models.Lead{}
		err := registry.Set(lead, "score", "lots")
		assert.ErrorIs(t, err, ErrIncompatibleValue)
		assert.Nil(t, lead.Score)
	})

	t.Run("read-only", func(t *testing.T) {
		err := registry.Set(&models.Lead{}, "createdBy", int64(3))
		assert.ErrorIs(t, err, ErrReadOnlyField)
	})
}

func TestSetDoesNotLeakIntoClones(t *testing.T) {
	original := &models.Deal{Products: []models.IdName{{ID: 1}}}
	clone := original.Clone()

	require.NoError(t, Default().Set(clone, "products", []any{map[string]any{"id": 2.0}}))

	assert.Equal(t, []models.IdName{{ID: 1}}, original.Products)
	assert.Equal(t, []models.IdName{{ID: 2}}, clone.(*models.Deal).Products)
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"3.14", 3.14},
		{"true", true},
		{"false", false},
		{`{"a":1}`, map[string]any{"a": 1.0}},
		{`[1,"x"]`, []any{1.0, "x"}},
		{"{not json", "{not json"},
		{"steve", "steve"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ConvertValue(tt.in))
		})
	}
}

func TestPathsAreSorted(t *testing.T) {
	paths := Default().Paths(models.EntityDeal)
	assert.Contains(t, paths, "estimatedValue.value")
	assert.Contains(t, paths, "associatedContacts")
	assert.IsIncreasing(t, paths)
}
