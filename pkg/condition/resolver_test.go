package condition

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/flowcrm/pkg/expression"
	"github.com/dukex/flowcrm/pkg/mocks"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNameResolver_Resolve(t *testing.T) {
	collaborators := &mocks.MockCollaborators{}
	collaborators.On("GetUser", mock.Anything, int64(242), "token").
		Return(&models.User{ID: 242, FirstName: "Tony", LastName: "Stark"}, nil)
	collaborators.On("GetPipeline", mock.Anything, int64(11), "token").
		Return(models.IdName{}, errors.New("pipeline service unavailable"))
	collaborators.On("GetProduct", mock.Anything, int64(1), "token").
		Return(models.IdName{ID: 1, Name: "Widget"}, nil)
	collaborators.On("GetProduct", mock.Anything, int64(2), "token").
		Return(models.IdName{ID: 2, Name: "Gadget"}, nil)

	resolver := NewNameResolver(collaborators, collaborators, collaborators, slog.Default())

	original, err := expression.Compile([]expression.Term{
		{Operator: expression.Equal, Name: "ownerId", Value: 242.0},
		{Operator: expression.And},
		{Operator: expression.Equal, Name: "pipeline", Value: "11"},
		{Operator: expression.Or},
		{Operator: expression.Contains, Name: "products", Value: "1, 2"},
		{Operator: expression.And},
		{Operator: expression.Equal, Name: "firstName", Value: "Om"},
		{Operator: expression.Or},
		{Operator: expression.IsNull, Name: "ownerId"},
	})
	require.NoError(t, err)

	resolved, err := resolver.Resolve(context.Background(), original, "token")
	require.NoError(t, err)

	leaves := resolved.Leaves()
	require.Len(t, leaves, 5)

	assert.Equal(t, map[string]any{"id": int64(242), "name": "Tony Stark"}, leaves[0].Value())
	assert.Equal(t, map[string]any{"id": int64(11), "name": nil}, leaves[1].Value())
	assert.Equal(t, []any{
		map[string]any{"id": int64(1), "name": "Widget"},
		map[string]any{"id": int64(2), "name": "Gadget"},
	}, leaves[2].Value())
	assert.Equal(t, "Om", leaves[3].Value())
	assert.Nil(t, leaves[4].Value())

	assert.Equal(t, 242.0, original.Leaves()[0].Value(), "the input tree is not modified")
	assert.Equal(t, expression.Flatten(original)[1], expression.Flatten(resolved)[1])

	collaborators.AssertExpectations(t)
}

func TestNameResolver_ResolvedTreeStillEvaluates(t *testing.T) {
	collaborators := &mocks.MockCollaborators{}
	collaborators.On("GetUser", mock.Anything, int64(242), "").
		Return(&models.User{ID: 242, FirstName: "Tony"}, nil)

	resolver := NewNameResolver(collaborators, collaborators, collaborators, slog.Default())

	resolved, err := resolver.Resolve(context.Background(), leaf(expression.Equal, "ownedBy", 242.0), "")
	require.NoError(t, err)

	got, err := newEvaluator().Satisfies(resolved, &models.Deal{ID: 1, OwnedBy: &models.IdName{ID: 242, Name: "Someone"}})
	require.NoError(t, err)
	assert.True(t, got)
}
