package file

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dukex/flowcrm/pkg/expression"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkflow(tenantID int64, frequency models.TriggerFrequency) *models.Workflow {
	return &models.Workflow{
		TenantID:   tenantID,
		Name:       "Greet new leads",
		EntityType: models.EntityLead,
		Trigger:    models.WorkflowTrigger{Name: models.TriggerEvent, TriggerFrequency: frequency},
		Condition: models.WorkflowCondition{
			Type:       models.ConditionConditionBased,
			Expression: expression.NewLeaf(expression.Term{Operator: expression.Equal, Name: "firstName", Value: "Om"}),
		},
		Actions: []models.ActionDefinition{
			{Type: models.ActionEditProperty, Payload: json.RawMessage(`{"name":"firstName","value":"steve"}`)},
		},
		Active:    true,
		CreatedBy: 12,
		UpdatedBy: 12,
	}
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence("file://" + t.TempDir())

	workflow := newWorkflow(3, models.TriggerCreated)
	require.NoError(t, store.Save(ctx, workflow))
	assert.Equal(t, int64(1), workflow.ID)

	second := newWorkflow(3, models.TriggerCreated)
	require.NoError(t, store.Save(ctx, second))
	assert.Equal(t, int64(2), second.ID)

	got, err := store.GetByID(ctx, 3, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, got.Name)
	assert.True(t, workflow.Condition.Expression.Equal(got.Condition.Expression))
	assert.JSONEq(t, `{"name":"firstName","value":"steve"}`, string(got.Actions[0].Payload))

	_, err = store.GetByID(ctx, 4, workflow.ID)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	_, err = store.GetByID(ctx, 3, 99)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	require.NoError(t, store.HealthCheck(ctx))
}

func TestWorkflowRepository_SaveKeepsTelemetry(t *testing.T) {
	ctx := context.Background()
	store := NewWorkflowRepository(t.TempDir())

	workflow := newWorkflow(3, models.TriggerCreated)
	require.NoError(t, store.Save(ctx, workflow))
	require.NoError(t, store.StampExecution(ctx, workflow.ID, time.Now()))

	workflow.Telemetry = models.ExecutionTelemetry{}
	workflow.Condition = models.WorkflowCondition{Type: models.ConditionForAll}
	require.NoError(t, store.Save(ctx, workflow))

	got, err := store.GetByID(ctx, 3, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Telemetry.TriggerCount)
	assert.Nil(t, got.Condition.Expression)
}

func TestWorkflowRepository_FindActive(t *testing.T) {
	ctx := context.Background()
	store := NewWorkflowRepository(t.TempDir())

	created := newWorkflow(3, models.TriggerCreated)
	updated := newWorkflow(3, models.TriggerUpdated)
	inactive := newWorkflow(3, models.TriggerCreated)
	otherTenant := newWorkflow(4, models.TriggerCreated)

	for _, w := range []*models.Workflow{created, updated, inactive, otherTenant} {
		require.NoError(t, store.Save(ctx, w))
	}

	require.NoError(t, store.SetActive(ctx, 3, inactive.ID, false))

	found, err := store.FindActive(ctx, 3, models.EntityLead, models.TriggerCreated)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, created.ID, found[0].ID)

	all, err := store.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestWorkflowRepository_ConcurrentStamps(t *testing.T) {
	ctx := context.Background()
	store := NewWorkflowRepository(t.TempDir())

	workflow := newWorkflow(3, models.TriggerCreated)
	require.NoError(t, store.Save(ctx, workflow))

	const stamps = 20

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := range stamps {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.NoError(t, store.StampExecution(ctx, workflow.ID, base.Add(time.Duration(i)*time.Second)))
		}()
	}

	wg.Wait()

	got, err := store.GetByID(ctx, 3, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(stamps), got.Telemetry.TriggerCount)
	assert.Equal(t, base.Add((stamps-1)*time.Second), *got.Telemetry.LastTriggeredAt)

	require.ErrorIs(t, store.StampExecution(ctx, 42, time.Now()), persistence.ErrWorkflowNotFound)
}
