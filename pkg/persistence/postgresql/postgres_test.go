package postgresql_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dukex/flowcrm/pkg/expression"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/persistence"
	"github.com/dukex/flowcrm/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflow_actions", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL tests in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("flowcrm_test"),
			postgres.WithUsername("flowcrm"),
			postgres.WithPassword("flowcrm"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)
		require.NoError(t, store.Close(ctx))
		cancel()
	})

	return store, ctx, databaseURL
}

func newWorkflow(tenantID int64, frequency models.TriggerFrequency) *models.Workflow {
	return &models.Workflow{
		TenantID:   tenantID,
		Name:       "Greet new leads",
		EntityType: models.EntityLead,
		Trigger:    models.WorkflowTrigger{Name: models.TriggerEvent, TriggerFrequency: frequency},
		Condition: models.WorkflowCondition{
			Type: models.ConditionConditionBased,
			Expression: expression.NewConnective(expression.And,
				expression.NewLeaf(expression.Term{Operator: expression.Equal, Name: "firstName", Value: "Om"}),
				expression.NewLeaf(expression.Term{Operator: expression.IsNotNull, Name: "ownerId", TriggerOn: expression.IsChanged}),
			),
		},
		Actions: []models.ActionDefinition{
			{Type: models.ActionEditProperty, Payload: json.RawMessage(`{"name":"firstName","value":"steve"}`)},
			{Type: models.ActionReassign, Payload: json.RawMessage(`{"ownerId":242}`)},
		},
		Active:    true,
		CreatedBy: 12,
		UpdatedBy: 12,
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer db.Close()

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM information_schema.columns WHERE table_name = 'workflows' AND column_name = 'trigger_count'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflow := newWorkflow(3, models.TriggerCreated)
	require.NoError(t, store.Save(ctx, workflow))
	require.NotZero(t, workflow.ID)
	require.NotZero(t, workflow.Actions[0].ID)

	got, err := store.GetByID(ctx, 3, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, got.Name)
	assert.Equal(t, models.EntityLead, got.EntityType)
	assert.Equal(t, models.TriggerCreated, got.Trigger.TriggerFrequency)
	assert.True(t, workflow.Condition.Expression.Equal(got.Condition.Expression))
	require.Len(t, got.Actions, 2)
	assert.Equal(t, models.ActionEditProperty, got.Actions[0].Type)
	assert.JSONEq(t, `{"ownerId":242}`, string(got.Actions[1].Payload))
	assert.Zero(t, got.Telemetry.TriggerCount)
	assert.Nil(t, got.Telemetry.LastTriggeredAt)

	_, err = store.GetByID(ctx, 4, workflow.ID)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_UpdateReplacesDefinition(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflow := newWorkflow(3, models.TriggerCreated)
	require.NoError(t, store.Save(ctx, workflow))
	require.NoError(t, store.StampExecution(ctx, workflow.ID, time.Now()))

	workflow.Condition = models.WorkflowCondition{Type: models.ConditionForAll}
	workflow.Actions = workflow.Actions[:1]
	require.NoError(t, store.Save(ctx, workflow))

	got, err := store.GetByID(ctx, 3, workflow.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Condition.Expression)
	assert.Len(t, got.Actions, 1)
	assert.Equal(t, int64(1), got.Telemetry.TriggerCount)

	missing := newWorkflow(3, models.TriggerCreated)
	missing.ID = 999
	require.ErrorIs(t, store.Save(ctx, missing), persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_FindActive(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

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
	assert.Len(t, found[0].Actions, 2)

	all, err := store.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.ErrorIs(t, store.SetActive(ctx, 4, inactive.ID, true), persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_ConcurrentStamps(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflow := newWorkflow(3, models.TriggerCreated)
	require.NoError(t, store.Save(ctx, workflow))

	const stamps = 25

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
	require.NotNil(t, got.Telemetry.LastTriggeredAt)
	assert.True(t, got.Telemetry.LastTriggeredAt.Equal(base.Add((stamps-1)*time.Second)))

	require.ErrorIs(t, store.StampExecution(ctx, 999, time.Now()), persistence.ErrWorkflowNotFound)
}

func TestPersistence_HealthCheck(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	assert.NoError(t, store.HealthCheck(ctx))
}
