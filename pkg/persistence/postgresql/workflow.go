package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowcrm/pkg/expression"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/persistence"
	"github.com/lib/pq"
)

const workflowColumns = `
	id
  , tenant_id
  , name
  , description
  , entity_type
  , trigger_name
  , trigger_frequency
  , condition_type
  , condition_expression
  , active
  , created_by
  , updated_by
  , created_at
  , updated_at
  , trigger_count
  , last_triggered_at`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger, now: time.Now}
}

// Save inserts a workflow without an id, or replaces the definition of an existing one.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) (err error) {
	now := r.now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	expressionJSON, err := encodeExpression(workflow.Condition.Expression)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if workflow.ID == 0 {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO workflows (tenant_id, name, description, entity_type, trigger_name, trigger_frequency,
				condition_type, condition_expression, active, created_by, updated_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id`,
			workflow.TenantID,
			workflow.Name,
			workflow.Description,
			workflow.EntityType,
			workflow.Trigger.Name,
			workflow.Trigger.TriggerFrequency,
			workflow.Condition.Type,
			expressionJSON,
			workflow.Active,
			workflow.CreatedBy,
			workflow.UpdatedBy,
			workflow.CreatedAt,
			workflow.UpdatedAt,
		).Scan(&workflow.ID)
		if err != nil {
			return fmt.Errorf("failed to insert workflow: %w", err)
		}
	} else {
		var result sql.Result

		result, err = tx.ExecContext(ctx, `
			UPDATE workflows SET
				name = $3,
				description = $4,
				entity_type = $5,
				trigger_name = $6,
				trigger_frequency = $7,
				condition_type = $8,
				condition_expression = $9,
				active = $10,
				updated_by = $11,
				updated_at = $12
			WHERE id = $1 AND tenant_id = $2`,
			workflow.ID,
			workflow.TenantID,
			workflow.Name,
			workflow.Description,
			workflow.EntityType,
			workflow.Trigger.Name,
			workflow.Trigger.TriggerFrequency,
			workflow.Condition.Type,
			expressionJSON,
			workflow.Active,
			workflow.UpdatedBy,
			workflow.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update workflow: %w", err)
		}

		err = requireAffected(result, "Save", workflow.ID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "DELETE FROM workflow_actions WHERE workflow_id = $1", workflow.ID)
		if err != nil {
			return fmt.Errorf("failed to delete existing actions: %w", err)
		}
	}

	for i := range workflow.Actions {
		action := &workflow.Actions[i]

		err = tx.QueryRowContext(ctx, `
			INSERT INTO workflow_actions (workflow_id, position, action_type, payload)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			workflow.ID, i, action.Type, string(action.Payload),
		).Scan(&action.ID)
		if err != nil {
			return fmt.Errorf("failed to insert action %d: %w", i, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID returns a workflow of a tenant.
func (r *WorkflowRepository) GetByID(ctx context.Context, tenantID, id int64) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+workflowColumns+" FROM workflows WHERE id = $1 AND tenant_id = $2", id, tenantID)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	err = r.loadActions(ctx, []*models.Workflow{workflow})
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// List returns every workflow of a tenant, newest first.
func (r *WorkflowRepository) List(ctx context.Context, tenantID int64) ([]*models.Workflow, error) {
	return r.query(ctx, "SELECT"+workflowColumns+" FROM workflows WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC", tenantID)
}

// FindActive returns the active workflows a record event of the given kind must be matched against,
// in id order.
func (r *WorkflowRepository) FindActive(
	ctx context.Context,
	tenantID int64,
	entityType models.EntityType,
	frequency models.TriggerFrequency,
) ([]*models.Workflow, error) {
	return r.query(ctx, "SELECT"+workflowColumns+`
		FROM workflows
		WHERE tenant_id = $1 AND entity_type = $2 AND trigger_frequency = $3 AND active
		ORDER BY id`,
		tenantID, entityType, frequency,
	)
}

func (r *WorkflowRepository) SetActive(ctx context.Context, tenantID, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET active = $3, updated_at = $4 WHERE id = $1 AND tenant_id = $2",
		id, tenantID, active, r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow status: %w", err)
	}

	return requireAffected(result, "SetActive", id)
}

// StampExecution counts one run of a workflow in a single statement, so concurrent stamps never
// lose increments. The last trigger time never moves backwards.
func (r *WorkflowRepository) StampExecution(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflows SET
			trigger_count = trigger_count + 1,
			last_triggered_at = GREATEST(COALESCE(last_triggered_at, $2), $2)
		WHERE id = $1`,
		id, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to stamp workflow execution: %w", err)
	}

	return requireAffected(result, "StampExecution", id)
}

func (r *WorkflowRepository) query(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	err = r.loadActions(ctx, workflows)
	if err != nil {
		return nil, err
	}

	return workflows, nil
}

// loadActions fills the actions of all workflows with one query.
func (r *WorkflowRepository) loadActions(ctx context.Context, workflows []*models.Workflow) error {
	if len(workflows) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Workflow, len(workflows))
	ids := make([]int64, 0, len(workflows))

	for _, w := range workflows {
		byID[w.ID] = w
		ids = append(ids, w.ID)
		w.Actions = make([]models.ActionDefinition, 0)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT workflow_id, id, action_type, payload
		FROM workflow_actions
		WHERE workflow_id = ANY($1)
		ORDER BY workflow_id, position`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to query workflow actions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	for rows.Next() {
		var (
			workflowID int64
			action     models.ActionDefinition
			payload    []byte
		)

		err := rows.Scan(&workflowID, &action.ID, &action.Type, &payload)
		if err != nil {
			return fmt.Errorf("failed to scan workflow action: %w", err)
		}

		action.Payload = json.RawMessage(payload)

		w := byID[workflowID]
		w.Actions = append(w.Actions, action)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating workflow actions: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow        models.Workflow
		expressionJSON  []byte
		lastTriggeredAt sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.TenantID,
		&workflow.Name,
		&workflow.Description,
		&workflow.EntityType,
		&workflow.Trigger.Name,
		&workflow.Trigger.TriggerFrequency,
		&workflow.Condition.Type,
		&expressionJSON,
		&workflow.Active,
		&workflow.CreatedBy,
		&workflow.UpdatedBy,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.Telemetry.TriggerCount,
		&lastTriggeredAt,
	)
	if err != nil {
		return nil, err
	}

	if lastTriggeredAt.Valid {
		at := lastTriggeredAt.Time.UTC()
		workflow.Telemetry.LastTriggeredAt = &at
	}

	workflow.CreatedAt = workflow.CreatedAt.UTC()
	workflow.UpdatedAt = workflow.UpdatedAt.UTC()

	if len(expressionJSON) > 0 {
		var node expression.Node

		err = json.Unmarshal(expressionJSON, &node)
		if err != nil {
			return nil, fmt.Errorf("failed to decode condition of workflow %d: %w", workflow.ID, err)
		}

		workflow.Condition.Expression = &node
	}

	return &workflow, nil
}

// encodeExpression returns the JSONB parameter of a condition, nil for FOR_ALL workflows.
func encodeExpression(node *expression.Node) (any, error) {
	if node == nil {
		return nil, nil
	}

	data, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode condition: %w", err)
	}

	return string(data), nil
}

func requireAffected(result sql.Result, op string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	return nil
}
