package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/flowcrm/pkg/actions"
	"github.com/dukex/flowcrm/pkg/condition"
	"github.com/dukex/flowcrm/pkg/expression"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/persistence"
	"github.com/dukex/flowcrm/pkg/schema"
	"github.com/dukex/flowcrm/pkg/secrets"
	"github.com/go-playground/validator/v10"
)

// WorkflowRequest is what authors submit to create or replace a workflow. The condition arrives
// as the flat term list the editor works with.
type WorkflowRequest struct {
	Name        string                    `json:"name"        validate:"required,min=3,max=255"`
	Description string                    `json:"description"`
	EntityType  models.EntityType         `json:"entityType"  validate:"required,oneof=LEAD CONTACT DEAL"`
	Trigger     models.WorkflowTrigger    `json:"trigger"     validate:"required"`
	Condition   ConditionRequest          `json:"condition"   validate:"required"`
	Actions     []models.ActionDefinition `json:"actions"     validate:"required,min=1,dive"`
	Active      *bool                     `json:"active,omitempty"`
}

type ConditionRequest struct {
	Type       models.ConditionType `json:"conditionType" validate:"required,oneof=FOR_ALL CONDITION_BASED"`
	Conditions []expression.Term    `json:"conditions,omitempty"`
}

// WorkflowView is a workflow as shown back to authors: the condition is flattened again.
type WorkflowView struct {
	*models.Workflow

	Condition ConditionView `json:"condition"`
}

type ConditionView struct {
	Type       models.ConditionType `json:"conditionType"`
	Conditions []expression.Term    `json:"conditions"`
}

type Workflow struct {
	persistence persistence.Persistence
	registry    *schema.Registry
	crypter     secrets.Crypter
	resolver    *condition.NameResolver
	validate    *validator.Validate
}

// NewWorkflow creates a new workflow service. crypter may be nil when no webhook carries
// credentials; resolver may be nil to show conditions without resolved names.
func NewWorkflow(
	persistence persistence.Persistence,
	registry *schema.Registry,
	crypter secrets.Crypter,
	resolver *condition.NameResolver,
) *Workflow {
	if registry == nil {
		registry = schema.Default()
	}

	return &Workflow{
		persistence: persistence,
		registry:    registry,
		crypter:     crypter,
		resolver:    resolver,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates req, compiles its condition and stores a new workflow. New workflows are
// active unless the request says otherwise.
func (w *Workflow) Create(ctx context.Context, tenantID, userID int64, req WorkflowRequest) (*models.Workflow, error) {
	workflow, err := w.build("Create", req)
	if err != nil {
		return nil, err
	}

	workflow.TenantID = tenantID
	workflow.CreatedBy = userID
	workflow.UpdatedBy = userID
	workflow.Active = req.Active == nil || *req.Active

	err = w.persistence.Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update replaces the definition of an existing workflow. Telemetry is kept.
func (w *Workflow) Update(ctx context.Context, tenantID, userID, workflowID int64, req WorkflowRequest) (*models.Workflow, error) {
	existing, err := w.persistence.GetByID(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}

	workflow, err := w.build("Update", req)
	if err != nil {
		return nil, err
	}

	workflow.ID = existing.ID
	workflow.TenantID = tenantID
	workflow.CreatedBy = existing.CreatedBy
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedBy = userID
	workflow.Active = existing.Active

	if req.Active != nil {
		workflow.Active = *req.Active
	}

	err = w.persistence.Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// FetchByID returns a workflow with its condition flattened and reference names resolved
// through the collaborators token gives access to.
func (w *Workflow) FetchByID(ctx context.Context, tenantID, workflowID int64, token string) (*WorkflowView, error) {
	workflow, err := w.persistence.GetByID(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}

	node := workflow.Condition.Expression

	if w.resolver != nil && node != nil {
		node, err = w.resolver.Resolve(ctx, node, token)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve condition names: %w", err)
		}
	}

	return view(workflow, node), nil
}

// List returns the workflows of a tenant without resolving names.
func (w *Workflow) List(ctx context.Context, tenantID int64) ([]*WorkflowView, error) {
	workflows, err := w.persistence.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	views := make([]*WorkflowView, 0, len(workflows))
	for _, workflow := range workflows {
		views = append(views, view(workflow, workflow.Condition.Expression))
	}

	return views, nil
}

func (w *Workflow) SetActive(ctx context.Context, tenantID, workflowID int64, active bool) error {
	return w.persistence.SetActive(ctx, tenantID, workflowID, active)
}

func view(workflow *models.Workflow, node *expression.Node) *WorkflowView {
	conditions := expression.Flatten(node)
	if conditions == nil {
		conditions = []expression.Term{}
	}

	return &WorkflowView{
		Workflow:  workflow,
		Condition: ConditionView{Type: workflow.Condition.Type, Conditions: conditions},
	}
}

// build turns a request into a workflow, rejecting anything that could not run.
func (w *Workflow) build(op string, req WorkflowRequest) (*models.Workflow, error) {
	err := w.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError(op, "INVALID_WORKFLOW", describe(err), err)
	}

	node, err := w.compile(req.EntityType, req.Condition)
	if err != nil {
		return nil, NewValidationError(op, "INVALID_CONDITION", err.Error(), err)
	}

	defs, err := w.actions(req.EntityType, req.Actions)
	if err != nil {
		return nil, NewValidationError(op, "INVALID_ACTION", err.Error(), err)
	}

	return &models.Workflow{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		EntityType:  req.EntityType,
		Trigger:     req.Trigger,
		Condition:   models.WorkflowCondition{Type: req.Condition.Type, Expression: node},
		Actions:     defs,
	}, nil
}

// compile checks the term list and every field it names, then builds the tree.
func (w *Workflow) compile(entityType models.EntityType, req ConditionRequest) (*expression.Node, error) {
	if req.Type == models.ConditionForAll {
		if len(req.Conditions) > 0 {
			return nil, expression.NewInvalidConditionError("", "", "FOR_ALL workflows take no conditions")
		}

		return nil, nil
	}

	err := expression.Validate(req.Conditions)
	if err != nil {
		return nil, err
	}

	for i, term := range req.Conditions {
		if i%2 == 1 {
			continue
		}

		if _, ok := w.registry.Lookup(entityType, term.Name); !ok {
			return nil, &expression.InvalidConditionError{
				Field:    term.Name,
				Operator: term.Operator,
				Index:    i,
				Message:  fmt.Sprintf("unknown field for %s", entityType),
			}
		}
	}

	return expression.Compile(req.Conditions)
}

// actions decodes each definition, applies the checks that depend on the entity type and seals
// webhook credentials before they are stored.
func (w *Workflow) actions(entityType models.EntityType, defs []models.ActionDefinition) ([]models.ActionDefinition, error) {
	decoded, err := actions.DecodeAll(defs)
	if err != nil {
		return nil, err
	}

	out := make([]models.ActionDefinition, 0, len(decoded))

	for i, action := range decoded {
		var checkErr error

		switch action := action.(type) {
		case *actions.EditProperty:
			checkErr = action.ValidateFor(entityType, w.registry)
		case *actions.Webhook:
			checkErr = w.seal(action)
		}

		if checkErr != nil {
			return nil, fmt.Errorf("action %d: %w", i, checkErr)
		}

		def, err := actions.Encode(action)
		if err != nil {
			return nil, err
		}

		out = append(out, def)
	}

	return out, nil
}

func (w *Workflow) seal(webhook *actions.Webhook) error {
	if webhook.Credentials == nil {
		return nil
	}

	if w.crypter == nil {
		return &actions.InvalidActionError{
			ActionType: webhook.Type(),
			Field:      "credentials",
			Message:    "credentials cannot be stored: no encryption key configured",
		}
	}

	return webhook.Seal(w.crypter)
}

func describe(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err.Error()
	}

	first := validationErrors[0]
	field, _ := strings.CutPrefix(first.Namespace(), "WorkflowRequest.")

	return fmt.Sprintf("%s failed on the '%s' rule", field, first.Tag())
}
