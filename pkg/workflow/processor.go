// Package workflow matches record events against active workflows and runs their actions.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/dukex/flowcrm/pkg/actions"
	"github.com/dukex/flowcrm/pkg/condition"
	"github.com/dukex/flowcrm/pkg/eventbus"
	"github.com/dukex/flowcrm/pkg/events"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/otelhelper"
	"github.com/dukex/flowcrm/pkg/persistence"
	"github.com/dukex/flowcrm/pkg/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrInvalidEvent = errors.New("invalid entity event")

// TokenIssuer mints the token actions present to collaborator services.
type TokenIssuer interface {
	Issue(tenantID, userID int64) (string, error)
}

// Result describes what one Process call did. Skipped lists the workflows the loop guard or a
// failed evaluation kept from running; workflows whose condition was false are in neither list.
type Result struct {
	Matched   []int64
	Skipped   []int64
	Failed    int
	Published int
	Patch     *events.PatchCommand
}

// Processor runs the workflows of a tenant against one record event at a time. It keeps no state
// between events and is safe for concurrent use.
type Processor struct {
	repository persistence.WorkflowRepository
	publisher  eventbus.EventPublisher
	evaluator  *condition.Evaluator
	env        *actions.Env
	tokens     TokenIssuer
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewProcessor(
	repository persistence.WorkflowRepository,
	publisher eventbus.EventPublisher,
	env *actions.Env,
	tokens TokenIssuer,
	logger *slog.Logger,
) *Processor {
	if env == nil {
		env = &actions.Env{}
	}

	now := env.Now
	if now == nil {
		now = time.Now
	}

	registry := env.Registry
	if registry == nil {
		registry = schema.Default()
	}

	return &Processor{
		repository: repository,
		publisher:  publisher,
		evaluator:  condition.NewEvaluator(registry),
		env:        env,
		tokens:     tokens,
		logger:     logger.With("module", "workflow_processor"),
		tracer:     otel.Tracer("flowcrm/workflow"),
		now:        now,
	}
}

// Process selects, matches and executes the workflows event concerns. The returned error is only
// set for infrastructure failures that warrant redelivery of the event.
func (p *Processor) Process(ctx context.Context, event *events.EntityEvent) (*Result, error) {
	if event == nil || event.New == nil {
		return nil, fmt.Errorf("%w: new snapshot is required", ErrInvalidEvent)
	}

	// An event that started processing runs to completion.
	ctx = context.WithoutCancel(ctx)

	metadata := event.Metadata
	entityType := event.New.EntityType()

	if metadata.EntityType == "" {
		metadata.EntityType = entityType
	}

	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "workflow.process",
		attribute.Int64(otelhelper.TenantIDKey, metadata.TenantID),
		attribute.String(otelhelper.EntityTypeKey, string(entityType)),
		attribute.Int64(otelhelper.EntityIDKey, event.New.GetID()),
	)
	defer span.End()

	started := time.Now()
	defer func() {
		processingDuration.WithLabelValues(string(entityType)).Observe(time.Since(started).Seconds())
	}()

	eventsProcessed.WithLabelValues(string(entityType)).Inc()

	logger := p.logger.With(
		"tenant_id", metadata.TenantID,
		"entity_type", entityType,
		"entity_id", event.New.GetID(),
	)

	frequency := triggerFrequency(event)

	candidates, err := p.repository.FindActive(ctx, metadata.TenantID, entityType, frequency)
	if err != nil {
		err = fmt.Errorf("failed to select workflows: %w", err)
		otelhelper.SetError(span, err)

		return nil, err
	}

	result := &Result{}
	matched := p.match(ctx, logger, event, candidates, result)

	if len(matched) == 0 {
		logger.DebugContext(ctx, "No workflow matched", "candidates", len(candidates))

		return result, nil
	}

	token := p.token(ctx, logger, metadata)
	patch := map[string]any{}

	var source *int64

	for _, workflow := range matched {
		fields := p.execute(ctx, logger, workflow, event, token, result)
		if len(fields) == 0 {
			continue
		}

		maps.Copy(patch, fields)

		id := workflow.ID
		source = &id
	}

	if len(patch) > 0 {
		outgoing := metadata.WithExecuted(result.Matched...)
		outgoing.SourceWorkflowID = source
		outgoing.Action = ""

		command := &events.PatchCommand{
			EntityID:   event.New.GetID(),
			EntityType: entityType,
			TenantID:   metadata.TenantID,
			Patch:      patch,
			Metadata:   outgoing,
		}

		err = p.publisher.Publish(ctx, command.Key(), command)
		if err != nil {
			err = fmt.Errorf("failed to publish patch command: %w", err)
			otelhelper.SetError(span, err)

			return result, err
		}

		result.Patch = command
		result.Published++

		logger.InfoContext(ctx, "Published patch command", "fields", len(patch), "workflows", result.Matched)
	}

	p.stamp(ctx, logger, result.Matched)

	return result, nil
}

// match applies the loop guard and the conditions. Every condition sees the inbound snapshots.
func (p *Processor) match(
	ctx context.Context,
	logger *slog.Logger,
	event *events.EntityEvent,
	candidates []*models.Workflow,
	result *Result,
) []*models.Workflow {
	entityType := string(event.New.EntityType())
	matched := make([]*models.Workflow, 0, len(candidates))

	for _, workflow := range candidates {
		if event.Metadata.HasExecuted(workflow.ID) {
			workflowsSkipped.WithLabelValues(entityType, skipExecuted).Inc()
			result.Skipped = append(result.Skipped, workflow.ID)

			continue
		}

		ok, err := p.matches(workflow, event)
		if err != nil {
			logger.WarnContext(ctx, "Failed to evaluate workflow condition", "workflow_id", workflow.ID, "error", err)
			workflowsSkipped.WithLabelValues(entityType, skipEvaluationError).Inc()
			result.Skipped = append(result.Skipped, workflow.ID)

			continue
		}

		if !ok {
			workflowsSkipped.WithLabelValues(entityType, skipNotMatched).Inc()

			continue
		}

		workflowsMatched.WithLabelValues(entityType).Inc()
		matched = append(matched, workflow)
		result.Matched = append(result.Matched, workflow.ID)
	}

	return matched
}

func (p *Processor) matches(workflow *models.Workflow, event *events.EntityEvent) (bool, error) {
	if workflow.Condition.Type == models.ConditionForAll {
		return true, nil
	}

	if workflow.Condition.Expression == nil {
		return false, fmt.Errorf("workflow %d has no condition expression", workflow.ID)
	}

	return p.evaluator.Evaluate(workflow.Condition.Expression, event)
}

// execute runs the actions of one workflow on its own working copy of the new snapshot and
// returns the fields they patched. Failing actions are logged and counted.
func (p *Processor) execute(
	ctx context.Context,
	logger *slog.Logger,
	workflow *models.Workflow,
	event *events.EntityEvent,
	token string,
	result *Result,
) map[string]any {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "workflow.execute",
		attribute.Int64(otelhelper.WorkflowIDKey, workflow.ID),
	)
	defer span.End()

	logger = logger.With("workflow_id", workflow.ID)
	record := event.New.Clone()
	fields := map[string]any{}

	exec := &actions.Execution{
		Metadata: actions.Metadata{
			TenantID:          event.Metadata.TenantID,
			UserID:            event.Metadata.UserID,
			EntityType:        record.EntityType(),
			WorkflowID:        workflow.ID,
			WorkflowName:      workflow.Name,
			WorkflowCreatedBy: workflow.CreatedBy,
			WorkflowUpdatedBy: workflow.UpdatedBy,
			Token:             token,
		},
		Env: p.env,
	}

	for position, definition := range workflow.Actions {
		actionLogger := logger.With("action_type", definition.Type, "position", position)

		action, err := actions.Decode(definition)
		if err != nil {
			p.actionFailed(ctx, actionLogger, span, definition.Type, err, result)

			continue
		}

		effect, err := apply(ctx, action, record, exec)
		if err != nil {
			p.actionFailed(ctx, actionLogger, span, definition.Type, err, result)

			continue
		}

		switch effect := effect.(type) {
		case actions.PatchFragment:
			maps.Copy(fields, effect.Fields)
		case actions.Publish:
			err = p.publisher.Publish(ctx, eventKey(effect.Event, record), effect.Event)
			if err != nil {
				p.actionFailed(ctx, actionLogger, span, definition.Type, fmt.Errorf("failed to publish %s: %w", effect.Event.GetType(), err), result)

				continue
			}

			result.Published++

			actionLogger.InfoContext(ctx, "Published action event", "event_type", effect.Event.GetType())
		}
	}

	return fields
}

func (p *Processor) actionFailed(
	ctx context.Context,
	logger *slog.Logger,
	span trace.Span,
	actionType models.ActionType,
	err error,
	result *Result,
) {
	logger.ErrorContext(ctx, "Action failed", "error", err)
	otelhelper.SetError(span, err, attribute.String(otelhelper.ActionTypeKey, string(actionType)))
	actionFailures.WithLabelValues(string(actionType)).Inc()

	result.Failed++
}

// stamp records one execution for every matched workflow. A failed stamp is logged and does not
// fail the event: the patch command has already been published.
func (p *Processor) stamp(ctx context.Context, logger *slog.Logger, ids []int64) {
	at := p.now().UTC()

	for _, id := range ids {
		err := p.repository.StampExecution(ctx, id, at)
		if err != nil {
			telemetryFailures.Inc()
			logger.ErrorContext(ctx, "Failed to stamp workflow execution", "workflow_id", id, "error", err)
		}
	}
}

func (p *Processor) token(ctx context.Context, logger *slog.Logger, metadata events.EventMetadata) string {
	if p.tokens == nil {
		return ""
	}

	token, err := p.tokens.Issue(metadata.TenantID, metadata.UserID)
	if err != nil {
		logger.WarnContext(ctx, "Failed to issue service token", "error", err)

		return ""
	}

	return token
}

func apply(ctx context.Context, action actions.Action, record models.Record, exec *actions.Execution) (effect actions.Effect, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &actions.WorkflowExecutionError{
				ActionType: action.Type(),
				WorkflowID: exec.WorkflowID,
				Err:        fmt.Errorf("panic: %v", r),
			}
		}
	}()

	return action.Apply(ctx, record, exec)
}

// triggerFrequency falls back to the presence of an old snapshot when the event does not name
// its lifecycle action.
func triggerFrequency(event *events.EntityEvent) models.TriggerFrequency {
	if event.Metadata.Action != "" {
		return event.Metadata.Action
	}

	if event.Old == nil {
		return models.TriggerCreated
	}

	return models.TriggerUpdated
}

func eventKey(event eventbus.Event, record models.Record) string {
	if keyed, ok := event.(interface{ Key() string }); ok {
		return keyed.Key()
	}

	return strconv.FormatInt(record.GetID(), 10)
}
