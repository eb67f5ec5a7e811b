package models

import (
	"encoding/json"
	"time"

	"github.com/dukex/flowcrm/pkg/expression"
)

// TriggerName is the kind of trigger a workflow uses. Only record events are supported.
type TriggerName string

const TriggerEvent TriggerName = "EVENT"

// TriggerFrequency is the record lifecycle event a workflow reacts to.
type TriggerFrequency string

const (
	TriggerCreated TriggerFrequency = "CREATED"
	TriggerUpdated TriggerFrequency = "UPDATED"
)

// ConditionType tells whether a workflow runs for every event or only when its expression holds.
type ConditionType string

const (
	ConditionForAll         ConditionType = "FOR_ALL"
	ConditionConditionBased ConditionType = "CONDITION_BASED"
)

// ActionType discriminates the persisted action payloads.
type ActionType string

const (
	ActionEditProperty ActionType = "EDIT_PROPERTY"
	ActionReassign     ActionType = "REASSIGN"
	ActionCreateTask   ActionType = "CREATE_TASK"
	ActionSendEmail    ActionType = "SEND_EMAIL"
	ActionWebhook      ActionType = "WEBHOOK"
)

// Workflow is a tenant-owned rule binding an entity type and trigger to a condition and actions.
type Workflow struct {
	ID          int64              `json:"id"`
	TenantID    int64              `json:"tenantId"    validate:"required"`
	Name        string             `json:"name"        validate:"required,min=3,max=255"`
	Description string             `json:"description"`
	EntityType  EntityType         `json:"entityType"  validate:"required,oneof=LEAD CONTACT DEAL"`
	Trigger     WorkflowTrigger    `json:"trigger"`
	Condition   WorkflowCondition  `json:"condition"`
	Actions     []ActionDefinition `json:"actions"     validate:"required,min=1,dive"`
	Telemetry   ExecutionTelemetry `json:"telemetry"`
	Active      bool               `json:"active"`
	CreatedBy   int64              `json:"createdBy"`
	UpdatedBy   int64              `json:"updatedBy"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// WorkflowTrigger selects which record events a workflow considers.
type WorkflowTrigger struct {
	Name             TriggerName      `json:"name"             validate:"required,oneof=EVENT"`
	TriggerFrequency TriggerFrequency `json:"triggerFrequency" validate:"required,oneof=CREATED UPDATED"`
}

// WorkflowCondition holds the compiled expression; FOR_ALL conditions carry none.
type WorkflowCondition struct {
	Type       ConditionType    `json:"conditionType" validate:"required,oneof=FOR_ALL CONDITION_BASED"`
	Expression *expression.Node `json:"expression,omitempty"`
}

// ExecutionTelemetry records how often and when a workflow last ran.
type ExecutionTelemetry struct {
	LastTriggeredAt *time.Time `json:"lastTriggeredAt,omitempty"`
	TriggerCount    int64      `json:"triggerCount"`
}

// ActionDefinition is the persisted form of an action: its type and a type-specific payload.
type ActionDefinition struct {
	ID      int64           `json:"id,omitempty"`
	Type    ActionType      `json:"type"    validate:"required,oneof=EDIT_PROPERTY REASSIGN CREATE_TASK SEND_EMAIL WEBHOOK"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}
