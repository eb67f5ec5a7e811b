package actions

import (
	"context"
	"time"

	"github.com/dukex/flowcrm/pkg/events"
	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/template"
)

// AssigneeType tells who a created task is assigned to.
type AssigneeType string

const (
	AssignToUser            AssigneeType = "USER"
	AssignToRecordOwner     AssigneeType = "RECORD_OWNER"
	AssignToRecordCreatedBy AssigneeType = "RECORD_CREATED_BY"
)

type Assignee struct {
	Type AssigneeType `json:"type"         validate:"required,oneof=USER RECORD_OWNER RECORD_CREATED_BY"`
	ID   int64        `json:"id,omitempty" validate:"required_if=Type USER"`
}

// DueIn is the offset from the moment the action runs to the task's due date.
type DueIn struct {
	Days  int `json:"days"  validate:"min=0"`
	Hours int `json:"hours" validate:"min=0,max=23"`
}

func (d DueIn) duration() time.Duration {
	return time.Duration(d.Days)*24*time.Hour + time.Duration(d.Hours)*time.Hour
}

// CreateTask asks the task service to create a follow-up task for the record.
type CreateTask struct {
	Name        string   `json:"name"                  validate:"required,max=255"`
	Description string   `json:"description,omitempty"`
	TaskType    int64    `json:"type,omitempty"`
	Status      int64    `json:"status,omitempty"`
	Priority    int64    `json:"priority,omitempty"`
	Outcome     int64    `json:"outcome,omitempty"`
	AssignedTo  Assignee `json:"assignedTo"            validate:"required"`
	DueDate     DueIn    `json:"dueDate"`
}

func (a *CreateTask) Type() models.ActionType {
	return models.ActionCreateTask
}

func (a *CreateTask) Validate() error {
	return validateStruct(a.Type(), a)
}

func (a *CreateTask) Apply(_ context.Context, record models.Record, exec *Execution) (Effect, error) {
	assignee := a.assignee(record)
	if assignee == 0 {
		return nil, executionError(a.Type(), exec, "no assignee for %s", a.AssignedTo.Type)
	}

	name, err := a.render(a.Name, record, exec)
	if err != nil {
		return nil, executionError(a.Type(), exec, "failed to render task name: %w", err)
	}

	description, err := a.render(a.Description, record, exec)
	if err != nil {
		return nil, executionError(a.Type(), exec, "failed to render task description: %w", err)
	}

	return Publish{Event: &events.TaskCreateRequested{
		TenantID:    exec.TenantID,
		UserID:      exec.UserID,
		EntityID:    record.GetID(),
		EntityType:  record.EntityType().Lower(),
		RelatedTo:   relatedTo(record),
		WorkflowID:  exec.WorkflowID,
		Name:        name,
		Description: description,
		Type:        a.TaskType,
		Status:      a.Status,
		Priority:    a.Priority,
		Outcome:     a.Outcome,
		AssignedTo:  assignee,
		DueDate:     exec.now().Add(a.DueDate.duration()).UTC(),
	}}, nil
}

func (a *CreateTask) assignee(record models.Record) int64 {
	switch a.AssignedTo.Type {
	case AssignToUser:
		return a.AssignedTo.ID
	case AssignToRecordOwner:
		return record.GetOwnerID()
	case AssignToRecordCreatedBy:
		return record.GetCreatedBy()
	default:
		return 0
	}
}

func (a *CreateTask) render(value string, record models.Record, exec *Execution) (string, error) {
	if !template.NeedsTemplating(value) {
		return value, nil
	}

	return template.RenderForRecord(value, record, exec.templateContext())
}
