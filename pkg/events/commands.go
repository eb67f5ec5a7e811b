package events

import (
	"fmt"
	"time"

	"github.com/dukex/flowcrm/pkg/models"
)

// PatchCommand is the single field mutation emitted for a record after one processing pass.
type PatchCommand struct {
	EntityID   int64             `json:"entityId"`
	EntityType models.EntityType `json:"entityType"`
	TenantID   int64             `json:"tenantId"`
	Patch      map[string]any    `json:"patch"`
	Metadata   EventMetadata     `json:"metadata"`
}

func (p *PatchCommand) GetType() EventType {
	return PatchEventType(p.EntityType)
}

func (p *PatchCommand) Key() string {
	return fmt.Sprintf("%d", p.EntityID)
}

// RelatedEntity points at the record an action was run for.
type RelatedEntity struct {
	ID         int64             `json:"id"`
	EntityType models.EntityType `json:"entityType"`
	Name       string            `json:"name,omitempty"`
}

// TaskCreateRequested asks the task service to create a task for a record.
type TaskCreateRequested struct {
	TenantID    int64         `json:"tenantId"`
	UserID      int64         `json:"userId"`
	EntityID    int64         `json:"entityId"`
	EntityType  string        `json:"entityType"`
	RelatedTo   RelatedEntity `json:"relatedTo"`
	WorkflowID  int64         `json:"workflowId"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        int64         `json:"type,omitempty"`
	Status      int64         `json:"status,omitempty"`
	Priority    int64         `json:"priority,omitempty"`
	Outcome     int64         `json:"outcome,omitempty"`
	AssignedTo  int64         `json:"assignedTo"`
	DueDate     time.Time     `json:"dueDate"`
}

func (t *TaskCreateRequested) GetType() EventType {
	return TaskCreateRequestedEvent
}

func (t *TaskCreateRequested) Key() string {
	return fmt.Sprintf("%d", t.EntityID)
}

// Participant is one addressee of an email.
type Participant struct {
	ID         int64  `json:"id"`
	EntityType string `json:"entity"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email"`
}

// EmailActionRequested asks the email service to send a templated email.
type EmailActionRequested struct {
	TenantID        int64         `json:"tenantId"`
	UserID          int64         `json:"userId"`
	SenderID        int64         `json:"senderId"`
	EmailTemplateID int64         `json:"emailTemplateId"`
	WorkflowID      int64         `json:"workflowId"`
	RelatedTo       RelatedEntity `json:"relatedTo"`
	From            Participant   `json:"from"`
	To              []Participant `json:"to"`
	Cc              []Participant `json:"cc"`
	Bcc             []Participant `json:"bcc"`
}

func (e *EmailActionRequested) GetType() EventType {
	return EmailActionRequestedEvent
}

func (e *EmailActionRequested) Key() string {
	return fmt.Sprintf("%d", e.RelatedTo.ID)
}
