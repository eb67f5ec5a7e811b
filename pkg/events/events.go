// Package events defines the messages the workflow engine consumes and produces.
package events

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dukex/flowcrm/pkg/models"
)

type EventType string

const TopicPrefix = "flowcrm."

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Inbound record changes.
	LeadChangedEvent    EventType = "lead.changed"
	ContactChangedEvent EventType = "contact.changed"
	DealChangedEvent    EventType = "deal.changed"

	// Consolidated field mutations for a record.
	LeadPatchEvent    EventType = "lead.patch"
	ContactPatchEvent EventType = "contact.patch"
	DealPatchEvent    EventType = "deal.patch"

	// Side effects requested by actions.
	TaskCreateRequestedEvent  EventType = "task.create-requested"
	EmailActionRequestedEvent EventType = "email.action-requested"
)

// Topic returns the broker topic carrying events of type t.
func Topic(t EventType) string {
	return TopicPrefix + string(t)
}

// ChangedEventType returns the inbound event type of an entity type.
func ChangedEventType(entityType models.EntityType) EventType {
	return EventType(entityType.Lower() + ".changed")
}

// PatchEventType returns the patch command type of an entity type.
func PatchEventType(entityType models.EntityType) EventType {
	return EventType(entityType.Lower() + ".patch")
}

// EventMetadata travels with every record event and every command derived from it.
// ExecutedWorkflows lists the workflows already applied along the causal chain.
type EventMetadata struct {
	TenantID          int64                   `json:"tenantId"`
	UserID            int64                   `json:"userId"`
	EntityType        models.EntityType       `json:"entityType"`
	SourceWorkflowID  *int64                  `json:"sourceWorkflowId"`
	ExecutedWorkflows []int64                 `json:"executedWorkflows"`
	Action            models.TriggerFrequency `json:"action,omitempty"`
}

// HasExecuted reports whether workflowID already ran along this chain.
func (m EventMetadata) HasExecuted(workflowID int64) bool {
	return slices.Contains(m.ExecutedWorkflows, workflowID)
}

// WithExecuted returns a copy of m whose executed set also holds ids, keeping first-seen order.
func (m EventMetadata) WithExecuted(ids ...int64) EventMetadata {
	executed := make([]int64, 0, len(m.ExecutedWorkflows)+len(ids))

	for _, id := range slices.Concat(m.ExecutedWorkflows, ids) {
		if !slices.Contains(executed, id) {
			executed = append(executed, id)
		}
	}

	m.ExecutedWorkflows = executed

	return m
}

// EntityEvent is a record change: the new snapshot, the previous one for updates, and metadata.
type EntityEvent struct {
	New      models.Record
	Old      models.Record
	Metadata EventMetadata
}

func (e *EntityEvent) GetType() EventType {
	return ChangedEventType(e.Metadata.EntityType)
}

// Key partitions record events by record id.
func (e *EntityEvent) Key() string {
	if e.New == nil {
		return ""
	}

	return fmt.Sprintf("%d", e.New.GetID())
}

type entityEventJSON struct {
	New      json.RawMessage `json:"new"`
	Old      json.RawMessage `json:"old"`
	Metadata EventMetadata   `json:"metadata"`
}

func (e *EntityEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		New      models.Record `json:"new"`
		Old      models.Record `json:"old"`
		Metadata EventMetadata `json:"metadata"`
	}{e.New, e.Old, e.Metadata})
}

func (e *EntityEvent) UnmarshalJSON(data []byte) error {
	var raw entityEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if !raw.Metadata.EntityType.Valid() {
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidEvent, raw.Metadata.EntityType)
	}

	if isNull(raw.New) {
		return fmt.Errorf("%w: new snapshot is required", ErrInvalidEvent)
	}

	newRecord, err := models.DecodeRecord(raw.Metadata.EntityType, raw.New)
	if err != nil {
		return err
	}

	var oldRecord models.Record
	if !isNull(raw.Old) {
		oldRecord, err = models.DecodeRecord(raw.Metadata.EntityType, raw.Old)
		if err != nil {
			return err
		}
	}

	*e = EntityEvent{New: newRecord, Old: oldRecord, Metadata: raw.Metadata}

	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
