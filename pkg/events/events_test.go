package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowcrm/pkg/models"
)

const updatedLeadEvent = `{
	"new": {"id": 7, "tenantId": 3, "firstName": "Om", "ownerId": {"id": 242, "name": "Tony"}},
	"old": {"id": 7, "tenantId": 3, "firstName": "Yash"},
	"metadata": {
		"tenantId": 3,
		"userId": 12,
		"entityType": "LEAD",
		"action": "UPDATED",
		"sourceWorkflowId": null,
		"executedWorkflows": [4]
	}
}`

func TestEntityEvent_Unmarshal(t *testing.T) {
	require.NoError(t, ValidateEntityEvent([]byte(updatedLeadEvent)))

	var event EntityEvent
	require.NoError(t, json.Unmarshal([]byte(updatedLeadEvent), &event))

	assert.Equal(t, LeadChangedEvent, event.GetType())
	assert.Equal(t, "7", event.Key())
	assert.Equal(t, "Om", event.New.(*models.Lead).FirstName)
	assert.Equal(t, "Yash", event.Old.(*models.Lead).FirstName)
	assert.Equal(t, models.TriggerUpdated, event.Metadata.Action)
	assert.True(t, event.Metadata.HasExecuted(4))
	assert.False(t, event.Metadata.HasExecuted(5))
}

func TestEntityEvent_CreatedHasNoOldSnapshot(t *testing.T) {
	payload := `{"new":{"id":9,"name":"Big one"},"old":null,"metadata":{"tenantId":3,"entityType":"DEAL","action":"CREATED"}}`
	require.NoError(t, ValidateEntityEvent([]byte(payload)))

	var event EntityEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &event))

	assert.Nil(t, event.Old)
	assert.Equal(t, models.EntityDeal, event.New.EntityType())
	assert.Equal(t, "flowcrm.deal.changed", Topic(event.GetType()))
}

func TestEntityEvent_RoundTrip(t *testing.T) {
	source := int64(4)
	event := &EntityEvent{
		New: &models.Contact{ID: 5, FirstName: "Ada"},
		Metadata: EventMetadata{
			TenantID:          1,
			EntityType:        models.EntityContact,
			SourceWorkflowID:  &source,
			ExecutedWorkflows: []int64{4},
			Action:            models.TriggerUpdated,
		},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, ValidateEntityEvent(data))

	var decoded EntityEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.New, decoded.New)
	assert.Equal(t, event.Metadata, decoded.Metadata)
}

func TestValidateEntityEvent_Rejects(t *testing.T) {
	tests := map[string]string{
		"missing new":          `{"metadata":{"tenantId":3,"entityType":"LEAD","action":"CREATED"}}`,
		"unknown entity":       `{"new":{"id":1},"metadata":{"tenantId":3,"entityType":"ACCOUNT","action":"CREATED"}}`,
		"unknown action":       `{"new":{"id":1},"metadata":{"tenantId":3,"entityType":"LEAD","action":"DELETED"}}`,
		"string workflow ids":  `{"new":{"id":1},"metadata":{"tenantId":3,"entityType":"LEAD","action":"CREATED","executedWorkflows":["4"]}}`,
		"not json":             `{"new":`,
		"missing tenant":       `{"new":{"id":1},"metadata":{"entityType":"LEAD","action":"CREATED"}}`,
		"record without an id": `{"new":{"firstName":"x"},"metadata":{"tenantId":3,"entityType":"LEAD","action":"CREATED"}}`,
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateEntityEvent([]byte(payload)), ErrInvalidEvent)
		})
	}
}

func TestEventMetadata_WithExecuted(t *testing.T) {
	meta := EventMetadata{ExecutedWorkflows: []int64{4, 7}}

	extended := meta.WithExecuted(7, 9, 9)

	assert.Equal(t, []int64{4, 7, 9}, extended.ExecutedWorkflows)
	assert.Equal(t, []int64{4, 7}, meta.ExecutedWorkflows)
}

func TestPatchEventType(t *testing.T) {
	assert.Equal(t, DealPatchEvent, PatchEventType(models.EntityDeal))
	assert.Equal(t, ContactChangedEvent, ChangedEventType(models.EntityContact))
}
