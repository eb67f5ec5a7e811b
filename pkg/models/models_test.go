package models

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name       string
		entityType EntityType
		data       string
		check      func(t *testing.T, r Record)
		wantErr    bool
	}{
		{
			name:       "lead",
			entityType: EntityLead,
			data:       `{"id":7,"tenantId":3,"firstName":"Om","lastName":"Shah","ownerId":{"id":242,"name":"Tony"}}`,
			check: func(t *testing.T, r Record) {
				lead, ok := r.(*Lead)
				require.True(t, ok)
				assert.Equal(t, "Om", lead.FirstName)
				assert.Equal(t, int64(242), r.GetOwnerID())
				assert.Equal(t, "Om Shah", r.GetName())
			},
		},
		{
			name:       "contact",
			entityType: EntityContact,
			data:       `{"id":8,"tenantId":3,"emails":[{"value":"a@x.io","primary":false},{"value":"b@x.io","primary":true}]}`,
			check: func(t *testing.T, r Record) {
				assert.Equal(t, EntityContact, r.EntityType())
				email, ok := PrimaryEmail(r)
				require.True(t, ok)
				assert.Equal(t, "b@x.io", email.Value)
			},
		},
		{
			name:       "deal",
			entityType: EntityDeal,
			data:       `{"id":9,"tenantId":3,"name":"Big one","ownedBy":{"id":12},"estimatedValue":{"currencyId":1,"value":1500.5}}`,
			check: func(t *testing.T, r Record) {
				deal := r.(*Deal)
				assert.Equal(t, 1500.5, deal.EstimatedValue.Value)
				assert.Equal(t, int64(12), r.GetOwnerID())
				assert.Nil(t, r.GetEmails())
			},
		},
		{
			name:       "unknown entity",
			entityType: EntityType("ACCOUNT"),
			data:       `{}`,
			wantErr:    true,
		},
		{
			name:       "malformed",
			entityType: EntityLead,
			data:       `{"id":"seven"}`,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := DecodeRecord(tt.entityType, json.RawMessage(tt.data))
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			tt.check(t, record)
		})
	}
}

func TestPrimaryEmailFallsBackToFirst(t *testing.T) {
	lead := &Lead{Emails: []Email{{Value: "first@x.io"}, {Value: "second@x.io"}}}

	email, ok := PrimaryEmail(lead)
	require.True(t, ok)
	assert.Equal(t, "first@x.io", email.Value)

	_, ok = PrimaryEmail(&Lead{})
	assert.False(t, ok)
}

func TestCloneIsolatesCustomFields(t *testing.T) {
	original := &Lead{ID: 1, FirstName: "Om", CustomFieldValues: map[string]any{"tier": "gold"}}

	clone := original.Clone()
	clone.SetCustomFieldValue("tier", "silver")
	clone.(*Lead).FirstName = "steve"

	assert.Equal(t, "gold", original.CustomFieldValues["tier"])
	assert.Equal(t, "Om", original.FirstName)
	assert.Equal(t, "silver", clone.GetCustomFieldValues()["tier"])
}

func TestUserAndTenantAttributes(t *testing.T) {
	user := &User{ID: 5, FirstName: "Tony", LastName: "Stark", Email: "tony@stark.io"}
	assert.Equal(t, "Tony Stark", user.Attribute("name"))
	assert.Equal(t, "tony@stark.io", user.Attribute("email"))
	assert.Nil(t, user.Attribute("designation"))
	assert.Nil(t, user.Attribute("phoneNumbers"))
	assert.Nil(t, user.Attribute("unknown"))

	tenant := &Tenant{ID: 3, AccountName: "Acme", Website: " "}
	assert.Equal(t, "Acme", tenant.Attribute("accountName"))
	assert.Nil(t, tenant.Attribute("website"))
}

func TestWorkflowValidation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	valid := Workflow{
		TenantID:   1,
		Name:       "Assign new leads",
		EntityType: EntityLead,
		Trigger:    WorkflowTrigger{Name: TriggerEvent, TriggerFrequency: TriggerCreated},
		Condition:  WorkflowCondition{Type: ConditionForAll},
		Actions:    []ActionDefinition{{Type: ActionReassign, Payload: json.RawMessage(`{"ownerId":4}`)}},
	}
	require.NoError(t, validate.Struct(valid))

	invalid := valid
	invalid.EntityType = "ACCOUNT"
	invalid.Actions = nil
	assert.Error(t, validate.Struct(invalid))
}
