package models

import (
	"strings"
	"time"
)

// Lead is a prospective customer record.
type Lead struct {
	ID                int64          `json:"id"`
	TenantID          int64          `json:"tenantId"`
	Salutation        string         `json:"salutation,omitempty"`
	FirstName         string         `json:"firstName,omitempty"`
	LastName          string         `json:"lastName,omitempty"`
	Emails            []Email        `json:"emails,omitempty"`
	PhoneNumbers      []PhoneNumber  `json:"phoneNumbers,omitempty"`
	OwnerID           *IdName        `json:"ownerId,omitempty"`
	Pipeline          *IdName        `json:"pipeline,omitempty"`
	PipelineStage     *IdName        `json:"pipelineStage,omitempty"`
	Source            *IdName        `json:"source,omitempty"`
	Products          []IdName       `json:"products,omitempty"`
	CompanyName       string         `json:"companyName,omitempty"`
	Designation       string         `json:"designation,omitempty"`
	City              string         `json:"city,omitempty"`
	State             string         `json:"state,omitempty"`
	Country           string         `json:"country,omitempty"`
	RequirementName   string         `json:"requirementName,omitempty"`
	RequirementBudget *float64       `json:"requirementBudget,omitempty"`
	Score             *float64       `json:"score,omitempty"`
	DoNotDisturb      bool           `json:"dnd"`
	ConvertedBy       *IdName        `json:"convertedBy,omitempty"`
	ConvertedAt       *time.Time     `json:"convertedAt,omitempty"`
	CreatedBy         *IdName        `json:"createdBy,omitempty"`
	UpdatedBy         *IdName        `json:"updatedBy,omitempty"`
	CreatedAt         *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time     `json:"updatedAt,omitempty"`
	CustomFieldValues map[string]any `json:"customFieldValues,omitempty"`
}

func (l *Lead) EntityType() EntityType { return EntityLead }
func (l *Lead) GetID() int64           { return l.ID }
func (l *Lead) GetTenantID() int64     { return l.TenantID }
func (l *Lead) GetOwnerID() int64      { return idOf(l.OwnerID) }
func (l *Lead) GetCreatedBy() int64    { return idOf(l.CreatedBy) }
func (l *Lead) GetUpdatedBy() int64    { return idOf(l.UpdatedBy) }
func (l *Lead) GetEmails() []Email     { return l.Emails }

func (l *Lead) GetName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

func (l *Lead) GetCustomFieldValues() map[string]any {
	return l.CustomFieldValues
}

func (l *Lead) SetCustomFieldValue(name string, value any) {
	if l.CustomFieldValues == nil {
		l.CustomFieldValues = map[string]any{}
	}

	l.CustomFieldValues[name] = value
}

// Clone copies the lead. Nested references are shared; setters replace them rather than mutate.
func (l *Lead) Clone() Record {
	c := *l
	c.CustomFieldValues = cloneCustomFields(l.CustomFieldValues)

	return &c
}
