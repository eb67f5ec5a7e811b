package models

import "time"

// Deal is a sales opportunity moving through a pipeline.
type Deal struct {
	ID                 int64          `json:"id"`
	TenantID           int64          `json:"tenantId"`
	Name               string         `json:"name,omitempty"`
	OwnedBy            *IdName        `json:"ownedBy,omitempty"`
	EstimatedValue     *Money         `json:"estimatedValue,omitempty"`
	ActualValue        *Money         `json:"actualValue,omitempty"`
	EstimatedClosureOn *time.Time     `json:"estimatedClosureOn,omitempty"`
	ActualClosureDate  *time.Time     `json:"actualClosureDate,omitempty"`
	Pipeline           *IdName        `json:"pipeline,omitempty"`
	PipelineStage      *IdName        `json:"pipelineStage,omitempty"`
	Products           []IdName       `json:"products,omitempty"`
	AssociatedContacts []IdName       `json:"associatedContacts,omitempty"`
	Company            *IdName        `json:"company,omitempty"`
	Source             *IdName        `json:"source,omitempty"`
	CreatedBy          *IdName        `json:"createdBy,omitempty"`
	UpdatedBy          *IdName        `json:"updatedBy,omitempty"`
	CreatedAt          *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time     `json:"updatedAt,omitempty"`
	CustomFieldValues  map[string]any `json:"customFieldValues,omitempty"`
}

func (d *Deal) EntityType() EntityType { return EntityDeal }
func (d *Deal) GetID() int64           { return d.ID }
func (d *Deal) GetTenantID() int64     { return d.TenantID }
func (d *Deal) GetName() string        { return d.Name }
func (d *Deal) GetOwnerID() int64      { return idOf(d.OwnedBy) }
func (d *Deal) GetCreatedBy() int64    { return idOf(d.CreatedBy) }
func (d *Deal) GetUpdatedBy() int64    { return idOf(d.UpdatedBy) }

// GetEmails returns nil; deals reach people only through their associated contacts.
func (d *Deal) GetEmails() []Email { return nil }

func (d *Deal) GetCustomFieldValues() map[string]any {
	return d.CustomFieldValues
}

func (d *Deal) SetCustomFieldValue(name string, value any) {
	if d.CustomFieldValues == nil {
		d.CustomFieldValues = map[string]any{}
	}

	d.CustomFieldValues[name] = value
}

func (d *Deal) Clone() Record {
	c := *d
	c.CustomFieldValues = cloneCustomFields(d.CustomFieldValues)

	return &c
}
