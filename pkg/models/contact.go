package models

import (
	"strings"
	"time"
)

// Contact is a person the tenant does business with.
type Contact struct {
	ID                int64          `json:"id"`
	TenantID          int64          `json:"tenantId"`
	Salutation        string         `json:"salutation,omitempty"`
	FirstName         string         `json:"firstName,omitempty"`
	LastName          string         `json:"lastName,omitempty"`
	Emails            []Email        `json:"emails,omitempty"`
	PhoneNumbers      []PhoneNumber  `json:"phoneNumbers,omitempty"`
	OwnerID           *IdName        `json:"ownerId,omitempty"`
	Company           *IdName        `json:"company,omitempty"`
	Source            *IdName        `json:"source,omitempty"`
	Designation       string         `json:"designation,omitempty"`
	Department        string         `json:"department,omitempty"`
	City              string         `json:"city,omitempty"`
	State             string         `json:"state,omitempty"`
	Country           string         `json:"country,omitempty"`
	Stakeholder       bool           `json:"stakeholder"`
	DoNotDisturb      bool           `json:"dnd"`
	CreatedBy         *IdName        `json:"createdBy,omitempty"`
	UpdatedBy         *IdName        `json:"updatedBy,omitempty"`
	CreatedAt         *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time     `json:"updatedAt,omitempty"`
	CustomFieldValues map[string]any `json:"customFieldValues,omitempty"`
}

func (c *Contact) EntityType() EntityType { return EntityContact }
func (c *Contact) GetID() int64           { return c.ID }
func (c *Contact) GetTenantID() int64     { return c.TenantID }
func (c *Contact) GetOwnerID() int64      { return idOf(c.OwnerID) }
func (c *Contact) GetCreatedBy() int64    { return idOf(c.CreatedBy) }
func (c *Contact) GetUpdatedBy() int64    { return idOf(c.UpdatedBy) }
func (c *Contact) GetEmails() []Email     { return c.Emails }

func (c *Contact) GetName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func (c *Contact) GetCustomFieldValues() map[string]any {
	return c.CustomFieldValues
}

func (c *Contact) SetCustomFieldValue(name string, value any) {
	if c.CustomFieldValues == nil {
		c.CustomFieldValues = map[string]any{}
	}

	c.CustomFieldValues[name] = value
}

func (c *Contact) Clone() Record {
	cp := *c
	cp.CustomFieldValues = cloneCustomFields(c.CustomFieldValues)

	return &cp
}
