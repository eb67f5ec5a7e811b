// Package models defines the CRM records and the workflow definitions that react to their changes.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EntityType identifies the kind of business record a workflow reacts to.
type EntityType string

const (
	EntityLead    EntityType = "LEAD"
	EntityContact EntityType = "CONTACT"
	EntityDeal    EntityType = "DEAL"
)

// EntityTypes lists every supported entity type.
var EntityTypes = []EntityType{EntityLead, EntityContact, EntityDeal}

// Valid reports whether e is one of the supported entity types.
func (e EntityType) Valid() bool {
	switch e {
	case EntityLead, EntityContact, EntityDeal:
		return true
	default:
		return false
	}
}

// Lower returns the lower-case form used in topics and participant descriptors ("lead").
func (e EntityType) Lower() string {
	return strings.ToLower(string(e))
}

// IdName is a reference to another entity, carried with its display name.
type IdName struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// Money is an amount in a given currency.
type Money struct {
	CurrencyID int64   `json:"currencyId"`
	Value      float64 `json:"value"`
}

// Email is one of the email addresses a lead or contact holds.
type Email struct {
	Type    string `json:"type,omitempty"`
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

// PhoneNumber is one of the phone numbers a lead or contact holds.
type PhoneNumber struct {
	Type     string `json:"type,omitempty"`
	Code     string `json:"code,omitempty"`
	DialCode string `json:"dialCode,omitempty"`
	Value    string `json:"value"`
	Primary  bool   `json:"primary"`
}

// String returns the dialable form of the number.
func (p PhoneNumber) String() string {
	return p.DialCode + p.Value
}

// Record is a snapshot of a business record as carried on an entity event.
type Record interface {
	EntityType() EntityType
	GetID() int64
	GetTenantID() int64
	GetName() string
	GetOwnerID() int64
	GetCreatedBy() int64
	GetUpdatedBy() int64
	GetEmails() []Email
	GetCustomFieldValues() map[string]any
	SetCustomFieldValue(name string, value any)
	// Clone returns a copy that can be mutated without affecting the original.
	Clone() Record
}

// PrimaryEmail returns the primary email of a record, falling back to the first one.
func PrimaryEmail(record Record) (Email, bool) {
	emails := record.GetEmails()
	for _, email := range emails {
		if email.Primary && email.Value != "" {
			return email, true
		}
	}

	for _, email := range emails {
		if email.Value != "" {
			return email, true
		}
	}

	return Email{}, false
}

// DecodeRecord decodes a JSON snapshot into the record type matching entityType.
func DecodeRecord(entityType EntityType, data json.RawMessage) (Record, error) {
	var record Record

	switch entityType {
	case EntityLead:
		record = &Lead{}
	case EntityContact:
		record = &Contact{}
	case EntityDeal:
		record = &Deal{}
	default:
		return nil, fmt.Errorf("unsupported entity type %q", entityType)
	}

	err := json.Unmarshal(data, record)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s snapshot: %w", entityType.Lower(), err)
	}

	return record, nil
}

func idOf(ref *IdName) int64 {
	if ref == nil {
		return 0
	}

	return ref.ID
}

func cloneCustomFields(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}

	cloned := make(map[string]any, len(values))
	for k, v := range values {
		cloned[k] = v
	}

	return cloned
}
