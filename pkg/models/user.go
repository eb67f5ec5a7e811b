package models

import "strings"

// User is a member of a tenant as returned by the identity service.
type User struct {
	ID           int64         `json:"id"`
	TenantID     int64         `json:"tenantId"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Email        string        `json:"email"`
	PhoneNumbers []PhoneNumber `json:"phoneNumbers,omitempty"`
	Designation  string        `json:"designation,omitempty"`
	Department   string        `json:"department,omitempty"`
	Timezone     string        `json:"timezone,omitempty"`
	Language     string        `json:"language,omitempty"`
	Active       bool          `json:"active"`
}

// Name is the user's display name.
func (u *User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Attribute returns a named attribute of the user, or nil when unknown or unset.
func (u *User) Attribute(name string) any {
	switch name {
	case "id":
		return u.ID
	case "firstName":
		return blankToNil(u.FirstName)
	case "lastName":
		return blankToNil(u.LastName)
	case "name":
		return blankToNil(u.Name())
	case "email":
		return blankToNil(u.Email)
	case "phoneNumbers":
		if len(u.PhoneNumbers) == 0 {
			return nil
		}

		numbers := make([]string, 0, len(u.PhoneNumbers))
		for _, p := range u.PhoneNumbers {
			numbers = append(numbers, p.String())
		}

		return numbers
	case "designation":
		return blankToNil(u.Designation)
	case "department":
		return blankToNil(u.Department)
	case "timezone":
		return blankToNil(u.Timezone)
	case "language":
		return blankToNil(u.Language)
	default:
		return nil
	}
}

// Tenant is the account a workflow belongs to.
type Tenant struct {
	ID          int64  `json:"id"`
	AccountName string `json:"accountName"`
	CompanyName string `json:"companyName,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Website     string `json:"website,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// Attribute returns a named attribute of the tenant, or nil when unknown or unset.
func (t *Tenant) Attribute(name string) any {
	switch name {
	case "id":
		return t.ID
	case "accountName":
		return blankToNil(t.AccountName)
	case "companyName":
		return blankToNil(t.CompanyName)
	case "industry":
		return blankToNil(t.Industry)
	case "website":
		return blankToNil(t.Website)
	case "address":
		return blankToNil(t.Address)
	case "city":
		return blankToNil(t.City)
	case "state":
		return blankToNil(t.State)
	case "country":
		return blankToNil(t.Country)
	case "timezone":
		return blankToNil(t.Timezone)
	case "currency":
		return blankToNil(t.Currency)
	default:
		return nil
	}
}

func blankToNil(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	return s
}
