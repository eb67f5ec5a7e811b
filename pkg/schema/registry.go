package schema

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukex/flowcrm/pkg/models"
)

// CustomFieldPrefix addresses tenant-defined fields, as in "customFieldValues.tier".
const CustomFieldPrefix = "customFieldValues."

// Registry holds the accessors of every entity type, keyed by dotted path.
type Registry struct {
	entities map[models.EntityType]map[string]*Field
}

var defaultRegistry = sync.OnceValue(New)

// Default returns the process-wide registry, built on first use.
func Default() *Registry {
	return defaultRegistry()
}

// New builds a registry with the lead, contact and deal accessors.
func New() *Registry {
	r := &Registry{entities: map[models.EntityType]map[string]*Field{}}

	r.register(models.EntityLead, leadFields())
	r.register(models.EntityContact, contactFields())
	r.register(models.EntityDeal, dealFields())

	return r
}

func (r *Registry) register(entityType models.EntityType, fields []*Field) {
	byPath := make(map[string]*Field, len(fields))
	for _, f := range fields {
		byPath[f.Path] = f
	}

	r.entities[entityType] = byPath
}

// Lookup finds the accessor of a path. Paths under customFieldValues are always known.
func (r *Registry) Lookup(entityType models.EntityType, path string) (*Field, bool) {
	fields, ok := r.entities[entityType]
	if !ok {
		return nil, false
	}

	if f, ok := fields[path]; ok {
		return f, true
	}

	if name, ok := strings.CutPrefix(path, CustomFieldPrefix); ok && name != "" {
		return customField(name), true
	}

	return nil, false
}

// CustomField returns the accessor of a tenant-defined field.
func (r *Registry) CustomField(name string) *Field {
	return customField(name)
}

// Value reads a path from a record.
func (r *Registry) Value(record models.Record, path string) (any, error) {
	f, ok := r.Lookup(record.EntityType(), path)
	if !ok {
		return nil, &FieldError{Path: path, Err: ErrUnknownField}
	}

	return f.Get(record), nil
}

// Set writes a value to a path of a record.
func (r *Registry) Set(record models.Record, path string, value any) error {
	f, ok := r.Lookup(record.EntityType(), path)
	if !ok {
		return &FieldError{Path: path, Err: ErrUnknownField}
	}

	return f.Set(record, value)
}

// Paths lists the registered paths of an entity type, sorted.
func (r *Registry) Paths(entityType models.EntityType) []string {
	fields := r.entities[entityType]

	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}

	slices.Sort(paths)

	return paths
}

func leadFields() []*Field {
	fields := []*Field{
		idField("id", func(l *models.Lead) *int64 { return &l.ID }),
		idField("tenantId", func(l *models.Lead) *int64 { return &l.TenantID }),
		stringField("salutation", func(l *models.Lead) *string { return &l.Salutation }),
		stringField("firstName", func(l *models.Lead) *string { return &l.FirstName }),
		stringField("lastName", func(l *models.Lead) *string { return &l.LastName }),
		emailsField("emails", func(l *models.Lead) *[]models.Email { return &l.Emails }),
		phoneNumbersField("phoneNumbers", func(l *models.Lead) *[]models.PhoneNumber { return &l.PhoneNumbers }),
		referenceListField("products", func(l *models.Lead) *[]models.IdName { return &l.Products }),
		stringField("companyName", func(l *models.Lead) *string { return &l.CompanyName }),
		stringField("designation", func(l *models.Lead) *string { return &l.Designation }),
		stringField("city", func(l *models.Lead) *string { return &l.City }),
		stringField("state", func(l *models.Lead) *string { return &l.State }),
		stringField("country", func(l *models.Lead) *string { return &l.Country }),
		stringField("requirementName", func(l *models.Lead) *string { return &l.RequirementName }),
		numberField("requirementBudget", func(l *models.Lead) **float64 { return &l.RequirementBudget }),
		numberField("score", func(l *models.Lead) **float64 { return &l.Score }),
		boolField("dnd", func(l *models.Lead) *bool { return &l.DoNotDisturb }),
		dateField("convertedAt", func(l *models.Lead) **time.Time { return &l.ConvertedAt }, false),
		dateField("createdAt", func(l *models.Lead) **time.Time { return &l.CreatedAt }, false),
		dateField("updatedAt", func(l *models.Lead) **time.Time { return &l.UpdatedAt }, false),
	}

	fields = append(fields, referenceField("ownerId", func(l *models.Lead) **models.IdName { return &l.OwnerID }, true)...)
	fields = append(fields, referenceField("pipeline", func(l *models.Lead) **models.IdName { return &l.Pipeline }, true)...)
	fields = append(fields, referenceField("pipelineStage", func(l *models.Lead) **models.IdName { return &l.PipelineStage }, true)...)
	fields = append(fields, referenceField("source", func(l *models.Lead) **models.IdName { return &l.Source }, true)...)
	fields = append(fields, referenceField("convertedBy", func(l *models.Lead) **models.IdName { return &l.ConvertedBy }, false)...)
	fields = append(fields, referenceField("createdBy", func(l *models.Lead) **models.IdName { return &l.CreatedBy }, false)...)
	fields = append(fields, referenceField("updatedBy", func(l *models.Lead) **models.IdName { return &l.UpdatedBy }, false)...)

	return fields
}

func contactFields() []*Field {
	fields := []*Field{
		idField("id", func(c *models.Contact) *int64 { return &c.ID }),
		idField("tenantId", func(c *models.Contact) *int64 { return &c.TenantID }),
		stringField("salutation", func(c *models.Contact) *string { return &c.Salutation }),
		stringField("firstName", func(c *models.Contact) *string { return &c.FirstName }),
		stringField("lastName", func(c *models.Contact) *string { return &c.LastName }),
		emailsField("emails", func(c *models.Contact) *[]models.Email { return &c.Emails }),
		phoneNumbersField("phoneNumbers", func(c *models.Contact) *[]models.PhoneNumber { return &c.PhoneNumbers }),
		stringField("designation", func(c *models.Contact) *string { return &c.Designation }),
		stringField("department", func(c *models.Contact) *string { return &c.Department }),
		stringField("city", func(c *models.Contact) *string { return &c.City }),
		stringField("state", func(c *models.Contact) *string { return &c.State }),
		stringField("country", func(c *models.Contact) *string { return &c.Country }),
		boolField("stakeholder", func(c *models.Contact) *bool { return &c.Stakeholder }),
		boolField("dnd", func(c *models.Contact) *bool { return &c.DoNotDisturb }),
		dateField("createdAt", func(c *models.Contact) **time.Time { return &c.CreatedAt }, false),
		dateField("updatedAt", func(c *models.Contact) **time.Time { return &c.UpdatedAt }, false),
	}

	fields = append(fields, referenceField("ownerId", func(c *models.Contact) **models.IdName { return &c.OwnerID }, true)...)
	fields = append(fields, referenceField("company", func(c *models.Contact) **models.IdName { return &c.Company }, true)...)
	fields = append(fields, referenceField("source", func(c *models.Contact) **models.IdName { return &c.Source }, true)...)
	fields = append(fields, referenceField("createdBy", func(c *models.Contact) **models.IdName { return &c.CreatedBy }, false)...)
	fields = append(fields, referenceField("updatedBy", func(c *models.Contact) **models.IdName { return &c.UpdatedBy }, false)...)

	return fields
}

func dealFields() []*Field {
	fields := []*Field{
		idField("id", func(d *models.Deal) *int64 { return &d.ID }),
		idField("tenantId", func(d *models.Deal) *int64 { return &d.TenantID }),
		stringField("name", func(d *models.Deal) *string { return &d.Name }),
		dateField("estimatedClosureOn", func(d *models.Deal) **time.Time { return &d.EstimatedClosureOn }, true),
		dateField("actualClosureDate", func(d *models.Deal) **time.Time { return &d.ActualClosureDate }, true),
		referenceListField("products", func(d *models.Deal) *[]models.IdName { return &d.Products }),
		referenceListField("associatedContacts", func(d *models.Deal) *[]models.IdName { return &d.AssociatedContacts }),
		dateField("createdAt", func(d *models.Deal) **time.Time { return &d.CreatedAt }, false),
		dateField("updatedAt", func(d *models.Deal) **time.Time { return &d.UpdatedAt }, false),
	}

	fields = append(fields, moneyField("estimatedValue", func(d *models.Deal) **models.Money { return &d.EstimatedValue })...)
	fields = append(fields, moneyField("actualValue", func(d *models.Deal) **models.Money { return &d.ActualValue })...)
	fields = append(fields, referenceField("ownedBy", func(d *models.Deal) **models.IdName { return &d.OwnedBy }, true)...)
	fields = append(fields, referenceField("pipeline", func(d *models.Deal) **models.IdName { return &d.Pipeline }, true)...)
	fields = append(fields, referenceField("pipelineStage", func(d *models.Deal) **models.IdName { return &d.PipelineStage }, true)...)
	fields = append(fields, referenceField("company", func(d *models.Deal) **models.IdName { return &d.Company }, true)...)
	fields = append(fields, referenceField("source", func(d *models.Deal) **models.IdName { return &d.Source }, true)...)
	fields = append(fields, referenceField("createdBy", func(d *models.Deal) **models.IdName { return &d.CreatedBy }, false)...)
	fields = append(fields, referenceField("updatedBy", func(d *models.Deal) **models.IdName { return &d.UpdatedBy }, false)...)

	return fields
}
