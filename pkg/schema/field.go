// Package schema maps dotted field paths of CRM records to typed accessors, so conditions and
// actions can read and write record fields without reflection.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/flowcrm/pkg/models"
)

// Kind is the value category of a field; it drives which comparisons apply.
type Kind string

const (
	KindString        Kind = "STRING"
	KindNumber        Kind = "NUMBER"
	KindBoolean       Kind = "BOOLEAN"
	KindDate          Kind = "DATE"
	KindReference     Kind = "REFERENCE"
	KindReferenceList Kind = "REFERENCE_LIST"
	KindMoney         Kind = "MONEY"
	KindMultiValue    Kind = "MULTI_VALUE"
	KindCustom        Kind = "CUSTOM"
)

var (
	ErrUnknownField      = errors.New("unknown field")
	ErrReadOnlyField     = errors.New("field is read-only")
	ErrIncompatibleValue = errors.New("incompatible value")
)

// FieldError wraps a failure to read or write a particular field.
type FieldError struct {
	Path  string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("field %q: %v (value %v)", e.Path, e.Err, e.Value)
	}

	return fmt.Sprintf("field %q: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Field reads, and optionally writes, one path of one entity type.
//
// Get returns nil whenever the record holds no value: unset pointers, blank strings and empty
// collections all read as nil. Otherwise it returns a normalized value: references as
// models.IdName, reference lists as []models.IdName, money as models.Money, numbers as float64
// or int64, dates as time.Time, emails and phone numbers as []string.
type Field struct {
	Path string
	Kind Kind

	get func(models.Record) any
	raw func(models.Record) any
	set func(models.Record, any) error
}

func (f *Field) Get(record models.Record) any {
	return f.get(record)
}

// Raw returns the stored value as the record's own type holds it, suitable for a patch.
func (f *Field) Raw(record models.Record) any {
	return f.raw(record)
}

func (f *Field) Settable() bool {
	return f.set != nil
}

func (f *Field) Set(record models.Record, value any) error {
	if f.set == nil {
		return &FieldError{Path: f.Path, Err: ErrReadOnlyField}
	}

	return f.set(record, value)
}

// accessor binds a struct field of record type R, reached through ptr, to a path.
// A nil write makes the field read-only.
func accessor[R models.Record, T any](path string, kind Kind, ptr func(R) *T, read func(T) any, write func(any) (T, error)) *Field {
	f := &Field{Path: path, Kind: kind}

	f.get = func(record models.Record) any {
		r, ok := record.(R)
		if !ok {
			return nil
		}

		return read(*ptr(r))
	}

	f.raw = func(record models.Record) any {
		r, ok := record.(R)
		if !ok {
			return nil
		}

		return *ptr(r)
	}

	if write == nil {
		return f
	}

	f.set = func(record models.Record, value any) error {
		r, ok := record.(R)
		if !ok {
			return &FieldError{Path: path, Err: fmt.Errorf("%w: record is %T", ErrUnknownField, record)}
		}

		v, err := write(value)
		if err != nil {
			return &FieldError{Path: path, Value: value, Err: err}
		}

		*ptr(r) = v

		return nil
	}

	return f
}

func stringField[R models.Record](path string, ptr func(R) *string) *Field {
	return accessor(path, KindString, ptr, readString, writeString)
}

func numberField[R models.Record](path string, ptr func(R) **float64) *Field {
	return accessor(path, KindNumber, ptr, readFloatPtr, writeFloatPtr)
}

func idField[R models.Record](path string, ptr func(R) *int64) *Field {
	return accessor(path, KindNumber, ptr, readID, nil)
}

func boolField[R models.Record](path string, ptr func(R) *bool) *Field {
	return accessor(path, KindBoolean, ptr, func(b bool) any { return b }, writeBool)
}

func dateField[R models.Record](path string, ptr func(R) **time.Time, settable bool) *Field {
	var write func(any) (*time.Time, error)
	if settable {
		write = writeTime
	}

	return accessor(path, KindDate, ptr, readTime, write)
}

// referenceField registers the reference and its ".id" and ".name" sub-paths.
func referenceField[R models.Record](path string, ptr func(R) **models.IdName, settable bool) []*Field {
	var write func(any) (*models.IdName, error)
	if settable {
		write = writeReference
	}

	return []*Field{
		accessor(path, KindReference, ptr, readReference, write),
		accessor(path+".id", KindNumber, ptr, func(ref *models.IdName) any {
			if ref == nil {
				return nil
			}

			return ref.ID
		}, nil),
		accessor(path+".name", KindString, ptr, func(ref *models.IdName) any {
			if ref == nil {
				return nil
			}

			return readString(ref.Name)
		}, nil),
	}
}

func referenceListField[R models.Record](path string, ptr func(R) *[]models.IdName) *Field {
	return accessor(path, KindReferenceList, ptr, func(refs []models.IdName) any {
		if len(refs) == 0 {
			return nil
		}

		return refs
	}, writeReferenceList)
}

// moneyField registers the amount and its ".value" and ".currencyId" sub-paths.
func moneyField[R models.Record](path string, ptr func(R) **models.Money) []*Field {
	return []*Field{
		accessor(path, KindMoney, ptr, func(m *models.Money) any {
			if m == nil {
				return nil
			}

			return *m
		}, writeMoney),
		accessor(path+".value", KindNumber, ptr, func(m *models.Money) any {
			if m == nil {
				return nil
			}

			return m.Value
		}, nil),
		accessor(path+".currencyId", KindNumber, ptr, func(m *models.Money) any {
			if m == nil {
				return nil
			}

			return m.CurrencyID
		}, nil),
	}
}

func emailsField[R models.Record](path string, ptr func(R) *[]models.Email) *Field {
	return accessor(path, KindMultiValue, ptr, func(emails []models.Email) any {
		values := make([]string, 0, len(emails))
		for _, e := range emails {
			if e.Value != "" {
				values = append(values, e.Value)
			}
		}

		if len(values) == 0 {
			return nil
		}

		return values
	}, writeEmails)
}

func phoneNumbersField[R models.Record](path string, ptr func(R) *[]models.PhoneNumber) *Field {
	return accessor(path, KindMultiValue, ptr, func(numbers []models.PhoneNumber) any {
		values := make([]string, 0, len(numbers))
		for _, p := range numbers {
			if p.Value != "" {
				values = append(values, p.String())
			}
		}

		if len(values) == 0 {
			return nil
		}

		return values
	}, writePhoneNumbers)
}

func customField(name string) *Field {
	return &Field{
		Path: CustomFieldPrefix + name,
		Kind: KindCustom,
		get: func(record models.Record) any {
			return normalize(record.GetCustomFieldValues()[name])
		},
		raw: func(record models.Record) any {
			return record.GetCustomFieldValues()[name]
		},
		set: func(record models.Record, value any) error {
			record.SetCustomFieldValue(name, value)

			return nil
		},
	}
}

func readString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	return s
}

func readID(id int64) any {
	if id == 0 {
		return nil
	}

	return id
}

func readFloatPtr(f *float64) any {
	if f == nil {
		return nil
	}

	return *f
}

func readTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return *t
}

func readReference(ref *models.IdName) any {
	if ref == nil {
		return nil
	}

	return *ref
}

func writeString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64, float32, int, int64, int32, bool, json.Number:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("%w: expected text, got %T", ErrIncompatibleValue, value)
	}
}

func writeFloatPtr(value any) (*float64, error) {
	if value == nil {
		return nil, nil
	}

	f, ok := ToFloat(value)
	if !ok {
		return nil, fmt.Errorf("%w: expected a number, got %T", ErrIncompatibleValue, value)
	}

	return &f, nil
}

func writeBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%w: expected true or false, got %q", ErrIncompatibleValue, v)
		}

		return b, nil
	default:
		return false, fmt.Errorf("%w: expected a boolean, got %T", ErrIncompatibleValue, value)
	}
}

func writeTime(value any) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}

	t, ok := ToTime(value)
	if !ok {
		return nil, fmt.Errorf("%w: expected a date, got %v", ErrIncompatibleValue, value)
	}

	return &t, nil
}

func writeReference(value any) (*models.IdName, error) {
	if value == nil {
		return nil, nil
	}

	if id, ok := ToInt64(value); ok {
		return &models.IdName{ID: id}, nil
	}

	ref, err := decodeInto[models.IdName](value)
	if err != nil || ref.ID == 0 {
		return nil, fmt.Errorf("%w: expected a reference with an id, got %v", ErrIncompatibleValue, value)
	}

	return &ref, nil
}

func writeReferenceList(value any) ([]models.IdName, error) {
	if value == nil {
		return nil, nil
	}

	items, ok := value.([]any)
	if !ok {
		refs, err := decodeInto[[]models.IdName](value)
		if err != nil {
			return nil, fmt.Errorf("%w: expected a list of references, got %T", ErrIncompatibleValue, value)
		}

		return refs, nil
	}

	refs := make([]models.IdName, 0, len(items))
	for _, item := range items {
		ref, err := writeReference(item)
		if err != nil {
			return nil, err
		}

		if ref != nil {
			refs = append(refs, *ref)
		}
	}

	return refs, nil
}

func writeMoney(value any) (*models.Money, error) {
	if value == nil {
		return nil, nil
	}

	if f, ok := ToFloat(value); ok {
		return &models.Money{Value: f}, nil
	}

	m, err := decodeInto[models.Money](value)
	if err != nil {
		return nil, fmt.Errorf("%w: expected an amount, got %v", ErrIncompatibleValue, value)
	}

	return &m, nil
}

func writeEmails(value any) ([]models.Email, error) {
	var emails []models.Email

	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		emails = []models.Email{{Value: v}}
	case []string:
		for _, s := range v {
			emails = append(emails, models.Email{Value: s})
		}
	default:
		decoded, err := decodeInto[[]models.Email](value)
		if err != nil {
			return nil, fmt.Errorf("%w: expected a list of emails, got %T", ErrIncompatibleValue, value)
		}

		emails = decoded
	}

	for _, e := range emails {
		if e.Primary {
			return emails, nil
		}
	}

	if len(emails) > 0 {
		emails[0].Primary = true
	}

	return emails, nil
}

func writePhoneNumbers(value any) ([]models.PhoneNumber, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []models.PhoneNumber{{Value: v, Primary: true}}, nil
	default:
		numbers, err := decodeInto[[]models.PhoneNumber](value)
		if err != nil {
			return nil, fmt.Errorf("%w: expected a list of phone numbers, got %T", ErrIncompatibleValue, value)
		}

		return numbers, nil
	}
}

// decodeInto converts a loosely typed value into T through its JSON form. The result never
// shares memory with the input.
func decodeInto[T any](value any) (T, error) {
	var out T

	data, err := json.Marshal(value)
	if err != nil {
		return out, err
	}

	err = json.Unmarshal(data, &out)

	return out, err
}

func normalize(value any) any {
	switch v := value.(type) {
	case string:
		return readString(v)
	case []any:
		if len(v) == 0 {
			return nil
		}
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
	}

	return value
}
