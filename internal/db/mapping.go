package db

import (
	"errors"
	"strings"
)

// FieldType enumerates index field types.
type FieldType string

// Supported field types.
const (
	FieldDate    FieldType = "date"
	FieldKeyword FieldType = "keyword"
	FieldText    FieldType = "text"
	FieldLong    FieldType = "long"
	FieldDouble  FieldType = "double"
	FieldBoolean FieldType = "boolean"
)

// Date formats understood by the index backends.
const (
	FormatEpochSecond            = "epoch_second"
	FormatStrictDateOptionalTime = "strict_date_optional_time"
)

// FieldSchema describes the type of a single index field.
type FieldSchema struct {
	Name   string
	Type   FieldType
	Format string // date fields only
}

// Mapping is the explicit part of an index schema. Fields not listed
// here follow the backend's dynamic type inference.
type Mapping struct {
	Fields []FieldSchema
}

// RunMapping returns the schema installed on reset: "time" as epoch
// seconds and "date" as an ISO date.
func RunMapping() *Mapping {
	return NewMapping().
		Date("time", FormatEpochSecond).
		Date("date", FormatStrictDateOptionalTime).
		MustBuild()
}

// Validate checks that the mapping is well-formed.
func (m *Mapping) Validate() error {
	if len(m.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if f.Name == "" {
			return errors.New("field name is required")
		}
		if seen[f.Name] {
			return errors.New("duplicate field name: " + f.Name)
		}
		seen[f.Name] = true
		if f.Format != "" && f.Type != FieldDate {
			return errors.New("format is only valid on date fields: " + f.Name)
		}
	}
	return nil
}

// Properties renders the mapping as an Elasticsearch "properties" object.
func (m *Mapping) Properties() map[string]any {
	props := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		p := map[string]any{"type": string(f.Type)}
		if f.Format != "" {
			p["format"] = f.Format
		}
		props[f.Name] = p
	}
	return props
}

// Field looks up a field by name.
func (m *Mapping) Field(name string) (FieldSchema, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// MappingBuilder is a fluent builder for index mappings.
type MappingBuilder struct {
	m Mapping
}

// NewMapping starts building a mapping.
func NewMapping() *MappingBuilder { return &MappingBuilder{} }

// Date adds a date field with the given format.
func (b *MappingBuilder) Date(name, format string) *MappingBuilder {
	return b.add(FieldSchema{Name: name, Type: FieldDate, Format: format})
}

// Keyword adds an exact-match string field.
func (b *MappingBuilder) Keyword(name string) *MappingBuilder {
	return b.add(FieldSchema{Name: name, Type: FieldKeyword})
}

// Text adds a full-text field.
func (b *MappingBuilder) Text(name string) *MappingBuilder {
	return b.add(FieldSchema{Name: name, Type: FieldText})
}

// Long adds an integer field.
func (b *MappingBuilder) Long(name string) *MappingBuilder {
	return b.add(FieldSchema{Name: name, Type: FieldLong})
}

// Double adds a floating point field.
func (b *MappingBuilder) Double(name string) *MappingBuilder {
	return b.add(FieldSchema{Name: name, Type: FieldDouble})
}

// Boolean adds a boolean field.
func (b *MappingBuilder) Boolean(name string) *MappingBuilder {
	return b.add(FieldSchema{Name: name, Type: FieldBoolean})
}

func (b *MappingBuilder) add(f FieldSchema) *MappingBuilder {
	b.m.Fields = append(b.m.Fields, f)
	return b
}

// Build validates and returns the mapping.
func (b *MappingBuilder) Build() (*Mapping, error) {
	m := &Mapping{Fields: append([]FieldSchema(nil), b.m.Fields...)}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// MustBuild is like Build but panics on error.
func (b *MappingBuilder) MustBuild() *Mapping {
	m, err := b.Build()
	if err != nil {
		panic("db: invalid mapping: " + err.Error())
	}
	return m
}

// IsValidIndexName reports whether s is usable as an index name on every
// backend: lowercase letters, digits, '_', '-' and '.', not starting with
// '-', '_' or '.', at most 255 bytes.
func IsValidIndexName(s string) bool {
	if s == "" || len(s) > 255 || strings.ContainsAny(s[:1], "-_.") {
		return false
	}
	for _, r := range s {
		isLower := r >= 'a' && r <= 'z'
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == '-' || r == '.'
		if !isLower && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
