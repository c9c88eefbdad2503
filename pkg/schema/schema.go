// Package schema describes stream records as JSON Schema and infers that
// description from sampled warehouse rows.
package schema

import (
	"fmt"
	"sort"

	jsonpool "github.com/ajitpratap0/nebula-tap-bigquery/pkg/json"
)

// JSON Schema type names used by the tap.
const (
	TypeNull    = "null"
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"

	FormatDateTime = "date-time"

	InclusionAutomatic = "automatic"
)

// Synthetic metadata columns. They are added to discovered schemas and
// filled in during sync, never read from the warehouse.
const (
	// ExtractedAt holds the instant the sync pass started
	ExtractedAt = "_sdc_extracted_at"
	// BatchedAt is reserved for the loader and always left empty
	BatchedAt = "_sdc_batched_at"
	// LegacyTimestamp holds epoch milliseconds at normalization time
	LegacyTimestamp = "_etl_tstamp"
)

// IsSynthetic reports whether name is one of the metadata columns.
func IsSynthetic(name string) bool {
	switch name {
	case ExtractedAt, BatchedAt, LegacyTimestamp:
		return true
	}
	return false
}

// Property is the schema of one column.
type Property struct {
	Type      []string `json:"type"`
	Format    string   `json:"format,omitempty"`
	Inclusion string   `json:"inclusion,omitempty"`
}

// UnmarshalJSON accepts "type" as either a single name or a list, as
// hand-written catalogs often use the short form.
func (p *Property) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      any    `json:"type"`
		Format    string `json:"format"`
		Inclusion string `json:"inclusion"`
	}
	if err := jsonpool.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch t := raw.Type.(type) {
	case string:
		p.Type = []string{t}
	case []any:
		p.Type = make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("invalid type entry %v", e)
			}
			p.Type = append(p.Type, s)
		}
	case nil:
		p.Type = nil
	default:
		return fmt.Errorf("invalid type %v", t)
	}
	p.Format = raw.Format
	p.Inclusion = raw.Inclusion
	return nil
}

// Nullable string/integer/number/date-time constructors.
func StringProperty() *Property  { return &Property{Type: []string{TypeNull, TypeString}} }
func IntegerProperty() *Property { return &Property{Type: []string{TypeNull, TypeInteger}} }
func NumberProperty() *Property  { return &Property{Type: []string{TypeNull, TypeNumber}} }
func DateTimeProperty() *Property {
	return &Property{Type: []string{TypeNull, TypeString}, Format: FormatDateTime}
}

// Primary returns the non-null type of the property.
func (p *Property) Primary() string {
	for _, t := range p.Type {
		if t != TypeNull {
			return t
		}
	}
	return TypeNull
}

// IsDateTime reports whether the property carries the date-time format.
func (p *Property) IsDateTime() bool {
	return p.Format == FormatDateTime
}

// Schema is an object schema keyed by column name. Properties encode in
// sorted key order, so equal schemas serialize identically.
type Schema struct {
	Type       string               `json:"type"`
	Properties map[string]*Property `json:"properties"`
}

// New returns an empty object schema.
func New() *Schema {
	return &Schema{Type: "object", Properties: make(map[string]*Property)}
}

// Columns returns the property names in sorted order.
func (s *Schema) Columns() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Property returns the named property.
func (s *Schema) Property(name string) (*Property, bool) {
	p, ok := s.Properties[name]
	return p, ok
}

// Has reports whether the schema declares name.
func (s *Schema) Has(name string) bool {
	_, ok := s.Properties[name]
	return ok
}

// AddMetadataColumns declares the synthetic columns. The legacy
// _etl_tstamp column is only added when legacy is true.
func (s *Schema) AddMetadataColumns(legacy bool) *Schema {
	s.Properties[ExtractedAt] = DateTimeProperty()
	s.Properties[BatchedAt] = DateTimeProperty()
	if legacy {
		s.Properties[LegacyTimestamp] = &Property{
			Type:      []string{TypeNull, TypeNumber},
			Inclusion: InclusionAutomatic,
		}
	}
	return s
}
