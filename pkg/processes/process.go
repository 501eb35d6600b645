// Package processes defines the process descriptors exchanged with the
// aggregator, the specification document and backend endpoints.
//
// The same identifier may appear in any subset of the three sources with
// differing flags; nothing here reconciles them.
package processes

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Well-known schema subtypes and category names.
const (
	SubtypeMetadataFilters = "metadata-filters"
	SubtypeBoundingBox     = "bounding-box"
	CategoryCubes          = "cubes"
)

// Process describes a single process as advertised by one source.
type Process struct {
	ID           string      `json:"id"`
	Experimental bool        `json:"experimental,omitempty"`
	Deprecated   bool        `json:"deprecated,omitempty"`
	Categories   []string    `json:"categories,omitempty"`
	Parameters   []Parameter `json:"parameters,omitempty"`
}

// Parameter returns the first parameter with the given name.
func (p *Process) Parameter(name string) (*Parameter, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.Parameters {
		if p.Parameters[i].Name == name {
			return &p.Parameters[i], true
		}
	}
	return nil, false
}

// HasCategory reports whether the process is listed under category.
func (p *Process) HasCategory(category string) bool {
	return p != nil && slices.Contains(p.Categories, category)
}

// Parameter describes one process parameter.
type Parameter struct {
	Name       string  `json:"name"`
	Deprecated bool    `json:"deprecated,omitempty"`
	Schema     Schemas `json:"schema,omitempty"`
}

// Schema is the subset of a JSON Schema the report rules inspect.
type Schema struct {
	Enum    json.RawMessage `json:"enum,omitempty"`
	Subtype string          `json:"subtype,omitempty"`
}

// HasEnum reports whether the schema declares an enum array.
func (s Schema) HasEnum() bool {
	trimmed := bytes.TrimSpace(s.Enum)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// UnmarshalJSON tolerates boolean schemas and other non-object values,
// which decode to an empty Schema.
func (s *Schema) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		*s = Schema{}
		return nil
	}
	type plain Schema
	var v plain
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*s = Schema(v)
	return nil
}

// Schemas holds a parameter schema, which the wire format allows to be a
// single schema object or an array of alternatives.
type Schemas []Schema

// UnmarshalJSON accepts both a single schema and an array of schemas.
func (s *Schemas) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		*s = nil
		return nil
	case trimmed[0] == '[':
		var list []Schema
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		var single Schema
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*s = Schemas{single}
		return nil
	}
}

// Any reports whether at least one alternative satisfies match.
func (s Schemas) Any(match func(Schema) bool) bool {
	return slices.ContainsFunc(s, match)
}

// HasEnum reports whether any alternative declares an enum.
func (s Schemas) HasEnum() bool {
	return s.Any(Schema.HasEnum)
}

// HasSubtype reports whether any alternative carries the given subtype.
func (s Schemas) HasSubtype(subtype string) bool {
	return s.Any(func(schema Schema) bool { return schema.Subtype == subtype })
}

// List is an ordered process listing from one source.
type List []Process

// Find returns the first process with the given identifier.
func (l List) Find(id string) (*Process, bool) {
	for i := range l {
		if l[i].ID == id {
			return &l[i], true
		}
	}
	return nil, false
}

// Contains reports whether a process with the given identifier is listed.
func (l List) Contains(id string) bool {
	_, ok := l.Find(id)
	return ok
}

// IDs returns the identifiers in listing order.
func (l List) IDs() []string {
	ids := make([]string, len(l))
	for i := range l {
		ids[i] = l[i].ID
	}
	return ids
}

// Envelope is the `{"processes": [...]}` document served by the aggregator
// and by backends.
type Envelope struct {
	Processes List `json:"processes"`
}
