package models

import (
	"sort"
	"strings"
)

// FieldSchema declares a single field of a table type.
type FieldSchema struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Internal bool      `json:"internal,omitempty"` // bookkeeping field, stripped from exports by default

	// Optional numeric bounds, checked per record before mutation. These are
	// generic shape constraints; richer business rules stay caller-supplied.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Schema maps field names (including dotted nested paths) to their
// declarations. It is supplied by the caller alongside the record set.
type Schema map[string]FieldSchema

// Lookup resolves a field declaration. Dotted paths match either an exact
// declaration or a declared object root.
func (s Schema) Lookup(field string) (FieldSchema, bool) {
	if fs, ok := s[field]; ok {
		return fs, true
	}
	if idx := strings.Index(field, "."); idx > 0 {
		root, ok := s[field[:idx]]
		if ok && root.Type == FieldTypeObject {
			// Nested path under a declared object: permitted, untyped.
			return FieldSchema{Name: field, Type: FieldTypeUnknown}, true
		}
	}
	return FieldSchema{}, false
}

// FieldNames returns the declared field names in stable order for callers
// that need deterministic column layouts.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
