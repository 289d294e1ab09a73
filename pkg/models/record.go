package models

import "strings"

// Well-known bookkeeping fields. Callers assign record identity externally;
// the engine only reads it.
const (
	FieldID        = "id"
	FieldUpdatedAt = "updated_at"
)

// Record is an opaque mapping from field name to value. Values are restricted
// to the closed variant set described by FieldType. Records handed to the
// engine are treated as immutable; every mutation path works on a clone.
type Record map[string]interface{}

// ID returns the externally assigned record identity, or "" when absent.
func (r Record) ID() string {
	return AsString(r[FieldID])
}

// Get resolves a field value, supporting dot-notation paths into nested
// objects. The second return value reports whether the full path exists.
func (r Record) Get(field string) (interface{}, bool) {
	if value, ok := r[field]; ok {
		return value, true
	}
	if !strings.Contains(field, ".") {
		return nil, false
	}
	parts := strings.Split(field, ".")
	var current interface{} = map[string]interface{}(r)
	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Set assigns a field value, creating intermediate objects for dot-notation
// paths. The receiver is modified; call Clone first when the record is shared.
func (r Record) Set(field string, value interface{}) {
	if !strings.Contains(field, ".") {
		r[field] = value
		return
	}
	parts := strings.Split(field, ".")
	current := map[string]interface{}(r)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// Delete removes a field, supporting dot-notation paths.
func (r Record) Delete(field string) {
	if !strings.Contains(field, ".") {
		delete(r, field)
		return
	}
	parts := strings.Split(field, ".")
	current := map[string]interface{}(r)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}

// Clone returns a deep copy of the record. Nested objects and arrays are
// copied; scalar values are shared (they are immutable by construction).
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, nested := range v {
			out[k] = cloneValue(nested)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, nested := range v {
			out[i] = cloneValue(nested)
		}
		return out
	default:
		return v
	}
}

// CloneRecords deep-copies a record slice. Used when shipping a job to a
// worker so host and worker never share mutable state.
func CloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
