package models

import (
	"time"

	"github.com/spf13/cast"
)

// FieldType is the closed set of value variants a record field may hold.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeNumber    FieldType = "number"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeArray     FieldType = "array"
	FieldTypeObject    FieldType = "object"
	FieldTypeUnknown   FieldType = "unknown"
)

// DetectType classifies a raw value into one of the closed variants.
func DetectType(value interface{}) FieldType {
	switch value.(type) {
	case nil:
		return FieldTypeUnknown
	case string:
		return FieldTypeString
	case bool:
		return FieldTypeBoolean
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return FieldTypeNumber
	case time.Time, *time.Time:
		return FieldTypeTimestamp
	case []interface{}:
		return FieldTypeArray
	case map[string]interface{}:
		return FieldTypeObject
	default:
		return FieldTypeUnknown
	}
}

// AsNumber coerces a value to float64. Returns false when the value has no
// numeric interpretation; it never panics.
func AsNumber(value interface{}) (float64, bool) {
	if value == nil {
		return 0, false
	}
	// Booleans are not numbers for mutation purposes, even though cast
	// would happily convert them.
	if _, ok := value.(bool); ok {
		return 0, false
	}
	n, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// AsString stringifies a value for display and substring comparisons.
func AsString(value interface{}) string {
	if value == nil {
		return ""
	}
	if t, ok := value.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return ""
	}
	return s
}

// IsEmpty reports whether a field value counts as empty for update-policy
// gating: nil or the empty string. Zero numbers and false are not empty.
func IsEmpty(value interface{}) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

// ValuesEqual performs the shallow comparison used for change detection.
// Numeric values compare by magnitude regardless of concrete type; arrays
// and objects compare element-wise one level deep.
func ValuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := AsNumber(a); ok {
		if bn, bok := AsNumber(b); bok {
			return an == bn
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !scalarEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !scalarEqual(v, other) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func scalarEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := AsNumber(a); ok {
		bn, bok := AsNumber(b)
		return bok && an == bn
	}
	return AsString(a) == AsString(b)
}
