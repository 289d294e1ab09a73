package importer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"bulkops/pkg/models"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// coerceCell converts one raw cell into the declared field type. An empty
// cell coerces to nil for every type; a cell that cannot be converted is a
// per-row validation error.
func coerceCell(raw string, fieldType models.FieldType) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	switch fieldType {
	case models.FieldTypeString, models.FieldTypeUnknown, "":
		return raw, nil

	case models.FieldTypeNumber:
		n, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return n, nil

	case models.FieldTypeBoolean:
		b, err := cast.ToBoolE(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return b, nil

	case models.FieldTypeTimestamp:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("%q is not a recognized timestamp", raw)

	case models.FieldTypeArray:
		var out []interface{}
		if strings.HasPrefix(raw, "[") {
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return nil, fmt.Errorf("%q is not a valid array", raw)
			}
			return out, nil
		}
		for _, part := range strings.Split(raw, ";") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, nil

	case models.FieldTypeObject:
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("%q is not a valid object", raw)
		}
		return out, nil

	default:
		return raw, nil
	}
}

// cellCompatible reports whether a sample cell would coerce cleanly.
func cellCompatible(raw string, fieldType models.FieldType) bool {
	_, err := coerceCell(raw, fieldType)
	return err == nil
}
