package importer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkops/pkg/errors"
	"bulkops/pkg/models"
)

func TestParseCSV(t *testing.T) {
	input := "name,capacity,active\ntruck-1,10,true\n\ntruck-2,12,false\n"

	table, err := Parse("fleet.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "capacity", "active"}, table.Columns)
	require.Len(t, table.Rows, 2, "blank lines are dropped")
	assert.Equal(t, []string{"truck-1", "10", "true"}, table.Rows[0])
}

func TestParseCSVStripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFname,capacity\ntruck-1,10\n"

	table, err := Parse("fleet.csv", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "name", table.Columns[0])
}

func TestParseCSVPadsShortRows(t *testing.T) {
	input := "name,capacity,notes\ntruck-1,10\n"

	table, err := Parse("fleet.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, table.Rows[0], 3)
	assert.Equal(t, "", table.Rows[0][2])
}

func TestParseRejectsUnknownExtension(t *testing.T) {
	_, err := Parse("fleet.parquet", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestParseRejectsEmptyInput(t *testing.T) {
	_, err := Parse("fleet.csv", strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestCoerceCell(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		fieldType models.FieldType
		expected  interface{}
		wantErr   bool
	}{
		{name: "empty cell is nil", raw: "  ", fieldType: models.FieldTypeNumber, expected: nil},
		{name: "string passthrough", raw: "truck-1", fieldType: models.FieldTypeString, expected: "truck-1"},
		{name: "number", raw: "12.5", fieldType: models.FieldTypeNumber, expected: float64(12.5)},
		{name: "bad number", raw: "dozen", fieldType: models.FieldTypeNumber, wantErr: true},
		{name: "boolean", raw: "TRUE", fieldType: models.FieldTypeBoolean, expected: true},
		{name: "bad boolean", raw: "yep", fieldType: models.FieldTypeBoolean, wantErr: true},
		{name: "semicolon array", raw: "a; b;c", fieldType: models.FieldTypeArray, expected: []interface{}{"a", "b", "c"}},
		{name: "json array", raw: `["a","b"]`, fieldType: models.FieldTypeArray, expected: []interface{}{"a", "b"}},
		{name: "json object", raw: `{"k":"v"}`, fieldType: models.FieldTypeObject, expected: map[string]interface{}{"k": "v"}},
		{name: "bad object", raw: "not-json", fieldType: models.FieldTypeObject, wantErr: true},
		{name: "bad timestamp", raw: "someday", fieldType: models.FieldTypeTimestamp, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceCell(tt.raw, tt.fieldType)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCoerceCellTimestampLayouts(t *testing.T) {
	for _, raw := range []string{"2026-08-23T10:00:00Z", "2026-08-23 10:00:00", "2026-08-23", "08/23/2026"} {
		got, err := coerceCell(raw, models.FieldTypeTimestamp)
		require.NoError(t, err, raw)
		ts, ok := got.(time.Time)
		require.True(t, ok)
		assert.Equal(t, 2026, ts.Year())
	}
}
