package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDotNotation(t *testing.T) {
	r := Record{
		"id": "v1",
		"meta": map[string]interface{}{
			"source": "import",
		},
	}

	value, ok := r.Get("meta.source")
	require.True(t, ok)
	assert.Equal(t, "import", value)

	_, ok = r.Get("meta.missing")
	assert.False(t, ok)
	_, ok = r.Get("id.nested")
	assert.False(t, ok, "scalars have no nested paths")

	r.Set("meta.zone", "north")
	value, ok = r.Get("meta.zone")
	require.True(t, ok)
	assert.Equal(t, "north", value)

	r.Set("fresh.path", 1)
	value, ok = r.Get("fresh.path")
	require.True(t, ok)
	assert.Equal(t, 1, value)

	r.Delete("meta.source")
	_, ok = r.Get("meta.source")
	assert.False(t, ok)
}

func TestRecordCloneIsDeep(t *testing.T) {
	original := Record{
		"id":   "v1",
		"tags": []interface{}{"a"},
		"meta": map[string]interface{}{"zone": "north"},
	}

	clone := original.Clone()
	clone.Set("meta.zone", "south")
	clone["tags"].([]interface{})[0] = "b"

	assert.Equal(t, "north", original["meta"].(map[string]interface{})["zone"])
	assert.Equal(t, "a", original["tags"].([]interface{})[0])
}

func TestValuesEqualSemantics(t *testing.T) {
	tests := []struct {
		name     string
		a, b     interface{}
		expected bool
	}{
		{name: "numeric magnitude across types", a: 12, b: float64(12), expected: true},
		{name: "numeric mismatch", a: 12, b: float64(13), expected: false},
		{name: "numeric string coerces", a: "12", b: float64(12), expected: true},
		{name: "non-numeric string vs number", a: "abc", b: float64(12), expected: false},
		{name: "both nil", a: nil, b: nil, expected: true},
		{name: "nil vs value", a: nil, b: "", expected: false},
		{name: "arrays element-wise", a: []interface{}{1, "x"}, b: []interface{}{float64(1), "x"}, expected: true},
		{name: "arrays length mismatch", a: []interface{}{1}, b: []interface{}{1, 2}, expected: false},
		{name: "objects shallow", a: map[string]interface{}{"k": 1}, b: map[string]interface{}{"k": float64(1)}, expected: true},
		{name: "bools", a: true, b: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValuesEqual(tt.a, tt.b))
		})
	}
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.False(t, IsEmpty(float64(0)), "zero is a value, not an absence")
	assert.False(t, IsEmpty(false))
	assert.False(t, IsEmpty([]interface{}{}))
}

func TestAsNumber(t *testing.T) {
	n, ok := AsNumber("12.5")
	assert.True(t, ok)
	assert.Equal(t, 12.5, n)

	_, ok = AsNumber(true)
	assert.False(t, ok, "booleans are not numbers for mutation purposes")

	_, ok = AsNumber(nil)
	assert.False(t, ok)
}
