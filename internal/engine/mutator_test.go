package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkops/pkg/formula"
	"bulkops/pkg/models"
)

func newTestMutator(t *testing.T, schema models.Schema) *Mutator {
	t.Helper()
	formulas, err := formula.NewEvaluator()
	require.NoError(t, err)
	return NewMutator(schema, formulas)
}

func TestMutatorSetIsIdempotent(t *testing.T) {
	m := newTestMutator(t, models.Schema{"status": {Name: "status", Type: models.FieldTypeString}})
	record := models.Record{"id": "v1", "status": "idle"}
	op := []models.FieldOperation{{Field: "status", Kind: models.OperationSet, Value: "active"}}
	opts := models.DefaultOptions()

	first, changed, warnings := m.ApplyAll(context.Background(), record, op, opts)
	require.True(t, changed)
	assert.Empty(t, warnings)
	assert.Equal(t, "active", first["status"])

	second, changed, _ := m.ApplyAll(context.Background(), first, op, opts)
	assert.False(t, changed, "re-applying the same set must report no change")
	assert.Equal(t, "active", second["status"])
}

func TestMutatorIncrementInverse(t *testing.T) {
	m := newTestMutator(t, models.Schema{"capacity": {Name: "capacity", Type: models.FieldTypeNumber}})
	record := models.Record{"id": "v1", "capacity": float64(10)}
	opts := models.DefaultOptions()

	up, changed, _ := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "capacity", Kind: models.OperationIncrement, Value: 7},
	}, opts)
	require.True(t, changed)

	down, changed, _ := m.ApplyAll(context.Background(), up, []models.FieldOperation{
		{Field: "capacity", Kind: models.OperationIncrement, Value: -7},
	}, opts)
	require.True(t, changed)

	got, ok := models.AsNumber(down["capacity"])
	require.True(t, ok)
	assert.Equal(t, float64(10), got)
}

func TestMutatorNumericOpsWarnOnNonNumeric(t *testing.T) {
	m := newTestMutator(t, models.Schema{"status": {Name: "status", Type: models.FieldTypeString}})
	record := models.Record{"id": "v1", "status": "idle"}

	out, changed, warnings := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "status", Kind: models.OperationMultiply, Value: 2},
	}, models.DefaultOptions())

	assert.False(t, changed)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.SeverityWarning, warnings[0].Severity)
	assert.Equal(t, "idle", out["status"], "non-numeric target must be left untouched")
}

func TestMutatorUpdateExistingFalseNeverTouchesPopulatedFields(t *testing.T) {
	m := newTestMutator(t, models.Schema{"status": {Name: "status", Type: models.FieldTypeString}})
	opts := models.DefaultOptions()
	opts.UpdateExisting = false

	populated := models.Record{"id": "v1", "status": "idle"}
	out, changed, _ := m.ApplyAll(context.Background(), populated, []models.FieldOperation{
		{Field: "status", Kind: models.OperationSet, Value: "active"},
	}, opts)
	assert.False(t, changed)
	assert.Equal(t, "idle", out["status"])

	empty := models.Record{"id": "v2"}
	out, changed, _ = m.ApplyAll(context.Background(), empty, []models.FieldOperation{
		{Field: "status", Kind: models.OperationSet, Value: "active"},
	}, opts)
	assert.True(t, changed, "empty field is still fair game")
	assert.Equal(t, "active", out["status"])
}

func TestMutatorPreserveEmptySkipsEmptyFields(t *testing.T) {
	m := newTestMutator(t, models.Schema{"status": {Name: "status", Type: models.FieldTypeString}})
	opts := models.DefaultOptions()
	opts.PreserveEmpty = true

	record := models.Record{"id": "v1", "status": ""}
	out, changed, _ := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "status", Kind: models.OperationSet, Value: "active"},
	}, opts)
	assert.False(t, changed)
	assert.Equal(t, "", out["status"])
}

func TestMutatorConditionGatesOperation(t *testing.T) {
	m := newTestMutator(t, models.Schema{
		"status":   {Name: "status", Type: models.FieldTypeString},
		"capacity": {Name: "capacity", Type: models.FieldTypeNumber},
	})
	record := models.Record{"id": "v1", "status": "idle", "capacity": float64(3)}

	out, changed, _ := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{
			Field: "status", Kind: models.OperationSet, Value: "overloaded",
			Condition: &models.Condition{Field: "capacity", Operator: models.ConditionGreaterThan, Value: 10},
		},
	}, models.DefaultOptions())

	assert.False(t, changed)
	assert.Equal(t, "idle", out["status"])
}

func TestMutatorAppendAndPrepend(t *testing.T) {
	m := newTestMutator(t, models.Schema{
		"notes": {Name: "notes", Type: models.FieldTypeString},
		"tags":  {Name: "tags", Type: models.FieldTypeArray},
	})
	record := models.Record{
		"id":    "v1",
		"notes": "base",
		"tags":  []interface{}{"a"},
	}

	out, changed, warnings := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "notes", Kind: models.OperationAppend, Value: "-x"},
		{Field: "tags", Kind: models.OperationPrepend, Value: "z"},
	}, models.DefaultOptions())

	require.True(t, changed)
	assert.Empty(t, warnings)
	assert.Equal(t, "base-x", out["notes"])
	assert.Equal(t, []interface{}{"z", "a"}, out["tags"])
}

func TestMutatorAppendInitializesByDeclaredType(t *testing.T) {
	m := newTestMutator(t, models.Schema{
		"notes": {Name: "notes", Type: models.FieldTypeString},
		"tags":  {Name: "tags", Type: models.FieldTypeArray},
	})

	out, changed, warnings := m.ApplyAll(context.Background(), models.Record{"id": "v1"}, []models.FieldOperation{
		{Field: "notes", Kind: models.OperationAppend, Value: "first"},
		{Field: "tags", Kind: models.OperationPrepend, Value: "priority"},
	}, models.DefaultOptions())

	require.True(t, changed)
	assert.Empty(t, warnings)
	assert.Equal(t, "first", out["notes"])
	assert.Equal(t, []interface{}{"priority"}, out["tags"], "declared array fields initialize as arrays")
}

func TestMutatorClearByDeclaredType(t *testing.T) {
	m := newTestMutator(t, models.Schema{
		"notes":    {Name: "notes", Type: models.FieldTypeString},
		"tags":     {Name: "tags", Type: models.FieldTypeArray},
		"capacity": {Name: "capacity", Type: models.FieldTypeNumber},
	})
	record := models.Record{
		"id":       "v1",
		"notes":    "something",
		"tags":     []interface{}{"a"},
		"capacity": float64(5),
	}

	out, changed, _ := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "notes", Kind: models.OperationClear},
		{Field: "tags", Kind: models.OperationClear},
		{Field: "capacity", Kind: models.OperationClear},
	}, models.DefaultOptions())

	require.True(t, changed)
	assert.Equal(t, "", out["notes"])
	assert.Equal(t, []interface{}{}, out["tags"])
	_, exists := out["capacity"]
	assert.False(t, exists, "untyped clear removes the field")
}

func TestMutatorCopy(t *testing.T) {
	m := newTestMutator(t, models.Schema{
		"depot":      {Name: "depot", Type: models.FieldTypeString},
		"home_depot": {Name: "home_depot", Type: models.FieldTypeString},
	})
	record := models.Record{"id": "v1", "home_depot": "north"}

	out, changed, warnings := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "depot", Kind: models.OperationCopy, SourceField: "home_depot"},
	}, models.DefaultOptions())

	require.True(t, changed)
	assert.Empty(t, warnings)
	assert.Equal(t, "north", out["depot"])

	_, _, warnings = m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "depot", Kind: models.OperationCopy, SourceField: "missing"},
	}, models.DefaultOptions())
	require.Len(t, warnings, 1)
}

func TestMutatorFormula(t *testing.T) {
	m := newTestMutator(t, models.Schema{"capacity": {Name: "capacity", Type: models.FieldTypeNumber}})
	record := models.Record{"id": "v1", "capacity": float64(10)}

	out, changed, warnings := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "capacity", Kind: models.OperationFormula, Formula: "record.capacity * 2.0"},
	}, models.DefaultOptions())

	require.True(t, changed)
	assert.Empty(t, warnings)
	got, ok := models.AsNumber(out["capacity"])
	require.True(t, ok)
	assert.Equal(t, float64(20), got)
}

func TestMutatorStampsUpdatedAtOnChange(t *testing.T) {
	m := newTestMutator(t, models.Schema{"status": {Name: "status", Type: models.FieldTypeString}})
	record := models.Record{"id": "v1", "status": "idle"}

	out, changed, _ := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "status", Kind: models.OperationSet, Value: "active"},
	}, models.DefaultOptions())
	require.True(t, changed)
	assert.NotEmpty(t, out[models.FieldUpdatedAt])

	// No change, no stamp.
	same, changed, _ := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "status", Kind: models.OperationSet, Value: "idle"},
	}, models.DefaultOptions())
	assert.False(t, changed)
	_, stamped := same[models.FieldUpdatedAt]
	assert.False(t, stamped)
}

func TestMutatorNeverEditsCallerRecord(t *testing.T) {
	m := newTestMutator(t, models.Schema{"status": {Name: "status", Type: models.FieldTypeString}})
	record := models.Record{"id": "v1", "status": "idle"}

	_, changed, _ := m.ApplyAll(context.Background(), record, []models.FieldOperation{
		{Field: "status", Kind: models.OperationSet, Value: "active"},
	}, models.DefaultOptions())

	require.True(t, changed)
	assert.Equal(t, "idle", record["status"], "input record must stay untouched")
	_, stamped := record[models.FieldUpdatedAt]
	assert.False(t, stamped)
}
