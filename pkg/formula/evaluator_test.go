package formula

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkops/pkg/models"
)

func TestEvaluatorArithmetic(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	record := models.Record{"capacity": float64(10), "reserve": float64(2.5)}

	tests := []struct {
		name       string
		expression string
		expected   interface{}
	}{
		{name: "multiply", expression: "record.capacity * 2.0", expected: float64(20)},
		{name: "field combination", expression: "record.capacity + record.reserve", expected: float64(12.5)},
		{name: "comparison", expression: "record.capacity > 5.0", expected: true},
		{name: "conditional", expression: "record.capacity > 5.0 ? 'large' : 'small'", expected: "large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Evaluate(context.Background(), tt.expression, record)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluatorValidateRejectsBadExpressions(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	assert.NoError(t, e.Validate("record.capacity * 2.0"))
	assert.Error(t, e.Validate("record.capacity *"))
	assert.Error(t, e.Validate("undeclared_variable + 1"), "only the record variable is visible")
}

func TestEvaluatorCompileOnceRunMany(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	program, err := e.Compile("record.capacity * 3.0")
	require.NoError(t, err)

	for _, capacity := range []float64{1, 2, 3} {
		result, err := e.Run(context.Background(), program, models.Record{"capacity": capacity})
		require.NoError(t, err)
		assert.Equal(t, capacity*3, result)
	}
}

func TestEvaluatorMissingFieldIsRuntimeError(t *testing.T) {
	e, err := NewEvaluator()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "record.ghost + 1.0", models.Record{"capacity": float64(1)})
	assert.Error(t, err)
}
