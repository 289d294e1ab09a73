package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"

	"bulkops/pkg/formula"
	"bulkops/pkg/models"
)

// Mutator applies typed field operations to records. It never edits
// caller-owned memory: ApplyAll clones the record before the first change.
// Formula programs are compiled once and cached for the life of the mutator.
type Mutator struct {
	schema   models.Schema
	formulas *formula.Evaluator

	programMu sync.Mutex
	programs  map[string]cel.Program

	now func() time.Time
}

func NewMutator(schema models.Schema, formulas *formula.Evaluator) *Mutator {
	return &Mutator{
		schema:   schema,
		formulas: formulas,
		programs: make(map[string]cel.Program),
		now:      time.Now,
	}
}

// ApplyAll runs every operation against one record and returns the mutated
// copy, whether anything changed, and any per-record warnings. Records with
// at least one applied change receive an updated-timestamp stamp.
func (m *Mutator) ApplyAll(ctx context.Context, record models.Record, operations []models.FieldOperation, opts models.OperationOptions) (models.Record, bool, []models.OperationError) {
	out := record.Clone()
	changed := false
	var warnings []models.OperationError

	for _, op := range operations {
		applied, warning := m.apply(ctx, out, op, opts)
		if warning != nil {
			warnings = append(warnings, *warning)
		}
		if applied {
			changed = true
		}
	}

	if changed {
		out.Set(models.FieldUpdatedAt, m.now().UTC().Format(time.RFC3339))
	}
	return out, changed, warnings
}

// apply mutates the working copy in place. Gating short-circuits at the
// first failed check, in the documented precedence order.
func (m *Mutator) apply(ctx context.Context, record models.Record, op models.FieldOperation, opts models.OperationOptions) (bool, *models.OperationError) {
	current, _ := record.Get(op.Field)

	if !opts.UpdateExisting && !models.IsEmpty(current) {
		return false, nil
	}
	if opts.PreserveEmpty && models.IsEmpty(current) {
		return false, nil
	}
	if !EvaluateCondition(record, op.Condition) {
		return false, nil
	}

	switch op.Kind {
	case models.OperationSet:
		if models.ValuesEqual(current, op.Value) {
			return false, nil
		}
		record.Set(op.Field, op.Value)
		return true, nil

	case models.OperationIncrement, models.OperationMultiply:
		base, baseOK := models.AsNumber(current)
		operand, operandOK := models.AsNumber(op.Value)
		if !baseOK || !operandOK {
			return false, m.warning(op.Field, fmt.Sprintf("%s requires numeric values, got %v and %v", op.Kind, current, op.Value))
		}
		result := base + operand
		if op.Kind == models.OperationMultiply {
			result = base * operand
		}
		if result == base {
			return false, nil
		}
		record.Set(op.Field, result)
		return true, nil

	case models.OperationAppend, models.OperationPrepend:
		return m.applyConcat(record, op, current)

	case models.OperationClear:
		return m.applyClear(record, op, current)

	case models.OperationCopy:
		source, ok := record.Get(op.SourceField)
		if !ok {
			return false, m.warning(op.Field, fmt.Sprintf("copy source field %q missing on record", op.SourceField))
		}
		if models.ValuesEqual(current, source) {
			return false, nil
		}
		record.Set(op.Field, source)
		return true, nil

	case models.OperationFormula:
		return m.applyFormula(ctx, record, op, current)

	default:
		return false, m.warning(op.Field, fmt.Sprintf("unknown operation kind %q", op.Kind))
	}
}

func (m *Mutator) applyConcat(record models.Record, op models.FieldOperation, current interface{}) (bool, *models.OperationError) {
	switch existing := current.(type) {
	case string:
		addition := models.AsString(op.Value)
		if addition == "" {
			return false, nil
		}
		if op.Kind == models.OperationAppend {
			record.Set(op.Field, existing+addition)
		} else {
			record.Set(op.Field, addition+existing)
		}
		return true, nil
	case []interface{}:
		var updated []interface{}
		if op.Kind == models.OperationAppend {
			updated = append(append([]interface{}{}, existing...), op.Value)
		} else {
			updated = append([]interface{}{op.Value}, existing...)
		}
		record.Set(op.Field, updated)
		return true, nil
	case nil:
		// Empty field: append and prepend both initialize it, honoring the
		// declared type.
		if fs, ok := m.schema.Lookup(op.Field); ok && fs.Type == models.FieldTypeArray {
			record.Set(op.Field, []interface{}{op.Value})
			return true, nil
		}
		if s := models.AsString(op.Value); s != "" {
			record.Set(op.Field, s)
			return true, nil
		}
		return false, nil
	default:
		return false, m.warning(op.Field, fmt.Sprintf("%s applies only to string and array fields", op.Kind))
	}
}

func (m *Mutator) applyClear(record models.Record, op models.FieldOperation, current interface{}) (bool, *models.OperationError) {
	if current == nil {
		return false, nil
	}

	var cleared interface{}
	if fs, ok := m.schema.Lookup(op.Field); ok {
		switch fs.Type {
		case models.FieldTypeString:
			cleared = ""
		case models.FieldTypeArray:
			cleared = []interface{}{}
		}
	}

	if cleared == nil {
		record.Delete(op.Field)
		return !models.IsEmpty(current), nil
	}
	if models.ValuesEqual(current, cleared) {
		return false, nil
	}
	record.Set(op.Field, cleared)
	return true, nil
}

func (m *Mutator) applyFormula(ctx context.Context, record models.Record, op models.FieldOperation, current interface{}) (bool, *models.OperationError) {
	program, err := m.program(op.Formula)
	if err != nil {
		return false, m.warning(op.Field, err.Error())
	}

	result, err := m.formulas.Run(ctx, program, record)
	if err != nil {
		return false, m.warning(op.Field, err.Error())
	}
	if models.ValuesEqual(current, result) {
		return false, nil
	}
	record.Set(op.Field, result)
	return true, nil
}

func (m *Mutator) program(expression string) (cel.Program, error) {
	m.programMu.Lock()
	defer m.programMu.Unlock()

	if program, ok := m.programs[expression]; ok {
		return program, nil
	}
	program, err := m.formulas.Compile(expression)
	if err != nil {
		return nil, err
	}
	m.programs[expression] = program
	return program, nil
}

func (m *Mutator) warning(field, message string) *models.OperationError {
	return &models.OperationError{
		ID:       uuid.New().String(),
		Field:    field,
		Message:  message,
		Kind:     models.ErrorKindValidation,
		Severity: models.SeverityWarning,
	}
}
