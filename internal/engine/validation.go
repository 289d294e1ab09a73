package engine

import (
	"fmt"

	"github.com/google/uuid"

	"bulkops/pkg/formula"
	"bulkops/pkg/models"
)

// Validator statically checks an operation list against the schema and a
// representative sample of the record set. It runs once, before any
// mutation. Findings split into blocking errors and advisory warnings.
type Validator struct {
	formulas *formula.Evaluator
}

func NewValidator(formulas *formula.Evaluator) *Validator {
	return &Validator{formulas: formulas}
}

// ValidateOperations returns batch-level errors and warnings for the
// operation list itself: unknown fields, non-numeric operands, formula
// compile failures, and set-operand type mismatches against a sample record.
func (v *Validator) ValidateOperations(operations []models.FieldOperation, schema models.Schema, records []models.Record) (errs, warnings []models.OperationError) {
	var sample models.Record
	if len(records) > 0 {
		sample = records[0]
	}

	for _, op := range operations {
		fs, known := schema.Lookup(op.Field)
		if !known {
			errs = append(errs, v.finding(op.Field, fmt.Sprintf("field %q is not declared in the schema", op.Field), models.SeverityError))
			continue
		}

		switch op.Kind {
		case models.OperationIncrement, models.OperationMultiply:
			if _, ok := models.AsNumber(op.Value); !ok {
				errs = append(errs, v.finding(op.Field, fmt.Sprintf("%s requires a numeric operand, got %T", op.Kind, op.Value), models.SeverityError))
			}
			if fs.Type != models.FieldTypeNumber && fs.Type != models.FieldTypeUnknown {
				errs = append(errs, v.finding(op.Field, fmt.Sprintf("%s targets non-numeric field %q (%s)", op.Kind, op.Field, fs.Type), models.SeverityError))
			}

		case models.OperationCopy:
			if op.SourceField == "" {
				errs = append(errs, v.finding(op.Field, "copy requires a source field", models.SeverityError))
			} else if _, ok := schema.Lookup(op.SourceField); !ok {
				errs = append(errs, v.finding(op.Field, fmt.Sprintf("copy source field %q is not declared in the schema", op.SourceField), models.SeverityError))
			}

		case models.OperationFormula:
			if op.Formula == "" {
				errs = append(errs, v.finding(op.Field, "formula operation has no expression", models.SeverityError))
			} else if err := v.formulas.Validate(op.Formula); err != nil {
				errs = append(errs, v.finding(op.Field, err.Error(), models.SeverityError))
			}

		case models.OperationSet:
			if sample != nil {
				if current, ok := sample.Get(op.Field); ok && current != nil && op.Value != nil {
					currentType := models.DetectType(current)
					operandType := models.DetectType(op.Value)
					if currentType != operandType && currentType != models.FieldTypeUnknown && operandType != models.FieldTypeUnknown {
						warnings = append(warnings, v.finding(op.Field, fmt.Sprintf("set operand type %s differs from current field type %s", operandType, currentType), models.SeverityWarning))
					}
				}
			}
		}

		if op.Condition != nil {
			if _, ok := schema.Lookup(op.Condition.Field); !ok {
				warnings = append(warnings, v.finding(op.Condition.Field, fmt.Sprintf("condition references undeclared field %q", op.Condition.Field), models.SeverityWarning))
			}
		}
	}

	return errs, warnings
}

// RecordErrors checks one record against the operations' generic shape
// constraints: required fields and declared numeric bounds on the
// prospective result. Row is 1-based.
func (v *Validator) RecordErrors(record models.Record, row int, operations []models.FieldOperation, schema models.Schema) []models.OperationError {
	var errs []models.OperationError

	for _, op := range operations {
		fs, ok := schema.Lookup(op.Field)
		if !ok || (fs.Min == nil && fs.Max == nil) {
			continue
		}

		result, hasResult := prospectiveNumeric(record, op)
		if !hasResult {
			continue
		}
		if fs.Min != nil && result < *fs.Min {
			errs = append(errs, v.rowFinding(row, op.Field, fmt.Sprintf("result %v is below the declared minimum %v", result, *fs.Min)))
		}
		if fs.Max != nil && result > *fs.Max {
			errs = append(errs, v.rowFinding(row, op.Field, fmt.Sprintf("result %v is above the declared maximum %v", result, *fs.Max)))
		}
	}

	return errs
}

// prospectiveNumeric computes the numeric value a record would hold after
// the operation, for bound checking. Non-numeric paths report no result.
func prospectiveNumeric(record models.Record, op models.FieldOperation) (float64, bool) {
	current, _ := record.Get(op.Field)

	switch op.Kind {
	case models.OperationSet:
		return models.AsNumber(op.Value)
	case models.OperationIncrement:
		base, baseOK := models.AsNumber(current)
		operand, operandOK := models.AsNumber(op.Value)
		if !baseOK || !operandOK {
			return 0, false
		}
		return base + operand, true
	case models.OperationMultiply:
		base, baseOK := models.AsNumber(current)
		operand, operandOK := models.AsNumber(op.Value)
		if !baseOK || !operandOK {
			return 0, false
		}
		return base * operand, true
	default:
		return 0, false
	}
}

func (v *Validator) finding(field, message string, severity models.Severity) models.OperationError {
	return models.OperationError{
		ID:       uuid.New().String(),
		Field:    field,
		Message:  message,
		Kind:     models.ErrorKindValidation,
		Severity: severity,
	}
}

func (v *Validator) rowFinding(row int, field, message string) models.OperationError {
	finding := v.finding(field, message, models.SeverityError)
	finding.Row = row
	return finding
}
