package engine

import (
	"strings"

	"bulkops/pkg/models"
)

// EvaluateCondition decides whether a gated operation applies to a record.
// A nil condition always passes. A missing field evaluates as an absent
// value: it satisfies empty, fails not_empty and contains, and matches
// equals only when the target value is also absent. Numeric comparisons
// that fail coercion yield false rather than an error.
func EvaluateCondition(record models.Record, cond *models.Condition) bool {
	if cond == nil {
		return true
	}

	value, exists := record.Get(cond.Field)

	switch cond.Operator {
	case models.ConditionEquals:
		if !exists {
			return cond.Value == nil
		}
		return models.ValuesEqual(value, cond.Value)

	case models.ConditionNotEquals:
		if !exists {
			return cond.Value != nil
		}
		return !models.ValuesEqual(value, cond.Value)

	case models.ConditionGreaterThan:
		current, ok := models.AsNumber(value)
		if !ok {
			return false
		}
		target, ok := models.AsNumber(cond.Value)
		if !ok {
			return false
		}
		return current > target

	case models.ConditionLessThan:
		current, ok := models.AsNumber(value)
		if !ok {
			return false
		}
		target, ok := models.AsNumber(cond.Value)
		if !ok {
			return false
		}
		return current < target

	case models.ConditionContains:
		if !exists || value == nil {
			return false
		}
		return strings.Contains(models.AsString(value), models.AsString(cond.Value))

	case models.ConditionEmpty:
		return !exists || models.IsEmpty(value)

	case models.ConditionNotEmpty:
		return exists && !models.IsEmpty(value)

	default:
		return false
	}
}
