package models

// OperationKind identifies a typed field mutation.
type OperationKind string

const (
	OperationSet       OperationKind = "set"
	OperationClear     OperationKind = "clear"
	OperationIncrement OperationKind = "increment"
	OperationMultiply  OperationKind = "multiply"
	OperationAppend    OperationKind = "append"
	OperationPrepend   OperationKind = "prepend"
	OperationCopy      OperationKind = "copy"
	OperationFormula   OperationKind = "formula"
)

// ConditionOperator identifies a predicate over a single record field.
type ConditionOperator string

const (
	ConditionEquals      ConditionOperator = "equals"
	ConditionNotEquals   ConditionOperator = "not_equals"
	ConditionGreaterThan ConditionOperator = "greater_than"
	ConditionLessThan    ConditionOperator = "less_than"
	ConditionContains    ConditionOperator = "contains"
	ConditionEmpty       ConditionOperator = "empty"
	ConditionNotEmpty    ConditionOperator = "not_empty"
)

// Condition gates a field operation. A nil condition always passes.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    interface{}       `json:"value,omitempty"`
}

// FieldOperation applies one typed mutation to one field of one record.
type FieldOperation struct {
	Field       string        `json:"field"`
	Kind        OperationKind `json:"kind"`
	Value       interface{}   `json:"value,omitempty"`
	SourceField string        `json:"source_field,omitempty"` // copy only
	Formula     string        `json:"formula,omitempty"`      // formula only
	Condition   *Condition    `json:"condition,omitempty"`
}

// UpdateMode annotates a batch with the caller's merge-or-replace intent.
// The engine records it but never branches on it; gating is driven entirely
// by UpdateExisting and PreserveEmpty.
type UpdateMode string

const (
	ModeUpdate  UpdateMode = "update"
	ModeReplace UpdateMode = "replace"
)

// ValidationLevel controls how validation findings affect the batch.
type ValidationLevel string

const (
	// ValidationStrict aborts the whole batch on any error, with zero
	// mutations applied.
	ValidationStrict ValidationLevel = "strict"
	// ValidationModerate proceeds and degrades offending records to skipped.
	ValidationModerate ValidationLevel = "moderate"
	// ValidationPermissive proceeds and only surfaces warnings.
	ValidationPermissive ValidationLevel = "permissive"
)

// OperationOptions carries the update-policy flags for a batch.
type OperationOptions struct {
	// Mode is a caller-owned pass-through; see UpdateMode.
	Mode            UpdateMode      `json:"mode"`
	UpdateExisting  bool            `json:"update_existing"`
	PreserveEmpty   bool            `json:"preserve_empty"`
	ValidationLevel ValidationLevel `json:"validation_level"`
}

// DefaultOptions returns the option set used when the caller supplies none.
func DefaultOptions() OperationOptions {
	return OperationOptions{
		Mode:            ModeUpdate,
		UpdateExisting:  true,
		PreserveEmpty:   false,
		ValidationLevel: ValidationModerate,
	}
}
