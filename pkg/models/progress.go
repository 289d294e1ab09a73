package models

// OperationState is the lifecycle state of a bulk operation session.
type OperationState string

const (
	StateIdle       OperationState = "idle"
	StateProcessing OperationState = "processing"
	StateCompleted  OperationState = "completed"
	StateError      OperationState = "error"
	StateCancelled  OperationState = "cancelled"
)

// Terminal reports whether no further transition is valid except Reset.
func (s OperationState) Terminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

// ErrorKind classifies an operation error per the engine taxonomy.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindDuplicate  ErrorKind = "duplicate"
	ErrorKindSystem     ErrorKind = "system"
	ErrorKindNetwork    ErrorKind = "network"
)

// Severity separates blocking errors from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// OperationError describes one validation or processing finding. Row is
// 1-based and zero when the finding is not row-scoped.
type OperationError struct {
	ID          string    `json:"id"`
	Row         int       `json:"row,omitempty"`
	Field       string    `json:"field,omitempty"`
	Message     string    `json:"message"`
	Kind        ErrorKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// OperationProgress is a snapshot of an in-flight batch. Completed is
// monotonically non-decreasing until a terminal state is reached.
type OperationProgress struct {
	Total       int              `json:"total"`
	Completed   int              `json:"completed"`
	Percentage  float64          `json:"percentage"`
	CurrentStep string           `json:"current_step"`
	Errors      []OperationError `json:"errors,omitempty"`
	Warnings    []OperationError `json:"warnings,omitempty"`
}

// Summary reconciles the batch outcome: Successful+Failed+Skipped == Total.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// OperationResult is the terminal outcome of one batch invocation.
type OperationResult struct {
	OperationID string           `json:"operation_id"`
	Success     bool             `json:"success"`
	Records     []Record         `json:"records,omitempty"`
	Errors      []OperationError `json:"errors,omitempty"`
	Warnings    []OperationError `json:"warnings,omitempty"`
	Summary     Summary          `json:"summary"`
}
