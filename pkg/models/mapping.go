package models

// ColumnMapping binds one source column of a tabular import to a target
// schema field. Confidence is a heuristic similarity score in [0,1];
// mappings below the configured floor are flagged NeedsReview instead of
// being auto-applied.
type ColumnMapping struct {
	SourceColumn string    `json:"source_column"`
	TargetField  string    `json:"target_field"`
	Confidence   float64   `json:"confidence"`
	DataType     FieldType `json:"data_type"`
	IsRequired   bool      `json:"is_required"`
	NeedsReview  bool      `json:"needs_review,omitempty"`
}
