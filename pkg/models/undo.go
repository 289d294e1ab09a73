package models

import "time"

// UndoRecord captures the before/after field values of one affected record.
// OriginalValues holds what a reverse application must restore.
type UndoRecord struct {
	ID             string                 `json:"id"`
	OriginalValues map[string]interface{} `json:"original_values"`
	NewValues      map[string]interface{} `json:"new_values"`
}

// UndoEntry is one reversible mutation batch. Entries are created only after
// a batch reaches the completed state and are never partially written.
type UndoEntry struct {
	OperationID string       `json:"operation_id"`
	Timestamp   time.Time    `json:"timestamp"`
	Affected    []UndoRecord `json:"affected"`
	Description string       `json:"description"`
}
