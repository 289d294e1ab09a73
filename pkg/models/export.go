package models

import "time"

// ExportScope selects which records an export covers.
type ExportScope string

const (
	ScopeAll      ExportScope = "all"
	ScopeFiltered ExportScope = "filtered"
	ScopeSelected ExportScope = "selected"
)

// ExportFormat selects the serialization target.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportArtifact is a transient export result. The engine generates the
// expiry hint; storage lifecycle beyond that belongs to the caller.
type ExportArtifact struct {
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	RecordCount int       `json:"record_count"`
	ExpiresAt   time.Time `json:"expires_at"`
	Data        []byte    `json:"-"`
}
