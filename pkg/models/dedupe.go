package models

// MatchKind identifies the detection pass that produced a duplicate match.
type MatchKind string

const (
	MatchExactID    MatchKind = "exact_id"
	MatchNaturalKey MatchKind = "natural_key"
	MatchCoordinate MatchKind = "coordinate"
	MatchFuzzy      MatchKind = "fuzzy"
)

// Resolution is the caller's decision for a detected duplicate. The engine
// only classifies; it never resolves.
type Resolution string

const (
	ResolutionReplace Resolution = "replace"
	ResolutionCreate  Resolution = "create"
	ResolutionSkip    Resolution = "skip"
)

// DuplicateMatch reports one candidate/existing collision. Confidence is in
// [0,1] and symmetric: swapping candidate and existing yields the same value.
type DuplicateMatch struct {
	CandidateID       string    `json:"candidate_id"`
	ExistingID        string    `json:"existing_id"`
	Kind              MatchKind `json:"kind"`
	Confidence        float64   `json:"confidence"`
	ConflictingFields []string  `json:"conflicting_fields,omitempty"`
}
