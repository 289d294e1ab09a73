package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"bulkops/pkg/models"
)

// naturalKeyHash produces a deterministic grouping key for a record's
// natural key field. The value is normalized before hashing so cosmetic
// differences (case, surrounding whitespace) do not defeat grouping.
func naturalKeyHash(record models.Record, field string) (string, bool) {
	value, ok := record.Get(field)
	if !ok || models.IsEmpty(value) {
		return "", false
	}
	normalized := normalizeKey(models.AsString(value))
	if normalized == "" {
		return "", false
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), true
}

// normalizeKey lowercases and collapses internal whitespace.
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
