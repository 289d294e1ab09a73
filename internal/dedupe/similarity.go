package dedupe

import (
	"github.com/agnivade/levenshtein"
)

// similarity scores two natural key strings in [0,1] using normalized edit
// distance. Identical normalized strings score 1; an empty side scores 0.
// The function is symmetric in its arguments.
func similarity(a, b string) float64 {
	a = normalizeKey(a)
	b = normalizeKey(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	distance := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	return 1 - float64(distance)/float64(longest)
}
