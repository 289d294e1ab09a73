package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkops/internal/config"
	"bulkops/internal/logger"
	"bulkops/pkg/models"
)

func testDetector() *Detector {
	return NewDetector(config.DedupeConfig{
		NaturalKeyField:      "name",
		CoordinateFields:     []string{"latitude", "longitude"},
		CoordinateTolerance:  0.0001,
		FuzzyConfidenceFloor: 0.85,
	}, logger.NopLogger())
}

func matchesOfKind(matches []models.DuplicateMatch, kind models.MatchKind) []models.DuplicateMatch {
	var out []models.DuplicateMatch
	for _, match := range matches {
		if match.Kind == kind {
			out = append(out, match)
		}
	}
	return out
}

func TestDetectExactIDCollision(t *testing.T) {
	d := testDetector()

	matches, err := d.Detect(context.Background(),
		[]models.Record{{"id": "loc-1", "name": "North Depot"}},
		[]models.Record{{"id": "loc-1", "name": "Main Depot"}},
	)
	require.NoError(t, err)

	exact := matchesOfKind(matches, models.MatchExactID)
	require.Len(t, exact, 1)
	assert.Equal(t, "loc-1", exact[0].CandidateID)
	assert.Equal(t, float64(1), exact[0].Confidence)
	assert.Equal(t, []string{"name"}, exact[0].ConflictingFields)
}

func TestDetectNaturalKeyIgnoresCaseAndWhitespace(t *testing.T) {
	d := testDetector()

	matches, err := d.Detect(context.Background(),
		[]models.Record{{"id": "new-1", "name": "  north   DEPOT ", "capacity": float64(5)}},
		[]models.Record{{"id": "loc-9", "name": "North Depot", "capacity": float64(8)}},
	)
	require.NoError(t, err)

	keyed := matchesOfKind(matches, models.MatchNaturalKey)
	require.Len(t, keyed, 1)
	assert.Equal(t, "new-1", keyed[0].CandidateID)
	assert.Equal(t, "loc-9", keyed[0].ExistingID)
	assert.Equal(t, float64(1), keyed[0].Confidence)
	assert.Contains(t, keyed[0].ConflictingFields, "capacity")
}

func TestDetectCoordinateWithinTolerance(t *testing.T) {
	d := testDetector()

	matches, err := d.Detect(context.Background(),
		[]models.Record{{"id": "new-1", "name": "Dock A", "latitude": 52.37005, "longitude": 4.89002}},
		[]models.Record{
			{"id": "loc-1", "name": "Dock B", "latitude": 52.37009, "longitude": 4.89006},
			{"id": "loc-2", "name": "Dock C", "latitude": 52.40000, "longitude": 4.90000},
		},
	)
	require.NoError(t, err)

	coords := matchesOfKind(matches, models.MatchCoordinate)
	require.Len(t, coords, 1, "only the record inside the tolerance matches")
	assert.Equal(t, "loc-1", coords[0].ExistingID)
	assert.GreaterOrEqual(t, coords[0].Confidence, 0.85)
	assert.LessOrEqual(t, coords[0].Confidence, 1.0)
}

func TestDetectFuzzyNaturalKey(t *testing.T) {
	d := testDetector()

	matches, err := d.Detect(context.Background(),
		[]models.Record{{"id": "new-1", "name": "Central Warehouse"}},
		[]models.Record{
			{"id": "loc-1", "name": "Central Warehouse 2"},
			{"id": "loc-2", "name": "Harbor Office"},
		},
	)
	require.NoError(t, err)

	fuzzy := matchesOfKind(matches, models.MatchFuzzy)
	require.Len(t, fuzzy, 1)
	assert.Equal(t, "loc-1", fuzzy[0].ExistingID)
	assert.GreaterOrEqual(t, fuzzy[0].Confidence, 0.85)
	assert.Less(t, fuzzy[0].Confidence, 1.0)
}

func TestDetectIsSymmetric(t *testing.T) {
	a := models.Record{"id": "a", "name": "Central Warehouse"}
	b := models.Record{"id": "b", "name": "Central Warehouse 2"}
	d := testDetector()

	forward, err := d.Detect(context.Background(), []models.Record{a}, []models.Record{b})
	require.NoError(t, err)
	backward, err := d.Detect(context.Background(), []models.Record{b}, []models.Record{a})
	require.NoError(t, err)

	forwardFuzzy := matchesOfKind(forward, models.MatchFuzzy)
	backwardFuzzy := matchesOfKind(backward, models.MatchFuzzy)
	require.Len(t, forwardFuzzy, 1)
	require.Len(t, backwardFuzzy, 1)
	assert.Equal(t, forwardFuzzy[0].Confidence, backwardFuzzy[0].Confidence)
}

func TestDetectIgnoresExistingOnlyCollisions(t *testing.T) {
	d := testDetector()

	matches, err := d.Detect(context.Background(),
		[]models.Record{{"id": "new-1", "name": "Fresh Site"}},
		[]models.Record{
			{"id": "loc-1", "name": "North Depot"},
			{"id": "loc-2", "name": "North Depot"},
		},
	)
	require.NoError(t, err)
	assert.Empty(t, matches, "two existing records colliding is not actionable for a candidate")
}

func TestDetectWithinCandidateSet(t *testing.T) {
	d := testDetector()

	matches, err := d.Detect(context.Background(), []models.Record{
		{"id": "r1", "name": "South Yard"},
		{"id": "r2", "name": "South Yard"},
	}, nil)
	require.NoError(t, err)

	keyed := matchesOfKind(matches, models.MatchNaturalKey)
	require.Len(t, keyed, 1)
	assert.Equal(t, "r1", keyed[0].CandidateID)
	assert.Equal(t, "r2", keyed[0].ExistingID)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, float64(1), similarity("North Depot", "north depot"))
	assert.Equal(t, float64(0), similarity("", "anything"))
	assert.Greater(t, similarity("warehouse", "warehous"), 0.85)
	assert.Less(t, similarity("warehouse", "office"), 0.5)

	// Symmetry.
	assert.Equal(t, similarity("abcdef", "abcxyz"), similarity("abcxyz", "abcdef"))
}

func TestNaturalKeyHashNormalizes(t *testing.T) {
	a, ok := naturalKeyHash(models.Record{"name": "  North   DEPOT "}, "name")
	require.True(t, ok)
	b, ok := naturalKeyHash(models.Record{"name": "north depot"}, "name")
	require.True(t, ok)
	assert.Equal(t, a, b)

	_, ok = naturalKeyHash(models.Record{"name": ""}, "name")
	assert.False(t, ok)
	_, ok = naturalKeyHash(models.Record{}, "name")
	assert.False(t, ok)
}
