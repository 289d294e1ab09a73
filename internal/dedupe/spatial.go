package dedupe

import (
	"math"

	"bulkops/pkg/models"
)

// Coordinate proximity uses a spatial grid keyed by tolerance-sized cells.
// Candidate pairs only ever come from the same cell or one of its eight
// neighbors, which keeps the pairwise comparison local instead of O(n^2)
// over the whole set.

type cellKey struct {
	x, y int64
}

type spatialIndex struct {
	cell    float64
	buckets map[cellKey][]int
}

func newSpatialIndex(tolerance float64) *spatialIndex {
	if tolerance <= 0 {
		tolerance = 0.0001
	}
	return &spatialIndex{
		cell:    tolerance,
		buckets: make(map[cellKey][]int),
	}
}

func (s *spatialIndex) keyFor(x, y float64) cellKey {
	return cellKey{
		x: int64(math.Floor(x / s.cell)),
		y: int64(math.Floor(y / s.cell)),
	}
}

func (s *spatialIndex) insert(idx int, x, y float64) {
	key := s.keyFor(x, y)
	s.buckets[key] = append(s.buckets[key], idx)
}

// neighbors returns every indexed entry in the 3x3 cell neighborhood around
// the given point, including the point's own cell.
func (s *spatialIndex) neighbors(x, y float64) []int {
	center := s.keyFor(x, y)
	var out []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			key := cellKey{x: center.x + dx, y: center.y + dy}
			out = append(out, s.buckets[key]...)
		}
	}
	return out
}

// recordCoordinates extracts the two configured coordinate fields as
// numbers. Records missing either field, or holding non-numeric values, are
// excluded from the coordinate pass.
func recordCoordinates(record models.Record, fields []string) (float64, float64, bool) {
	if len(fields) != 2 {
		return 0, 0, false
	}
	first, ok := record.Get(fields[0])
	if !ok {
		return 0, 0, false
	}
	second, ok := record.Get(fields[1])
	if !ok {
		return 0, 0, false
	}
	x, ok := models.AsNumber(first)
	if !ok {
		return 0, 0, false
	}
	y, ok := models.AsNumber(second)
	if !ok {
		return 0, 0, false
	}
	return x, y, true
}

// withinTolerance reports whether two points collide, and how close they
// are as a proximity score in [0,1] (1 means identical coordinates).
func withinTolerance(x1, y1, x2, y2, tolerance float64) (float64, bool) {
	dx := math.Abs(x1 - x2)
	dy := math.Abs(y1 - y2)
	if dx > tolerance || dy > tolerance {
		return 0, false
	}
	worst := dx
	if dy > worst {
		worst = dy
	}
	return 1 - worst/tolerance, true
}
