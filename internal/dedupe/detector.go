// Package dedupe classifies duplicate records across three independent
// passes: exact identifier collisions, natural key collisions, coordinate
// proximity, and fuzzy natural key similarity. It only classifies; the
// resolution of each match is always a caller decision.
package dedupe

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"bulkops/internal/config"
	"bulkops/internal/logger"
	"bulkops/pkg/metrics"
	"bulkops/pkg/models"
)

type Detector struct {
	cfg    config.DedupeConfig
	logger logger.Logger
}

func NewDetector(cfg config.DedupeConfig, log logger.Logger) *Detector {
	return &Detector{cfg: cfg, logger: log}
}

// indexedRecord positions one record in the combined scan set. Candidates
// precede existing records; pair direction always puts a candidate first.
type indexedRecord struct {
	id        string
	record    models.Record
	candidate bool
}

// Detect scans candidates against the existing set and against each other.
// The three passes run concurrently and their results are unioned, so one
// pair may surface under multiple match kinds. Matches are symmetric: the
// confidence of a pair does not depend on which side was the candidate.
func (d *Detector) Detect(ctx context.Context, candidates, existing []models.Record) ([]models.DuplicateMatch, error) {
	all := make([]indexedRecord, 0, len(candidates)+len(existing))
	for _, record := range candidates {
		all = append(all, indexedRecord{id: record.ID(), record: record, candidate: true})
	}
	for _, record := range existing {
		all = append(all, indexedRecord{id: record.ID(), record: record})
	}

	var exact, keyed, coordinate, fuzzy []models.DuplicateMatch

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		exact = d.exactIDPass(all)
		return gctx.Err()
	})
	g.Go(func() error {
		keyed = d.naturalKeyPass(all)
		return gctx.Err()
	})
	g.Go(func() error {
		coordinate = d.coordinatePass(all)
		return gctx.Err()
	})
	g.Go(func() error {
		fuzzy = d.fuzzyPass(gctx, all)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matches := unionMatches(exact, keyed, coordinate, fuzzy)
	for _, match := range matches {
		metrics.DuplicateMatchesTotal.WithLabelValues(string(match.Kind)).Inc()
	}

	d.logger.Debugw("Duplicate scan complete",
		"candidates", len(candidates),
		"existing", len(existing),
		"matches", len(matches),
	)
	return matches, nil
}

// exactIDPass groups by the surrogate id. Any group larger than one is a
// duplicate set with full confidence.
func (d *Detector) exactIDPass(all []indexedRecord) []models.DuplicateMatch {
	groups := make(map[string][]int)
	for i, entry := range all {
		if entry.id == "" {
			continue
		}
		groups[entry.id] = append(groups[entry.id], i)
	}
	return d.groupMatches(all, groups, models.MatchExactID, 1.0)
}

// naturalKeyPass groups by the normalized hash of the configured natural
// key field.
func (d *Detector) naturalKeyPass(all []indexedRecord) []models.DuplicateMatch {
	groups := make(map[string][]int)
	for i, entry := range all {
		hash, ok := naturalKeyHash(entry.record, d.cfg.NaturalKeyField)
		if !ok {
			continue
		}
		groups[hash] = append(groups[hash], i)
	}
	return d.groupMatches(all, groups, models.MatchNaturalKey, 1.0)
}

func (d *Detector) groupMatches(all []indexedRecord, groups map[string][]int, kind models.MatchKind, confidence float64) []models.DuplicateMatch {
	var out []models.DuplicateMatch
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				if match, ok := d.pairMatch(all, members[i], members[j], kind, confidence); ok {
					out = append(out, match)
				}
			}
		}
	}
	return out
}

func (d *Detector) coordinatePass(all []indexedRecord) []models.DuplicateMatch {
	tolerance := d.cfg.CoordinateTolerance
	if tolerance <= 0 {
		return nil
	}

	index := newSpatialIndex(tolerance)
	points := make(map[int][2]float64)
	for i, entry := range all {
		x, y, ok := recordCoordinates(entry.record, d.cfg.CoordinateFields)
		if !ok {
			continue
		}
		points[i] = [2]float64{x, y}
		index.insert(i, x, y)
	}

	var out []models.DuplicateMatch
	for i, point := range points {
		for _, j := range index.neighbors(point[0], point[1]) {
			if j <= i {
				continue
			}
			other := points[j]
			proximity, hit := withinTolerance(point[0], point[1], other[0], other[1], tolerance)
			if !hit {
				continue
			}
			confidence := 0.85 + 0.15*proximity
			if match, ok := d.pairMatch(all, i, j, models.MatchCoordinate, confidence); ok {
				out = append(out, match)
			}
		}
	}
	return out
}

// fuzzyPass compares natural key strings pairwise. Pairs whose normalized
// keys are identical are left to the natural key pass.
func (d *Detector) fuzzyPass(ctx context.Context, all []indexedRecord) []models.DuplicateMatch {
	floor := d.cfg.FuzzyConfidenceFloor
	if floor <= 0 || floor > 1 {
		floor = 0.85
	}

	keys := make(map[int]string)
	for i, entry := range all {
		value, ok := entry.record.Get(d.cfg.NaturalKeyField)
		if !ok || models.IsEmpty(value) {
			continue
		}
		keys[i] = models.AsString(value)
	}

	var out []models.DuplicateMatch
	for i := 0; i < len(all); i++ {
		a, ok := keys[i]
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			return out
		}
		for j := i + 1; j < len(all); j++ {
			b, ok := keys[j]
			if !ok {
				continue
			}
			if normalizeKey(a) == normalizeKey(b) {
				continue
			}
			score := similarity(a, b)
			if score < floor {
				continue
			}
			if match, ok := d.pairMatch(all, i, j, models.MatchFuzzy, score); ok {
				out = append(out, match)
			}
		}
	}
	return out
}

// pairMatch builds one match, always placing a candidate on the candidate
// side. Pairs where neither record is a candidate are dropped; two existing
// records colliding with each other is not actionable for an import.
func (d *Detector) pairMatch(all []indexedRecord, i, j int, kind models.MatchKind, confidence float64) (models.DuplicateMatch, bool) {
	a, b := all[i], all[j]
	if !a.candidate && !b.candidate {
		return models.DuplicateMatch{}, false
	}
	if !a.candidate {
		a, b = b, a
	}
	return models.DuplicateMatch{
		CandidateID:       a.id,
		ExistingID:        b.id,
		Kind:              kind,
		Confidence:        confidence,
		ConflictingFields: conflictingFields(a.record, b.record),
	}, true
}

// conflictingFields lists top-level fields present on both records whose
// values differ. Bookkeeping fields are excluded.
func conflictingFields(a, b models.Record) []string {
	var out []string
	for key, aValue := range a {
		if key == models.FieldID || key == models.FieldUpdatedAt {
			continue
		}
		bValue, ok := b[key]
		if !ok {
			continue
		}
		if !models.ValuesEqual(aValue, bValue) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// unionMatches merges pass results, dropping exact pair/kind repeats and
// ordering by confidence, highest first.
func unionMatches(passes ...[]models.DuplicateMatch) []models.DuplicateMatch {
	type matchKey struct {
		candidate, existing string
		kind                models.MatchKind
	}
	seen := make(map[matchKey]bool)
	var out []models.DuplicateMatch
	for _, pass := range passes {
		for _, match := range pass {
			key := matchKey{candidate: match.CandidateID, existing: match.ExistingID, kind: match.Kind}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, match)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
