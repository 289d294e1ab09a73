package importer

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"bulkops/pkg/models"
)

// Column mapping scores each source header against every schema field and
// greedily assigns the best pairs. Exact name matches score 1.0, normalized
// matches slightly below, anything else by edit-distance similarity. A
// sample of the column's values that fails to coerce to the field's type
// downgrades the score. Mappings below the floor are flagged for manual
// review rather than auto-applied.

const (
	exactNameScore      = 1.0
	normalizedNameScore = 0.95
	typeMismatchFactor  = 0.5
	sampleLimit         = 5
)

// MapColumns scores table columns against the schema. sampleRows feed the
// type-compatibility check; the result is ordered like the input columns.
func MapColumns(columns []string, schema models.Schema, sampleRows [][]string, floor float64) []models.ColumnMapping {
	if floor <= 0 || floor > 1 {
		floor = 0.6
	}

	type scored struct {
		column int
		field  string
		score  float64
	}

	fields := schema.FieldNames()
	var pairs []scored
	for ci, column := range columns {
		for _, field := range fields {
			score := nameScore(column, field)
			if score <= 0 {
				continue
			}
			if !columnCompatible(sampleRows, ci, schema[field].Type) {
				score *= typeMismatchFactor
			}
			pairs = append(pairs, scored{column: ci, field: field, score: score})
		}
	}

	// Greedy assignment, best pair first. Ties break on column order so the
	// outcome is deterministic.
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].column < pairs[j].column
	})

	columnTaken := make(map[int]bool)
	fieldTaken := make(map[string]bool)
	assigned := make(map[int]scored)
	for _, pair := range pairs {
		if columnTaken[pair.column] || fieldTaken[pair.field] {
			continue
		}
		columnTaken[pair.column] = true
		fieldTaken[pair.field] = true
		assigned[pair.column] = pair
	}

	out := make([]models.ColumnMapping, len(columns))
	for ci, column := range columns {
		mapping := models.ColumnMapping{SourceColumn: column}
		if pair, ok := assigned[ci]; ok {
			fs := schema[pair.field]
			mapping.TargetField = pair.field
			mapping.Confidence = pair.score
			mapping.DataType = fs.Type
			mapping.IsRequired = fs.Required
			mapping.NeedsReview = pair.score < floor
		} else {
			mapping.NeedsReview = true
		}
		out[ci] = mapping
	}
	return out
}

func nameScore(column, field string) float64 {
	if column == field {
		return exactNameScore
	}
	nc, nf := normalizeName(column), normalizeName(field)
	if nc == "" || nf == "" {
		return 0
	}
	if nc == nf {
		return normalizedNameScore
	}

	distance := levenshtein.ComputeDistance(nc, nf)
	longest := len([]rune(nc))
	if l := len([]rune(nf)); l > longest {
		longest = l
	}
	score := 1 - float64(distance)/float64(longest)
	// Scale below the normalized-match score so a fuzzy hit never outranks
	// an exact one.
	return score * 0.9
}

// normalizeName strips everything but letters and digits and lowercases,
// so "Vehicle ID", "vehicle_id" and "vehicleId" all collapse to one form.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func columnCompatible(sampleRows [][]string, column int, fieldType models.FieldType) bool {
	checked := 0
	for _, row := range sampleRows {
		if checked >= sampleLimit {
			break
		}
		if column >= len(row) || strings.TrimSpace(row[column]) == "" {
			continue
		}
		checked++
		if !cellCompatible(row[column], fieldType) {
			return false
		}
	}
	return true
}
