package exporter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkops/internal/config"
	"bulkops/internal/logger"
	"bulkops/pkg/errors"
	"bulkops/pkg/models"
)

func testExporter() *Exporter {
	return New(config.ExportConfig{ArtifactTTL: 24 * time.Hour}, logger.NopLogger())
}

func exportSchema() models.Schema {
	return models.Schema{
		"name":     {Name: "name", Type: models.FieldTypeString},
		"capacity": {Name: "capacity", Type: models.FieldTypeNumber},
		"secret":   {Name: "secret", Type: models.FieldTypeString, Internal: true},
	}
}

func exportRecords() []models.Record {
	return []models.Record{
		{"id": "v1", "name": "Alpha Truck", "capacity": float64(10), "secret": "s1"},
		{"id": "v2", "name": "Bravo Van", "capacity": float64(12), "secret": "s2"},
		{"id": "v3", "name": "Quote, \"Me\"", "capacity": float64(7), "secret": "s3"},
	}
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportSelectedScopeStripsIdentifiers(t *testing.T) {
	artifact, err := testExporter().Export(context.Background(), Request{
		Records:     exportRecords(),
		Schema:      exportSchema(),
		Scope:       models.ScopeSelected,
		SelectedIDs: []string{"v1", "v3"},
		Format:      models.FormatCSV,
	})
	require.NoError(t, err)

	rows := parseCSV(t, artifact.Data)
	require.Len(t, rows, 3, "header plus exactly the two selected records")
	assert.Equal(t, []string{"capacity", "name"}, rows[0], "no identifier or internal column")
	assert.Equal(t, 2, artifact.RecordCount)
}

func TestExportQuotesDelimitersAndQuotes(t *testing.T) {
	artifact, err := testExporter().Export(context.Background(), Request{
		Records: exportRecords(),
		Schema:  exportSchema(),
		Format:  models.FormatCSV,
	})
	require.NoError(t, err)

	rows := parseCSV(t, artifact.Data)
	require.Len(t, rows, 4)
	assert.Equal(t, "Quote, \"Me\"", rows[3][1], "embedded delimiters and quotes round-trip")
}

func TestExportIncludeInternalKeepsEverything(t *testing.T) {
	artifact, err := testExporter().Export(context.Background(), Request{
		Records:         exportRecords(),
		Schema:          exportSchema(),
		Format:          models.FormatCSV,
		IncludeInternal: true,
	})
	require.NoError(t, err)

	rows := parseCSV(t, artifact.Data)
	assert.Contains(t, rows[0], "secret")
}

func TestExportColumnProjection(t *testing.T) {
	artifact, err := testExporter().Export(context.Background(), Request{
		Records: exportRecords(),
		Schema:  exportSchema(),
		Format:  models.FormatCSV,
		Columns: []string{"name"},
	})
	require.NoError(t, err)

	rows := parseCSV(t, artifact.Data)
	assert.Equal(t, []string{"name"}, rows[0])
	assert.Equal(t, "Alpha Truck", rows[1][0])
}

func TestExportJSONFormat(t *testing.T) {
	artifact, err := testExporter().Export(context.Background(), Request{
		Records: exportRecords()[:1],
		Schema:  exportSchema(),
		Format:  models.FormatJSON,
	})
	require.NoError(t, err)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(artifact.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Alpha Truck", rows[0]["name"])
	_, hasID := rows[0]["id"]
	assert.False(t, hasID)
}

func TestExportArtifactMetadata(t *testing.T) {
	e := testExporter()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	artifact, err := e.Export(context.Background(), Request{
		Records: exportRecords(),
		Schema:  exportSchema(),
		Format:  models.FormatCSV,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(artifact.Filename, "export-"))
	assert.True(t, strings.HasSuffix(artifact.Filename, ".csv"))
	assert.Equal(t, int64(len(artifact.Data)), artifact.Size)
	assert.Equal(t, 3, artifact.RecordCount)
	assert.Equal(t, now.Add(24*time.Hour), artifact.ExpiresAt)
}

func TestExportFormatsComplexCells(t *testing.T) {
	schema := models.Schema{
		"tags":    {Name: "tags", Type: models.FieldTypeArray},
		"meta":    {Name: "meta", Type: models.FieldTypeObject},
		"seen_at": {Name: "seen_at", Type: models.FieldTypeTimestamp},
	}
	records := []models.Record{{
		"id":      "v1",
		"tags":    []interface{}{"a", "b"},
		"meta":    map[string]interface{}{"zone": "north"},
		"seen_at": time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC),
	}}

	artifact, err := testExporter().Export(context.Background(), Request{
		Records: records,
		Schema:  schema,
		Format:  models.FormatCSV,
	})
	require.NoError(t, err)

	rows := parseCSV(t, artifact.Data)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"meta", "seen_at", "tags"}, rows[0])
	assert.Equal(t, `{"zone":"north"}`, rows[1][0])
	assert.Equal(t, "2026-08-23T10:30:00Z", rows[1][1])
	assert.Equal(t, `["a","b"]`, rows[1][2])
}

func TestExportRejectsUnknownScopeAndFormat(t *testing.T) {
	_, err := testExporter().Export(context.Background(), Request{
		Records: exportRecords(),
		Schema:  exportSchema(),
		Scope:   "everything",
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = testExporter().Export(context.Background(), Request{
		Records: exportRecords(),
		Schema:  exportSchema(),
		Format:  "parquet",
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
