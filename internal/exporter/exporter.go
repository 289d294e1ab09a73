// Package exporter serializes record sets to transient download artifacts:
// scope filtering, column projection, internal-field stripping, then CSV or
// JSON encoding with a time-bounded expiry hint.
package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bulkops/internal/config"
	"bulkops/internal/logger"
	"bulkops/pkg/errors"
	"bulkops/pkg/metrics"
	"bulkops/pkg/models"
)

type Exporter struct {
	cfg    config.ExportConfig
	logger logger.Logger
	now    func() time.Time
}

func New(cfg config.ExportConfig, log logger.Logger) *Exporter {
	return &Exporter{cfg: cfg, logger: log, now: time.Now}
}

// Request describes one export. Filtered carries the caller's current view
// for ScopeFiltered; SelectedIDs drives ScopeSelected.
type Request struct {
	Records     []models.Record
	Filtered    []models.Record
	SelectedIDs []string
	Schema      models.Schema

	Scope   models.ExportScope
	Format  models.ExportFormat
	Columns []string

	// IncludeInternal keeps identifier and bookkeeping columns that are
	// otherwise stripped.
	IncludeInternal bool

	Filename string
}

// Export produces the artifact. The data lives in memory on the artifact;
// storage beyond the expiry hint is the caller's concern.
func (e *Exporter) Export(ctx context.Context, req Request) (*models.ExportArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := e.scopeRecords(req)
	if err != nil {
		return nil, err
	}
	columns := e.projectColumns(req)
	if len(columns) == 0 {
		return nil, errors.ErrValidation.WithMessage("no exportable columns")
	}

	format := req.Format
	if format == "" {
		format = models.FormatCSV
	}

	var data []byte
	switch format {
	case models.FormatCSV:
		data, err = encodeCSV(records, columns)
	case models.FormatJSON:
		data, err = encodeJSON(records, columns)
	default:
		return nil, errors.ErrValidation.WithMessage(fmt.Sprintf("unsupported export format: %s", format))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSystem)
	}

	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("export-%s.%s", uuid.New().String(), format)
	}

	metrics.ExportRowsTotal.Add(float64(len(records)))
	e.logger.Infow("Export produced",
		"filename", filename,
		"records", len(records),
		"format", format,
		"bytes", len(data),
	)

	return &models.ExportArtifact{
		Filename:    filename,
		Size:        int64(len(data)),
		RecordCount: len(records),
		ExpiresAt:   e.now().Add(e.ttl()),
		Data:        data,
	}, nil
}

func (e *Exporter) ttl() time.Duration {
	if e.cfg.ArtifactTTL > 0 {
		return e.cfg.ArtifactTTL
	}
	return 24 * time.Hour
}

func (e *Exporter) scopeRecords(req Request) ([]models.Record, error) {
	switch req.Scope {
	case models.ScopeAll, "":
		return req.Records, nil
	case models.ScopeFiltered:
		return req.Filtered, nil
	case models.ScopeSelected:
		selected := make(map[string]bool, len(req.SelectedIDs))
		for _, id := range req.SelectedIDs {
			selected[id] = true
		}
		var out []models.Record
		for _, record := range req.Records {
			if selected[record.ID()] {
				out = append(out, record)
			}
		}
		return out, nil
	default:
		return nil, errors.ErrValidation.WithMessage(fmt.Sprintf("unknown export scope: %s", req.Scope))
	}
}

// projectColumns applies the caller's projection, or defaults to the
// schema's stable column order. Internal bookkeeping fields stay out unless
// explicitly requested.
func (e *Exporter) projectColumns(req Request) []string {
	includeInternal := req.IncludeInternal || e.cfg.IncludeInternalFields

	source := req.Columns
	if len(source) == 0 {
		source = req.Schema.FieldNames()
	}

	var out []string
	for _, column := range source {
		if !includeInternal && isInternal(column, req.Schema) {
			continue
		}
		out = append(out, column)
	}
	return out
}

func isInternal(column string, schema models.Schema) bool {
	if column == models.FieldID || column == models.FieldUpdatedAt {
		return true
	}
	fs, ok := schema.Lookup(column)
	return ok && fs.Internal
}

func encodeCSV(records []models.Record, columns []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, err
	}
	row := make([]string, len(columns))
	for _, record := range records {
		for i, column := range columns {
			value, _ := record.Get(column)
			row[i] = formatCell(value)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJSON(records []models.Record, columns []string) ([]byte, error) {
	out := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		row := make(map[string]interface{}, len(columns))
		for _, column := range columns {
			if value, ok := record.Get(column); ok {
				row[column] = value
			}
		}
		out = append(out, row)
	}
	return json.MarshalIndent(out, "", "  ")
}

// formatCell renders one value for a delimited cell. Timestamps become
// RFC 3339 strings; arrays and objects are JSON-encoded inside the cell so
// the row stays flat.
func formatCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case []interface{}, map[string]interface{}:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return models.AsString(value)
	}
}
