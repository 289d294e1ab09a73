package importer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"bulkops/internal/config"
	"bulkops/internal/dedupe"
	"bulkops/internal/engine"
	"bulkops/internal/logger"
	"bulkops/pkg/circuitbreaker"
	"bulkops/pkg/errors"
	"bulkops/pkg/models"
	"bulkops/pkg/retry"
)

// Resolver fills in externally owned references on an incoming record
// (route assignments, depot links and the like). Implementations talk to a
// remote system; the pipeline shields the batch from their failures with
// retries and a circuit breaker.
type Resolver interface {
	Resolve(ctx context.Context, record models.Record) (models.Record, error)
}

// candidateIDPrefix marks rows that arrived without an identity. The
// handle is stable per file so duplicate resolutions survive a re-run.
const candidateIDPrefix = "import-"

type Pipeline struct {
	cfg      config.ImportConfig
	engine   *engine.Engine
	detector *dedupe.Detector
	logger   logger.Logger

	resolver Resolver
	breaker  *circuitbreaker.Wrapper
	policy   retry.Policy
}

func NewPipeline(cfg config.ImportConfig, eng *engine.Engine, detector *dedupe.Detector, log logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		engine:   eng,
		detector: detector,
		logger:   log,
		policy: retry.Policy{
			MaxAttempts:     cfg.Resolver.Retry.MaxAttempts,
			InitialInterval: cfg.Resolver.Retry.InitialInterval,
			MaxInterval:     cfg.Resolver.Retry.MaxInterval,
			Multiplier:      cfg.Resolver.Retry.Multiplier,
			MaxElapsedTime:  cfg.Resolver.Retry.MaxElapsedTime,
		},
	}
}

// UseResolver attaches a reference resolver. Without one, the resolution
// stage is skipped entirely.
func (p *Pipeline) UseResolver(r Resolver) {
	p.resolver = r
	if p.cfg.Resolver.CircuitBreaker.Enabled {
		p.breaker = circuitbreaker.NewWrapper(circuitbreaker.Config{
			Name:         "import-resolver",
			MaxRequests:  p.cfg.Resolver.CircuitBreaker.MaxRequests,
			Interval:     p.cfg.Resolver.CircuitBreaker.Interval,
			Timeout:      p.cfg.Resolver.CircuitBreaker.Timeout,
			FailureRatio: p.cfg.Resolver.CircuitBreaker.FailureRatio,
			MinRequests:  p.cfg.Resolver.CircuitBreaker.MinRequests,
		})
	}
}

// Preview is the pre-flight view of an import: the parsed header, the
// scored mappings and a few sample rows, so a caller can confirm or correct
// mappings before committing the batch.
type Preview struct {
	Columns     []string               `json:"columns"`
	Mappings    []models.ColumnMapping `json:"mappings"`
	RowCount    int                    `json:"row_count"`
	SampleRows  [][]string             `json:"sample_rows"`
	NeedsReview bool                   `json:"needs_review"`
}

func (p *Pipeline) Preview(filename string, r io.Reader, schema models.Schema) (*Preview, error) {
	table, err := Parse(filename, r)
	if err != nil {
		return nil, err
	}

	mappings := MapColumns(table.Columns, schema, table.Rows, p.cfg.MappingConfidenceFloor)

	preview := &Preview{
		Columns:  table.Columns,
		Mappings: mappings,
		RowCount: len(table.Rows),
	}
	for _, mapping := range mappings {
		if mapping.NeedsReview {
			preview.NeedsReview = true
		}
	}
	limit := len(table.Rows)
	if limit > sampleLimit {
		limit = sampleLimit
	}
	preview.SampleRows = table.Rows[:limit]
	return preview, nil
}

// RunRequest carries one import batch through the pipeline.
type RunRequest struct {
	Filename string
	Input    io.Reader
	Schema   models.Schema
	Existing []models.Record

	// Mappings overrides the auto-scored column mappings, typically after
	// a Preview round-trip. Leave nil to auto-map; auto-mapping fails when
	// any mapping needs review.
	Mappings []models.ColumnMapping

	// Resolutions decides detected duplicates by candidate id. Rows without
	// an id column get the stable handle "import-<row>" (1-based), so a
	// decision can be keyed after a prior screening run of the same file.
	// Candidates matched but not decided are skipped.
	Resolutions map[string]models.Resolution

	Options     models.OperationOptions
	Description string
}

// RunResult pairs the engine outcome with the pipeline's own findings.
type RunResult struct {
	Result   *models.OperationResult
	Matches  []models.DuplicateMatch
	Mappings []models.ColumnMapping
}

// Run executes the full import: parse, map, coerce, duplicate-screen,
// resolve references, then admit through the engine. Rows degraded along
// the way count as skipped in the final summary.
func (p *Pipeline) Run(ctx context.Context, session *engine.Session, req RunRequest) (*RunResult, error) {
	table, err := Parse(req.Filename, req.Input)
	if err != nil {
		return nil, err
	}

	mappings := req.Mappings
	if mappings == nil {
		mappings = MapColumns(table.Columns, req.Schema, table.Rows, p.cfg.MappingConfidenceFloor)
		if unreviewed := reviewColumns(mappings); len(unreviewed) > 0 {
			return nil, errors.ErrValidation.
				WithMessage("column mappings need manual confirmation").
				WithDetail("columns", strings.Join(unreviewed, ", "))
		}
	}

	records, rowErrs, skip := p.buildRecords(table, mappings)

	matches, err := p.detector.Detect(ctx, records, req.Existing)
	if err != nil {
		return nil, err
	}
	p.applyResolutions(records, matches, req.Resolutions, rowErrs, skip)

	if p.resolver != nil {
		p.resolveReferences(ctx, records, skip, rowErrs)
	}

	// Placeholder handles served their purpose; admitted records get real
	// identities from the engine.
	for _, record := range records {
		if strings.HasPrefix(record.ID(), candidateIDPrefix) {
			record.Delete(models.FieldID)
		}
	}

	flatErrs := make([]models.OperationError, 0)
	for _, errsForRow := range rowErrs {
		flatErrs = append(flatErrs, errsForRow...)
	}

	result, err := p.engine.Ingest(ctx, session, engine.IngestRequest{
		Records:     records,
		Schema:      req.Schema,
		Options:     req.Options,
		Description: req.Description,
		SkipRows:    skip,
		RowErrors:   flatErrs,
	})
	if err != nil {
		return &RunResult{Result: result, Matches: matches, Mappings: mappings}, err
	}

	p.logger.Infow("Import finished",
		"file", req.Filename,
		"rows", len(table.Rows),
		"created", result.Summary.Successful,
		"skipped", result.Summary.Skipped,
		"duplicates", len(matches),
	)
	return &RunResult{Result: result, Matches: matches, Mappings: mappings}, nil
}

// buildRecords coerces raw rows through the confirmed mappings. Cells that
// fail coercion produce row errors; a row failing on any mapped cell is
// skipped, not dropped, so the summary still accounts for it.
func (p *Pipeline) buildRecords(table *Table, mappings []models.ColumnMapping) ([]models.Record, map[int][]models.OperationError, map[int]bool) {
	rowErrs := make(map[int][]models.OperationError)
	skip := make(map[int]bool)
	records := make([]models.Record, 0, len(table.Rows))

	for ri, row := range table.Rows {
		record := models.Record{}
		for ci, mapping := range mappings {
			if mapping.TargetField == "" || ci >= len(row) {
				continue
			}
			value, err := coerceCell(row[ci], mapping.DataType)
			if err != nil {
				rowErrs[ri] = append(rowErrs[ri], models.OperationError{
					ID:       uuid.New().String(),
					Row:      ri + 1,
					Field:    mapping.TargetField,
					Message:  err.Error(),
					Kind:     models.ErrorKindValidation,
					Severity: models.SeverityError,
				})
				skip[ri] = true
				continue
			}
			if value == nil {
				continue
			}
			record.Set(mapping.TargetField, value)
		}
		if record.ID() == "" {
			record.Set(models.FieldID, fmt.Sprintf("%s%d", candidateIDPrefix, ri+1))
		}
		records = append(records, record)
	}
	return records, rowErrs, skip
}

// applyResolutions settles detected duplicates. Replace keeps the row but
// adopts the existing record's identity; create admits the row as-is; skip,
// and any match left undecided, degrades the row with a duplicate error.
func (p *Pipeline) applyResolutions(records []models.Record, matches []models.DuplicateMatch, resolutions map[string]models.Resolution, rowErrs map[int][]models.OperationError, skip map[int]bool) {
	rowByID := make(map[string]int, len(records))
	for i, record := range records {
		rowByID[record.ID()] = i
	}

	for _, match := range matches {
		row, ok := rowByID[match.CandidateID]
		if !ok {
			continue
		}
		switch resolutions[match.CandidateID] {
		case models.ResolutionCreate:
			// Caller accepted the collision.
		case models.ResolutionReplace:
			records[row].Set(models.FieldID, match.ExistingID)
		default:
			if skip[row] {
				continue
			}
			skip[row] = true
			rowErrs[row] = append(rowErrs[row], models.OperationError{
				ID:       uuid.New().String(),
				Row:      row + 1,
				Message:  fmt.Sprintf("duplicate of record %s (%s, confidence %.2f)", match.ExistingID, match.Kind, match.Confidence),
				Kind:     models.ErrorKindDuplicate,
				Severity: models.SeverityError,
			})
		}
	}
}

// resolveReferences runs each admitted row through the resolver, retried
// under the configured policy and guarded by the circuit breaker. A row
// whose resolution ultimately fails degrades to skipped with a network
// error; the batch itself keeps going.
func (p *Pipeline) resolveReferences(ctx context.Context, records []models.Record, skip map[int]bool, rowErrs map[int][]models.OperationError) {
	for i := range records {
		if skip[i] {
			continue
		}
		record := records[i]

		err := retry.Do(ctx, p.policy, func() error {
			call := func() (interface{}, error) {
				return p.resolver.Resolve(ctx, record)
			}
			var resolved interface{}
			var callErr error
			if p.breaker != nil {
				resolved, callErr = p.breaker.Execute(call)
			} else {
				resolved, callErr = call()
			}
			if callErr != nil {
				return callErr
			}
			if r, ok := resolved.(models.Record); ok {
				record = r
			}
			return nil
		})
		if err != nil {
			skip[i] = true
			rowErrs[i] = append(rowErrs[i], models.OperationError{
				ID:       uuid.New().String(),
				Row:      i + 1,
				Message:  fmt.Sprintf("reference resolution failed: %v", err),
				Kind:     models.ErrorKindNetwork,
				Severity: models.SeverityError,
			})
			continue
		}
		records[i] = record
	}
}

func reviewColumns(mappings []models.ColumnMapping) []string {
	var out []string
	for _, mapping := range mappings {
		if mapping.NeedsReview {
			out = append(out, mapping.SourceColumn)
		}
	}
	return out
}
