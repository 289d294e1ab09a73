package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"bulkops/internal/config"
	"bulkops/internal/dedupe"
	"bulkops/internal/engine"
	"bulkops/internal/exporter"
	"bulkops/internal/importer"
	"bulkops/internal/logger"
	"bulkops/pkg/metrics"
	"bulkops/pkg/models"
)

type App struct {
	Config *config.Config
	Logger logger.Logger

	engine   *engine.Engine
	detector *dedupe.Detector
	pipeline *importer.Pipeline
	exporter *exporter.Exporter
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{Config: cfg, Logger: log}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.Register()

	eng, err := engine.New(a.Config.Engine, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	a.engine = eng
	a.detector = dedupe.NewDetector(a.Config.Dedupe, a.Logger)
	a.pipeline = importer.NewPipeline(a.Config.Import, eng, a.detector, a.Logger)
	a.exporter = exporter.New(a.Config.Export, a.Logger)

	a.Logger.InfowCtx(ctx, "Application initialized",
		"worker_threshold", a.Config.Engine.WorkerThreshold,
		"undo_depth", a.Config.Engine.UndoStackDepth,
	)
	return nil
}

type applyOptions struct {
	RecordsFile    string
	SchemaFile     string
	OperationsFile string
	OutFile        string
	UndoOutFile    string
	Level          string
	UpdateExisting bool
	PreserveEmpty  bool
}

// Apply runs one bulk edit batch over a records file and writes the
// mutated set back out. The undo entry, if any, can be captured to a file
// for a later undo invocation.
func (a *App) Apply(ctx context.Context, opts applyOptions) error {
	var records []models.Record
	if err := readJSONFile(opts.RecordsFile, &records); err != nil {
		return err
	}
	var schema models.Schema
	if err := readJSONFile(opts.SchemaFile, &schema); err != nil {
		return err
	}
	var operations []models.FieldOperation
	if err := readJSONFile(opts.OperationsFile, &operations); err != nil {
		return err
	}

	options := models.DefaultOptions()
	if opts.Level != "" {
		options.ValidationLevel = models.ValidationLevel(opts.Level)
	}
	options.UpdateExisting = opts.UpdateExisting
	options.PreserveEmpty = opts.PreserveEmpty

	session := a.engine.NewSession()
	go a.watchProgress(ctx, session)

	result, err := a.engine.Apply(ctx, session, engine.ApplyRequest{
		Records:     records,
		Schema:      schema,
		Operations:  operations,
		Options:     options,
		Description: fmt.Sprintf("bulk edit of %s", opts.RecordsFile),
	})
	if err != nil {
		a.reportErrors(result)
		return err
	}

	a.Logger.InfowCtx(ctx, "Apply finished",
		"state", session.State(),
		"total", result.Summary.Total,
		"successful", result.Summary.Successful,
		"skipped", result.Summary.Skipped,
	)
	a.reportErrors(result)

	if opts.OutFile != "" {
		if err := writeJSONFile(opts.OutFile, result.Records); err != nil {
			return err
		}
	}
	if opts.UndoOutFile != "" {
		entries := a.engine.Ledger().Entries()
		if len(entries) > 0 {
			if err := writeJSONFile(opts.UndoOutFile, entries[len(entries)-1]); err != nil {
				return err
			}
		}
	}
	return nil
}

type importOptions struct {
	File         string
	SchemaFile   string
	ExistingFile string
	OutFile      string
	PreviewOnly  bool
	AcceptAll    bool
	Level        string
}

// Import previews or runs a tabular import against an optional existing
// record set.
func (a *App) Import(ctx context.Context, opts importOptions) error {
	var schema models.Schema
	if err := readJSONFile(opts.SchemaFile, &schema); err != nil {
		return err
	}

	f, err := os.Open(opts.File)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	if opts.PreviewOnly {
		preview, err := a.pipeline.Preview(opts.File, f, schema)
		if err != nil {
			return err
		}
		return printJSON(preview)
	}

	var existing []models.Record
	if opts.ExistingFile != "" {
		if err := readJSONFile(opts.ExistingFile, &existing); err != nil {
			return err
		}
	}

	options := models.DefaultOptions()
	if opts.Level != "" {
		options.ValidationLevel = models.ValidationLevel(opts.Level)
	}

	req := importer.RunRequest{
		Filename:    opts.File,
		Input:       f,
		Schema:      schema,
		Existing:    existing,
		Options:     options,
		Description: fmt.Sprintf("import of %s", opts.File),
	}
	if opts.AcceptAll {
		// Confirm the auto-scored mappings as-is, review flags included.
		preview, err := a.pipeline.Preview(opts.File, f, schema)
		if err != nil {
			return err
		}
		if _, err := f.Seek(0, 0); err != nil {
			return fmt.Errorf("failed to rewind import file: %w", err)
		}
		for i := range preview.Mappings {
			preview.Mappings[i].NeedsReview = false
		}
		req.Mappings = preview.Mappings
	}

	session := a.engine.NewSession()
	go a.watchProgress(ctx, session)

	out, err := a.pipeline.Run(ctx, session, req)
	if err != nil {
		return err
	}

	a.Logger.InfowCtx(ctx, "Import finished",
		"created", out.Result.Summary.Successful,
		"skipped", out.Result.Summary.Skipped,
		"duplicates", len(out.Matches),
	)
	if opts.OutFile != "" {
		return writeJSONFile(opts.OutFile, out.Result.Records)
	}
	return nil
}

type exportOptions struct {
	RecordsFile     string
	SchemaFile      string
	OutFile         string
	Scope           string
	Format          string
	Columns         string
	SelectedIDs     string
	IncludeInternal bool
}

func (a *App) Export(ctx context.Context, opts exportOptions) error {
	var records []models.Record
	if err := readJSONFile(opts.RecordsFile, &records); err != nil {
		return err
	}
	var schema models.Schema
	if err := readJSONFile(opts.SchemaFile, &schema); err != nil {
		return err
	}

	req := exporter.Request{
		Records:         records,
		Schema:          schema,
		Scope:           models.ExportScope(opts.Scope),
		Format:          models.ExportFormat(opts.Format),
		IncludeInternal: opts.IncludeInternal,
		Filename:        opts.OutFile,
	}
	if opts.Columns != "" {
		req.Columns = splitList(opts.Columns)
	}
	if opts.SelectedIDs != "" {
		req.SelectedIDs = splitList(opts.SelectedIDs)
	}

	artifact, err := a.exporter.Export(ctx, req)
	if err != nil {
		return err
	}

	if err := os.WriteFile(artifact.Filename, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write export artifact: %w", err)
	}
	a.Logger.InfowCtx(ctx, "Export written",
		"filename", artifact.Filename,
		"records", artifact.RecordCount,
		"bytes", artifact.Size,
		"expires_at", artifact.ExpiresAt,
	)
	return nil
}

type undoOptions struct {
	RecordsFile string
	EntryFile   string
	OutFile     string
}

// Undo applies an entry's original values back onto a records file.
func (a *App) Undo(ctx context.Context, opts undoOptions) error {
	var records []models.Record
	if err := readJSONFile(opts.RecordsFile, &records); err != nil {
		return err
	}
	var entry models.UndoEntry
	if err := readJSONFile(opts.EntryFile, &entry); err != nil {
		return err
	}

	byID := make(map[string]int, len(records))
	for i, record := range records {
		byID[record.ID()] = i
	}

	ledger := engine.NewUndoLedger(1)
	err := ledger.Revert(ctx, entry, func(ctx context.Context, recordID string, originalValues map[string]interface{}) error {
		idx, ok := byID[recordID]
		if !ok {
			return fmt.Errorf("record %s not found", recordID)
		}
		for field, value := range originalValues {
			if value == nil {
				records[idx].Delete(field)
				continue
			}
			records[idx].Set(field, value)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.Logger.InfowCtx(ctx, "Undo applied",
		"operation_id", entry.OperationID,
		"affected", len(entry.Affected),
	)
	out := opts.OutFile
	if out == "" {
		out = opts.RecordsFile
	}
	return writeJSONFile(out, records)
}

// watchProgress relays session events to the log until the stream closes.
func (a *App) watchProgress(ctx context.Context, session *engine.Session) {
	for progress := range session.Events() {
		a.Logger.DebugwCtx(ctx, "Progress",
			"step", progress.CurrentStep,
			"completed", progress.Completed,
			"total", progress.Total,
			"percentage", fmt.Sprintf("%.1f", progress.Percentage),
		)
	}
}

func (a *App) reportErrors(result *models.OperationResult) {
	if result == nil {
		return
	}
	for _, opErr := range result.Errors {
		a.Logger.Warnw("Record error",
			"row", opErr.Row,
			"field", opErr.Field,
			"kind", opErr.Kind,
			"message", opErr.Message,
		)
	}
}

func readJSONFile(path string, out interface{}) error {
	if path == "" {
		return fmt.Errorf("missing required input file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSONFile(path string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func printJSON(value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
