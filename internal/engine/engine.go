// Package engine is the bulk record mutation core: it validates an
// operation list, applies it across a record set chunk by chunk (inline for
// small batches, offloaded to a worker above a size threshold), streams
// progress through an explicit session object, and appends completed
// batches to a bounded undo ledger. It never renders UI, never issues
// network calls, and never owns persistence.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bulkops/internal/config"
	"bulkops/internal/logger"
	"bulkops/pkg/errors"
	"bulkops/pkg/formula"
	"bulkops/pkg/logging"
	"bulkops/pkg/metrics"
	"bulkops/pkg/models"
)

type Engine struct {
	cfg       config.EngineConfig
	logger    logger.Logger
	formulas  *formula.Evaluator
	validator *Validator
	ledger    *UndoLedger
}

func New(cfg config.EngineConfig, log logger.Logger) (*Engine, error) {
	formulas, err := formula.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create formula evaluator: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		logger:    log,
		formulas:  formulas,
		validator: NewValidator(formulas),
		ledger:    NewUndoLedger(cfg.UndoStackDepth),
	}, nil
}

// Ledger exposes the engine's undo ledger.
func (e *Engine) Ledger() *UndoLedger {
	return e.ledger
}

// NewSession creates a session configured with the engine's progress
// throttle.
func (e *Engine) NewSession() *Session {
	return NewSession(e.cfg.ProgressInterval)
}

// ApplyRequest describes one bulk edit batch.
type ApplyRequest struct {
	Records     []models.Record
	Schema      models.Schema
	Operations  []models.FieldOperation
	Options     models.OperationOptions
	Description string
}

// Apply validates and executes one batch against the session. Small batches
// run inline; batches above the worker threshold are shipped to a background
// worker. Cancellation mid-batch leaves already-processed chunks applied and
// settles the session as cancelled, which is not an error.
func (e *Engine) Apply(ctx context.Context, session *Session, req ApplyRequest) (*models.OperationResult, error) {
	opts := normalizeOptions(req.Options)
	operationID := uuid.New().String()

	runCtx, err := session.begin(ctx, len(req.Records), "validating")
	if err != nil {
		return nil, err
	}
	runCtx = logging.WithOperationID(runCtx, operationID)

	e.logger.InfowCtx(runCtx, "Starting bulk edit",
		"records", len(req.Records),
		"operations", len(req.Operations),
		"validation_level", opts.ValidationLevel,
	)

	staticErrs, staticWarnings := e.validator.ValidateOperations(req.Operations, req.Schema, req.Records)
	session.report(0, "validating", staticErrs, staticWarnings)

	if opts.ValidationLevel == models.ValidationStrict && len(staticErrs) > 0 {
		result := e.buildResult(operationID, false, req.Records, staticErrs, staticWarnings, abortedSummary(len(req.Records)))
		e.settle(runCtx, session, "edit", models.StateError, result)
		return result, errors.ErrValidation.WithMessage("strict validation aborted the batch")
	}

	job := workerJob{
		Records:    req.Records,
		Operations: req.Operations,
		Options:    opts,
		Schema:     req.Schema,
		ChunkSize:  AdaptiveChunkSize(len(req.Records), e.cfg.MinChunkSize, e.cfg.MaxChunkSize),
	}

	var payload *workerCompletePayload
	var runErr error
	if e.cfg.WorkerThreshold > 0 && len(req.Records) > e.cfg.WorkerThreshold {
		e.logger.InfowCtx(runCtx, "Offloading batch to worker", "threshold", e.cfg.WorkerThreshold)
		payload, runErr = e.runOffloaded(runCtx, session, job)
	} else {
		payload, runErr = e.runDirect(runCtx, session, job)
	}

	switch {
	case runErr == nil:
		allErrs := append(staticErrs, payload.Errors...)
		allWarnings := append(staticWarnings, payload.Warnings...)
		result := e.buildResult(operationID, len(allErrs) == 0, payload.UpdatedRows, allErrs, allWarnings, payload.Summary)

		if entry := BuildUndoEntry(operationID, req.Description, req.Records, payload.UpdatedRows); len(entry.Affected) > 0 {
			e.ledger.Append(entry)
		}
		e.settle(runCtx, session, "edit", models.StateCompleted, result)
		return result, nil

	case stderrors.Is(runErr, errStrictValidation):
		allErrs := append(staticErrs, payload.Errors...)
		result := e.buildResult(operationID, false, req.Records, allErrs, staticWarnings, abortedSummary(len(req.Records)))
		e.settle(runCtx, session, "edit", models.StateError, result)
		return result, errors.ErrValidation.WithMessage("strict validation aborted the batch")

	case runCtx.Err() != nil:
		result := e.cancelledResult(operationID, req.Records, payload, staticErrs, staticWarnings)
		e.settle(runCtx, session, "edit", models.StateCancelled, result)
		return result, nil

	default:
		sysErr := errors.Wrap(runErr, errors.ErrSystem)
		result := e.buildResult(operationID, false, req.Records, append(staticErrs, models.OperationError{
			ID:       uuid.New().String(),
			Message:  sysErr.Error(),
			Kind:     models.ErrorKindSystem,
			Severity: models.SeverityError,
		}), staticWarnings, abortedSummary(len(req.Records)))
		e.settle(runCtx, session, "edit", models.StateError, result)
		return result, sysErr
	}
}

func (e *Engine) runDirect(ctx context.Context, session *Session, job workerJob) (*workerCompletePayload, error) {
	mutator := NewMutator(job.Schema, e.formulas)

	outcome, err := runBatch(ctx, job, mutator, e.validator, "direct", func(completed, total int) {
		session.report(completed, "applying", nil, nil)
	})

	payload := &workerCompletePayload{
		UpdatedRows:   outcome.updated,
		AffectedCount: outcome.affected,
		TotalRecords:  len(job.Records),
		Summary:       outcome.summary,
		Errors:        outcome.errors,
		Warnings:      outcome.warnings,
	}
	return payload, err
}

func (e *Engine) runOffloaded(ctx context.Context, session *Session, job workerJob) (*workerCompletePayload, error) {
	out := make(chan workerMessage, 16)

	// The worker gets its own copy of the records; host and worker share
	// nothing but the message channel.
	job.Records = models.CloneRecords(job.Records)
	go runWorker(ctx, job, out)

	var complete *workerCompletePayload
	var workerFault string

	for msg := range out {
		switch msg.Kind {
		case workerProgress:
			session.reportPercent(msg.Progress, msg.Message)
		case workerValidation:
			// The host reported its own static pass before offloading; the
			// worker's recomputed findings are identical and stay out of the
			// session.
		case workerComplete:
			complete = msg.Complete
		case workerError:
			workerFault = msg.Error
		}
	}

	if workerFault != "" {
		return nil, errors.ErrSystem.WithMessage(workerFault)
	}
	if complete == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.ErrSystem.WithMessage("worker exited without a result")
	}
	if job.Options.ValidationLevel == models.ValidationStrict &&
		complete.AffectedCount == 0 && len(complete.Errors) > 0 &&
		complete.Summary.Skipped == complete.Summary.Total {
		return &workerCompletePayload{Errors: complete.Errors, Warnings: complete.Warnings}, errStrictValidation
	}
	return complete, nil
}

// IngestRequest describes a batch of incoming records to create.
type IngestRequest struct {
	Records     []models.Record
	Schema      models.Schema
	Options     models.OperationOptions
	Description string

	// SkipRows marks 0-based rows degraded by earlier pipeline stages
	// (duplicate resolution, reference failures); they count as skipped.
	SkipRows  map[int]bool
	RowErrors []models.OperationError
}

// Ingest validates and admits incoming records, assigning identities where
// missing and stamping each admitted record. Used by the import pipeline.
func (e *Engine) Ingest(ctx context.Context, session *Session, req IngestRequest) (*models.OperationResult, error) {
	opts := normalizeOptions(req.Options)
	operationID := uuid.New().String()

	runCtx, err := session.begin(ctx, len(req.Records), "validating")
	if err != nil {
		return nil, err
	}
	runCtx = logging.WithOperationID(runCtx, operationID)

	e.logger.InfowCtx(runCtx, "Starting import batch", "records", len(req.Records))

	rowErrs := append([]models.OperationError{}, req.RowErrors...)
	skip := make(map[int]bool, len(req.SkipRows))
	for idx := range req.SkipRows {
		skip[idx] = true
	}
	for i, record := range req.Records {
		errsForRow := requiredFieldErrors(record, i+1, req.Schema)
		if len(errsForRow) > 0 {
			rowErrs = append(rowErrs, errsForRow...)
			skip[i] = true
		}
	}
	session.report(0, "validating", rowErrs, nil)

	if opts.ValidationLevel == models.ValidationStrict && len(rowErrs) > 0 {
		result := e.buildResult(operationID, false, nil, rowErrs, nil, abortedSummary(len(req.Records)))
		e.settle(runCtx, session, "import", models.StateError, result)
		return result, errors.ErrValidation.WithMessage("strict validation aborted the import")
	}

	created := make([]models.Record, 0, len(req.Records))
	chunkSize := AdaptiveChunkSize(len(req.Records), e.cfg.MinChunkSize, e.cfg.MaxChunkSize)

	chunkErr := ProcessInChunks(runCtx, req.Records, chunkSize, "direct", func(ctx context.Context, chunk []models.Record, offset int) error {
		for j, record := range chunk {
			idx := offset + j
			if skip[idx] {
				metrics.RecordsProcessedTotal.WithLabelValues("skipped").Inc()
				continue
			}
			admitted := record.Clone()
			if admitted.ID() == "" {
				admitted.Set(models.FieldID, uuid.New().String())
			}
			created = append(created, admitted)
			metrics.RecordsProcessedTotal.WithLabelValues("created").Inc()
		}
		return nil
	}, func(completed, total int) {
		session.report(completed, "importing", nil, nil)
	})

	if chunkErr != nil {
		summary := models.Summary{
			Total:      len(req.Records),
			Successful: len(created),
			Skipped:    len(req.Records) - len(created),
		}
		result := e.buildResult(operationID, false, created, rowErrs, nil, summary)
		e.settle(runCtx, session, "import", models.StateCancelled, result)
		return result, nil
	}

	summary := models.Summary{
		Total:      len(req.Records),
		Successful: len(created),
		Skipped:    len(req.Records) - len(created),
	}
	result := e.buildResult(operationID, len(rowErrs) == 0, created, rowErrs, nil, summary)

	if len(created) > 0 {
		entry := models.UndoEntry{
			OperationID: operationID,
			Timestamp:   time.Now().UTC(),
			Description: req.Description,
		}
		for _, record := range created {
			entry.Affected = append(entry.Affected, models.UndoRecord{
				ID:             record.ID(),
				OriginalValues: map[string]interface{}{},
				NewValues:      record,
			})
		}
		e.ledger.Append(entry)
	}

	e.settle(runCtx, session, "import", models.StateCompleted, result)
	return result, nil
}

func requiredFieldErrors(record models.Record, row int, schema models.Schema) []models.OperationError {
	var errs []models.OperationError
	for name, fs := range schema {
		if !fs.Required {
			continue
		}
		value, ok := record.Get(name)
		if !ok || models.IsEmpty(value) {
			errs = append(errs, models.OperationError{
				ID:       uuid.New().String(),
				Row:      row,
				Field:    name,
				Message:  fmt.Sprintf("required field %q is missing", name),
				Kind:     models.ErrorKindValidation,
				Severity: models.SeverityError,
			})
		}
	}
	return errs
}

func (e *Engine) buildResult(operationID string, success bool, records []models.Record, errs, warnings []models.OperationError, summary models.Summary) *models.OperationResult {
	return &models.OperationResult{
		OperationID: operationID,
		Success:     success,
		Records:     records,
		Errors:      errs,
		Warnings:    warnings,
		Summary:     summary,
	}
}

func (e *Engine) cancelledResult(operationID string, originals []models.Record, payload *workerCompletePayload, errs, warnings []models.OperationError) *models.OperationResult {
	if payload != nil && payload.UpdatedRows != nil {
		// Direct path: chunks already processed keep their mutations.
		return e.buildResult(operationID, false, payload.UpdatedRows, append(errs, payload.Errors...), append(warnings, payload.Warnings...), payload.Summary)
	}
	// Offloaded path: the worker context was torn down; no intermediate
	// state was ever observed, so the originals stand untouched.
	return e.buildResult(operationID, false, originals, errs, warnings, abortedSummary(len(originals)))
}

func (e *Engine) settle(ctx context.Context, session *Session, kind string, state models.OperationState, result *models.OperationResult) {
	session.finish(state, result)
	metrics.OperationsTotal.WithLabelValues(kind, string(state)).Inc()
	e.logger.InfowCtx(ctx, "Batch settled",
		"state", state,
		"total", result.Summary.Total,
		"successful", result.Summary.Successful,
		"failed", result.Summary.Failed,
		"skipped", result.Summary.Skipped,
	)
}

func normalizeOptions(opts models.OperationOptions) models.OperationOptions {
	if opts.ValidationLevel == "" {
		opts.ValidationLevel = models.DefaultOptions().ValidationLevel
	}
	return opts
}
