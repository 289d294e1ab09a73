package engine

import (
	"context"
	"fmt"

	"bulkops/pkg/formula"
	"bulkops/pkg/models"
)

// Worker message protocol. A closed tagged union: new kinds may be added,
// existing ones are never repurposed.
type workerMessageKind string

const (
	workerProgress   workerMessageKind = "progress"
	workerValidation workerMessageKind = "validation"
	workerComplete   workerMessageKind = "complete"
	workerError      workerMessageKind = "error"
)

type workerMessage struct {
	Kind workerMessageKind

	// progress
	Progress float64
	Message  string

	// validation
	ValidationErrors   []models.OperationError
	ValidationWarnings []models.OperationError

	// complete
	Complete *workerCompletePayload

	// error
	Error string
}

type workerCompletePayload struct {
	UpdatedRows   []models.Record
	AffectedCount int
	TotalRecords  int
	Summary       models.Summary
	Errors        []models.OperationError
	Warnings      []models.OperationError
}

// workerJob is the full payload shipped to the worker in one message. The
// record slice is deep-copied before handoff so host and worker never share
// mutable state.
type workerJob struct {
	Records    []models.Record
	Operations []models.FieldOperation
	Options    models.OperationOptions
	Schema     models.Schema
	ChunkSize  int
}

// runWorker executes one offloaded job in an isolated goroutine, mirroring
// the direct path's validation and mutation semantics. All communication
// with the host flows through out; the channel is closed when the worker
// exits, whatever the outcome. A panic surfaces as a terminal error message
// so the host is never left hung.
func runWorker(ctx context.Context, job workerJob, out chan<- workerMessage) {
	defer close(out)
	defer func() {
		if rec := recover(); rec != nil {
			out <- workerMessage{Kind: workerError, Error: fmt.Sprintf("worker panic: %v", rec)}
		}
	}()

	formulas, err := formula.NewEvaluator()
	if err != nil {
		out <- workerMessage{Kind: workerError, Error: err.Error()}
		return
	}
	validator := NewValidator(formulas)
	mutator := NewMutator(job.Schema, formulas)

	staticErrs, staticWarnings := validator.ValidateOperations(job.Operations, job.Schema, job.Records)
	out <- workerMessage{
		Kind:               workerValidation,
		ValidationErrors:   staticErrs,
		ValidationWarnings: staticWarnings,
	}

	if job.Options.ValidationLevel == models.ValidationStrict && len(staticErrs) > 0 {
		out <- workerMessage{Kind: workerComplete, Complete: &workerCompletePayload{
			UpdatedRows:   job.Records,
			TotalRecords:  len(job.Records),
			Summary:       abortedSummary(len(job.Records)),
			Errors:        staticErrs,
			Warnings:      staticWarnings,
		}}
		return
	}

	outcome, err := runBatch(ctx, job, mutator, validator, "worker", func(completed, total int) {
		out <- workerMessage{
			Kind:     workerProgress,
			Progress: Percentage(completed, total),
			Message:  fmt.Sprintf("processed %d of %d records", completed, total),
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			// Hard cancellation: the host observes the closed channel and
			// settles the session itself.
			return
		}
		if err == errStrictValidation {
			out <- workerMessage{Kind: workerComplete, Complete: &workerCompletePayload{
				UpdatedRows:  job.Records,
				TotalRecords: len(job.Records),
				Summary:      abortedSummary(len(job.Records)),
				Errors:       outcome.errors,
				Warnings:     outcome.warnings,
			}}
			return
		}
		out <- workerMessage{Kind: workerError, Error: err.Error()}
		return
	}

	// Static findings already went out in the validation message; the
	// complete payload carries run findings only.
	out <- workerMessage{Kind: workerComplete, Complete: &workerCompletePayload{
		UpdatedRows:   outcome.updated,
		AffectedCount: outcome.affected,
		TotalRecords:  len(job.Records),
		Summary:       outcome.summary,
		Errors:        outcome.errors,
		Warnings:      outcome.warnings,
	}}
}

func abortedSummary(total int) models.Summary {
	return models.Summary{Total: total, Skipped: total}
}
