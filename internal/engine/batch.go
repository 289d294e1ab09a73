package engine

import (
	"context"
	"errors"

	"bulkops/pkg/metrics"
	"bulkops/pkg/models"
)

// errStrictValidation aborts a strict batch before any mutation.
var errStrictValidation = errors.New("strict validation failed")

type batchOutcome struct {
	updated   []models.Record
	affected  int
	processed int
	errors    []models.OperationError
	warnings  []models.OperationError
	summary   models.Summary
	skipped   map[int]bool
}

// runBatch is the shared execution core for the direct and worker paths.
// It runs the per-record validation pre-pass, then mutates chunk by chunk.
// On cancellation it returns the context error together with the partial
// outcome: chunks already processed keep their mutations, the rest of the
// output holds the original records.
func runBatch(ctx context.Context, job workerJob, mutator *Mutator, validator *Validator, path string, onProgress ProgressFunc) (*batchOutcome, error) {
	total := len(job.Records)
	outcome := &batchOutcome{
		updated: make([]models.Record, total),
		skipped: make(map[int]bool),
	}

	// Validation pre-pass over the full set, before any mutation.
	for i, record := range job.Records {
		rowErrs := validator.RecordErrors(record, i+1, job.Operations, job.Schema)
		if len(rowErrs) == 0 {
			continue
		}
		outcome.errors = append(outcome.errors, rowErrs...)
		outcome.skipped[i] = true
	}

	if job.Options.ValidationLevel == models.ValidationStrict && len(outcome.errors) > 0 {
		copy(outcome.updated, job.Records)
		outcome.summary = abortedSummary(total)
		return outcome, errStrictValidation
	}

	chunkErr := ProcessInChunks(ctx, job.Records, job.ChunkSize, path, func(ctx context.Context, chunk []models.Record, offset int) error {
		for j, record := range chunk {
			idx := offset + j
			if outcome.skipped[idx] {
				outcome.updated[idx] = record
				metrics.RecordsProcessedTotal.WithLabelValues("skipped").Inc()
				continue
			}

			updated, changed, warnings := mutator.ApplyAll(ctx, record, job.Operations, job.Options)
			outcome.updated[idx] = updated
			outcome.warnings = append(outcome.warnings, warnings...)
			if changed {
				outcome.affected++
				metrics.RecordsProcessedTotal.WithLabelValues("mutated").Inc()
			} else {
				metrics.RecordsProcessedTotal.WithLabelValues("unchanged").Inc()
			}
		}
		outcome.processed = offset + len(chunk)
		return nil
	}, onProgress)

	if chunkErr != nil {
		for i := outcome.processed; i < total; i++ {
			if outcome.updated[i] == nil {
				outcome.updated[i] = job.Records[i]
			}
		}
		outcome.summary = partialSummary(outcome, total)
		return outcome, chunkErr
	}

	skippedCount := len(outcome.skipped)
	outcome.summary = models.Summary{
		Total:      total,
		Successful: total - skippedCount,
		Skipped:    skippedCount,
	}
	return outcome, nil
}

// partialSummary reconciles a cancelled batch: records the chunker never
// reached count as skipped so successful+failed+skipped still equals total.
func partialSummary(outcome *batchOutcome, total int) models.Summary {
	skippedInProcessed := 0
	for idx := range outcome.skipped {
		if idx < outcome.processed {
			skippedInProcessed++
		}
	}
	unreached := total - outcome.processed
	return models.Summary{
		Total:      total,
		Successful: outcome.processed - skippedInProcessed,
		Skipped:    skippedInProcessed + unreached,
	}
}
