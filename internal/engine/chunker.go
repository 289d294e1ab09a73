package engine

import (
	"context"
	"runtime"
	"time"

	"bulkops/pkg/metrics"
	"bulkops/pkg/models"
)

// ChunkFunc processes one contiguous chunk. offset is the index of the
// chunk's first record within the full set.
type ChunkFunc func(ctx context.Context, chunk []models.Record, offset int) error

// ProgressFunc receives the running completed count after each chunk.
type ProgressFunc func(completed, total int)

// AdaptiveChunkSize picks a chunk size for a dataset: roughly a twentieth
// of the input so progress stays responsive, clamped to the configured
// bounds so per-chunk overhead stays amortized on large sets.
func AdaptiveChunkSize(total, min, max int) int {
	if min <= 0 {
		min = 1
	}
	if max < min {
		max = min
	}
	size := total / 20
	if size < min {
		return min
	}
	if size > max {
		return max
	}
	return size
}

// ProcessInChunks splits records into contiguous chunks of chunkSize and
// runs fn on each. Between chunks control is yielded to the scheduler so a
// long batch never monopolizes the host. Cancellation is honored at chunk
// boundaries only: a chunk that has started runs to completion, which means
// chunkSize bounds the worst-case cancellation latency.
func ProcessInChunks(ctx context.Context, records []models.Record, chunkSize int, path string, fn ChunkFunc, onProgress ProgressFunc) error {
	if chunkSize <= 0 {
		chunkSize = 1
	}

	total := len(records)
	for offset := 0; offset < total; offset += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := offset + chunkSize
		if end > total {
			end = total
		}

		start := time.Now()
		if err := fn(ctx, records[offset:end], offset); err != nil {
			return err
		}
		metrics.ObserveChunk(path, time.Since(start))

		if onProgress != nil {
			onProgress(end, total)
		}

		// Zero-delay suspension point between chunks.
		runtime.Gosched()
	}

	return nil
}

// Percentage converts a completed/total pair into the canonical progress
// value: min(completed/total, 1) * 100, monotone by construction.
func Percentage(completed, total int) float64 {
	if total <= 0 {
		return 100
	}
	ratio := float64(completed) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	return ratio * 100
}
