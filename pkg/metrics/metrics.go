package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkops_operations_total",
			Help: "Bulk operations by kind and terminal state",
		},
		[]string{"kind", "state"},
	)

	RecordsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkops_records_processed_total",
			Help: "Records processed by outcome",
		},
		[]string{"outcome"},
	)

	ChunkDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulkops_chunk_duration_seconds",
			Help:    "Per-chunk processing duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	DuplicateMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkops_duplicate_matches_total",
			Help: "Duplicate matches by detection kind",
		},
		[]string{"kind"},
	)

	ExportRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkops_export_rows_total",
			Help: "Rows written across all exports",
		},
	)

	UndoLedgerDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulkops_undo_ledger_depth",
			Help: "Entries currently held in the undo ledger",
		},
	)
)

var registerOnce sync.Once

// Register installs all engine collectors on the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OperationsTotal,
			RecordsProcessedTotal,
			ChunkDurationSeconds,
			DuplicateMatchesTotal,
			ExportRowsTotal,
			UndoLedgerDepth,
		)
	})
}

// ObserveChunk records one chunk's processing duration for the given
// execution path ("direct" or "worker").
func ObserveChunk(path string, duration time.Duration) {
	ChunkDurationSeconds.WithLabelValues(path).Observe(duration.Seconds())
}
