package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bulkops/pkg/metrics"
	"bulkops/pkg/models"
)

// UndoLedger is a bounded append-only stack of reversible mutation batches.
// Entries are appended only after a batch reaches the completed state; when
// the depth limit is hit the oldest entry is evicted first.
type UndoLedger struct {
	mu      sync.Mutex
	depth   int
	entries []models.UndoEntry
}

func NewUndoLedger(depth int) *UndoLedger {
	if depth <= 0 {
		depth = 20
	}
	return &UndoLedger{
		depth:   depth,
		entries: make([]models.UndoEntry, 0, depth),
	}
}

// Append records one completed batch. Entries are whole or absent, never
// partially written.
func (l *UndoLedger) Append(entry models.UndoEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= l.depth {
		l.entries = l.entries[1:]
	}
	l.entries = append(l.entries, entry)
	metrics.UndoLedgerDepth.Set(float64(len(l.entries)))
}

// Pop removes and returns the most recent entry.
func (l *UndoLedger) Pop() (models.UndoEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return models.UndoEntry{}, false
	}
	entry := l.entries[len(l.entries)-1]
	l.entries = l.entries[:len(l.entries)-1]
	metrics.UndoLedgerDepth.Set(float64(len(l.entries)))
	return entry, true
}

// Entries returns a copy of the ledger, oldest first.
func (l *UndoLedger) Entries() []models.UndoEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.UndoEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the current ledger depth.
func (l *UndoLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RevertFunc applies a record's original values back to the caller's store.
type RevertFunc func(ctx context.Context, recordID string, originalValues map[string]interface{}) error

// Revert walks an entry's affected records and hands each one's original
// values to the caller-supplied apply routine. It stops at the first
// failure so the caller can see exactly how far the reversal got.
func (l *UndoLedger) Revert(ctx context.Context, entry models.UndoEntry, apply RevertFunc) error {
	for _, affected := range entry.Affected {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := apply(ctx, affected.ID, affected.OriginalValues); err != nil {
			return fmt.Errorf("revert record %s: %w", affected.ID, err)
		}
	}
	return nil
}

// BuildUndoEntry diffs before/after record pairs into an undo entry.
// Records with no differing fields contribute nothing.
func BuildUndoEntry(operationID, description string, before, after []models.Record) models.UndoEntry {
	entry := models.UndoEntry{
		OperationID: operationID,
		Timestamp:   time.Now().UTC(),
		Description: description,
	}

	for i := range after {
		if i >= len(before) {
			break
		}
		diff := diffRecords(before[i], after[i])
		if diff == nil {
			continue
		}
		entry.Affected = append(entry.Affected, *diff)
	}
	return entry
}

func diffRecords(before, after models.Record) *models.UndoRecord {
	original := make(map[string]interface{})
	updated := make(map[string]interface{})

	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	for k := range keys {
		oldValue, hadOld := before[k]
		newValue, hasNew := after[k]
		if hadOld && hasNew && models.ValuesEqual(oldValue, newValue) {
			continue
		}
		if !hadOld && !hasNew {
			continue
		}
		original[k] = oldValue
		updated[k] = newValue
	}

	if len(original) == 0 {
		return nil
	}
	return &models.UndoRecord{
		ID:             before.ID(),
		OriginalValues: original,
		NewValues:      updated,
	}
}
