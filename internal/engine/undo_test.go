package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkops/pkg/models"
)

func TestBuildUndoEntryDiffsOnlyChangedFields(t *testing.T) {
	before := []models.Record{
		{"id": "v1", "status": "idle", "capacity": float64(10)},
		{"id": "v2", "status": "idle"},
	}
	after := []models.Record{
		{"id": "v1", "status": "active", "capacity": float64(10)},
		{"id": "v2", "status": "idle"},
	}

	entry := BuildUndoEntry("op-1", "bulk status change", before, after)
	require.Len(t, entry.Affected, 1, "unchanged records contribute nothing")

	affected := entry.Affected[0]
	assert.Equal(t, "v1", affected.ID)
	assert.Equal(t, map[string]interface{}{"status": "idle"}, affected.OriginalValues)
	assert.Equal(t, map[string]interface{}{"status": "active"}, affected.NewValues)
	assert.Equal(t, "op-1", entry.OperationID)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestBuildUndoEntryTracksRemovedFields(t *testing.T) {
	before := []models.Record{{"id": "v1", "notes": "temp"}}
	after := []models.Record{{"id": "v1"}}

	entry := BuildUndoEntry("op-2", "", before, after)
	require.Len(t, entry.Affected, 1)
	assert.Equal(t, "temp", entry.Affected[0].OriginalValues["notes"])
}

func TestUndoLedgerEvictsOldestAtDepth(t *testing.T) {
	ledger := NewUndoLedger(3)
	for i := 0; i < 5; i++ {
		ledger.Append(models.UndoEntry{OperationID: fmt.Sprintf("op-%d", i)})
	}

	assert.Equal(t, 3, ledger.Len())
	entries := ledger.Entries()
	assert.Equal(t, "op-2", entries[0].OperationID, "oldest entries are evicted first")
	assert.Equal(t, "op-4", entries[2].OperationID)
}

func TestUndoLedgerPopIsLIFO(t *testing.T) {
	ledger := NewUndoLedger(5)
	ledger.Append(models.UndoEntry{OperationID: "first"})
	ledger.Append(models.UndoEntry{OperationID: "second"})

	entry, ok := ledger.Pop()
	require.True(t, ok)
	assert.Equal(t, "second", entry.OperationID)

	entry, ok = ledger.Pop()
	require.True(t, ok)
	assert.Equal(t, "first", entry.OperationID)

	_, ok = ledger.Pop()
	assert.False(t, ok)
}

func TestRevertAppliesOriginalValues(t *testing.T) {
	ledger := NewUndoLedger(5)
	entry := models.UndoEntry{
		OperationID: "op-1",
		Affected: []models.UndoRecord{
			{ID: "v1", OriginalValues: map[string]interface{}{"status": "idle"}},
			{ID: "v2", OriginalValues: map[string]interface{}{"status": "repair"}},
		},
	}

	store := map[string]models.Record{
		"v1": {"id": "v1", "status": "active"},
		"v2": {"id": "v2", "status": "active"},
	}
	err := ledger.Revert(context.Background(), entry, func(ctx context.Context, recordID string, originalValues map[string]interface{}) error {
		record, ok := store[recordID]
		if !ok {
			return fmt.Errorf("unknown record %s", recordID)
		}
		for field, value := range originalValues {
			record.Set(field, value)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "idle", store["v1"]["status"])
	assert.Equal(t, "repair", store["v2"]["status"])
}

func TestRevertStopsAtFirstFailure(t *testing.T) {
	ledger := NewUndoLedger(5)
	entry := models.UndoEntry{
		Affected: []models.UndoRecord{
			{ID: "v1", OriginalValues: map[string]interface{}{}},
			{ID: "v2", OriginalValues: map[string]interface{}{}},
			{ID: "v3", OriginalValues: map[string]interface{}{}},
		},
	}

	var applied []string
	err := ledger.Revert(context.Background(), entry, func(ctx context.Context, recordID string, originalValues map[string]interface{}) error {
		if recordID == "v2" {
			return fmt.Errorf("store rejected write")
		}
		applied = append(applied, recordID)
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "v2")
	assert.Equal(t, []string{"v1"}, applied)
}
