package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkops/pkg/errors"
	"bulkops/pkg/models"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSession(0)
	assert.Equal(t, models.StateIdle, s.State())

	_, err := s.begin(context.Background(), 10, "validating")
	require.NoError(t, err)
	assert.Equal(t, models.StateProcessing, s.State())

	s.finish(models.StateCompleted, &models.OperationResult{Success: true})
	assert.Equal(t, models.StateCompleted, s.State())
	require.NotNil(t, s.Result())
	assert.True(t, s.Result().Success)

	progress := s.Progress()
	assert.Equal(t, float64(100), progress.Percentage)
}

func TestSessionRejectsConcurrentBegin(t *testing.T) {
	s := NewSession(0)
	_, err := s.begin(context.Background(), 5, "validating")
	require.NoError(t, err)

	_, err = s.begin(context.Background(), 5, "validating")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestSessionTerminalRequiresReset(t *testing.T) {
	s := NewSession(0)
	_, err := s.begin(context.Background(), 1, "validating")
	require.NoError(t, err)
	s.finish(models.StateError, &models.OperationResult{})

	_, err = s.begin(context.Background(), 1, "validating")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	require.NoError(t, s.Reset())
	assert.Equal(t, models.StateIdle, s.State())
	assert.Nil(t, s.Result())

	_, err = s.begin(context.Background(), 1, "validating")
	assert.NoError(t, err)
}

func TestSessionResetWhileProcessingIsConflict(t *testing.T) {
	s := NewSession(0)
	_, err := s.begin(context.Background(), 1, "validating")
	require.NoError(t, err)

	err = s.Reset()
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestSessionCancelStopsRunContext(t *testing.T) {
	s := NewSession(0)
	runCtx, err := s.begin(context.Background(), 1, "validating")
	require.NoError(t, err)

	s.Cancel()
	assert.ErrorIs(t, runCtx.Err(), context.Canceled)
}

func TestSessionProgressIsMonotone(t *testing.T) {
	s := NewSession(0)
	_, err := s.begin(context.Background(), 10, "applying")
	require.NoError(t, err)

	s.report(4, "applying", nil, nil)
	s.report(2, "applying", nil, nil) // stale update must not move progress back
	assert.Equal(t, 4, s.Progress().Completed)

	s.report(10, "applying", nil, nil)
	assert.Equal(t, float64(100), s.Progress().Percentage)
}

func TestSessionEventsCloseAtTerminal(t *testing.T) {
	s := NewSession(0)
	_, err := s.begin(context.Background(), 2, "applying")
	require.NoError(t, err)

	s.report(1, "applying", nil, nil)
	s.report(2, "applying", nil, nil)
	s.finish(models.StateCompleted, &models.OperationResult{})

	var snapshots []models.OperationProgress
	for progress := range s.Events() {
		snapshots = append(snapshots, progress)
	}
	require.NotEmpty(t, snapshots)

	last := snapshots[len(snapshots)-1]
	assert.Equal(t, float64(100), last.Percentage)
	for i := 1; i < len(snapshots); i++ {
		assert.GreaterOrEqual(t, snapshots[i].Completed, snapshots[i-1].Completed)
	}
}
