package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bulkops/pkg/errors"
	"bulkops/pkg/models"
)

// Session tracks the lifecycle and progress of one bulk operation. It is an
// explicit object owned by the caller; there is no ambient global state.
// Progress can be consumed by polling Progress() or by subscribing to
// Events(). Emission to subscribers is throttled; the terminal event and
// the 100% event are always delivered.
type Session struct {
	mu       sync.Mutex
	state    models.OperationState
	progress models.OperationProgress
	result   *models.OperationResult

	events  chan models.OperationProgress
	limiter *rate.Limiter

	cancel context.CancelFunc
}

// NewSession creates an idle session. progressInterval throttles event
// emission; zero disables throttling.
func NewSession(progressInterval time.Duration) *Session {
	s := &Session{
		state:  models.StateIdle,
		events: make(chan models.OperationProgress, 64),
	}
	if progressInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(progressInterval), 1)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() models.OperationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns a snapshot for polling consumers.
func (s *Session) Progress() models.OperationProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Result returns the terminal result, or nil while the session is not in a
// terminal state.
func (s *Session) Result() *models.OperationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Events exposes the progress stream for subscription consumers. The
// channel is closed when the session reaches a terminal state.
func (s *Session) Events() <-chan models.OperationProgress {
	return s.events
}

// Cancel requests cancellation of the in-flight operation. Mutations
// already applied remain applied; the engine does not roll back.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset returns a terminal session to idle and clears progress and results.
// Resetting a processing session is a conflict.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == models.StateProcessing {
		return errors.ErrConflict.WithMessage("cannot reset a processing session")
	}
	if s.state != models.StateIdle {
		// The old event channel was closed at the terminal transition.
		s.events = make(chan models.OperationProgress, 64)
	}
	s.state = models.StateIdle
	s.progress = models.OperationProgress{}
	s.result = nil
	s.cancel = nil
	return nil
}

// begin transitions Idle -> Processing. A second begin while processing is
// rejected; the engine never interleaves two batches on one session.
func (s *Session) begin(ctx context.Context, total int, step string) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == models.StateProcessing {
		return nil, errors.ErrConflict.WithMessage("an operation is already in progress on this session")
	}
	if s.state.Terminal() {
		return nil, errors.ErrConflict.WithMessage("session must be reset before reuse")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = models.StateProcessing
	s.progress = models.OperationProgress{
		Total:       total,
		CurrentStep: step,
	}
	return runCtx, nil
}

// report updates the progress snapshot and emits to subscribers, rate
// limited except for the 100% event.
func (s *Session) report(completed int, step string, errs, warnings []models.OperationError) {
	s.mu.Lock()

	if completed > s.progress.Completed {
		s.progress.Completed = completed
	}
	s.progress.Percentage = Percentage(s.progress.Completed, s.progress.Total)
	if step != "" {
		s.progress.CurrentStep = step
	}
	s.progress.Errors = append(s.progress.Errors, errs...)
	s.progress.Warnings = append(s.progress.Warnings, warnings...)

	snapshot := s.progress
	force := snapshot.Percentage >= 100
	s.mu.Unlock()

	if !force && s.limiter != nil && !s.limiter.Allow() {
		return
	}
	s.emit(snapshot)
}

// reportPercent updates progress from a worker-relayed percentage.
func (s *Session) reportPercent(percentage float64, step string) {
	s.mu.Lock()
	if percentage > s.progress.Percentage {
		s.progress.Percentage = percentage
		if s.progress.Total > 0 {
			completed := int(percentage / 100 * float64(s.progress.Total))
			if completed > s.progress.Completed {
				s.progress.Completed = completed
			}
		}
	}
	if step != "" {
		s.progress.CurrentStep = step
	}
	snapshot := s.progress
	force := snapshot.Percentage >= 100
	s.mu.Unlock()

	if !force && s.limiter != nil && !s.limiter.Allow() {
		return
	}
	s.emit(snapshot)
}

func (s *Session) emit(snapshot models.OperationProgress) {
	select {
	case s.events <- snapshot:
	default:
		// Slow subscriber: drop the intermediate snapshot. The terminal
		// transition still closes the channel after a final event.
	}
}

// finish moves the session to a terminal state and closes the event stream.
func (s *Session) finish(state models.OperationState, result *models.OperationResult) {
	s.mu.Lock()
	if s.state != models.StateProcessing {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.result = result
	if state == models.StateCompleted {
		s.progress.Completed = s.progress.Total
		s.progress.Percentage = 100
	}
	snapshot := s.progress
	events := s.events
	s.cancel = nil
	s.mu.Unlock()

	s.emit(snapshot)
	close(events)
}
