package pool

import "time"

// CompletionEvent is the single latching signal the scheduler waits on
// between ticks: any pool completion (coding or testing) wakes it, and
// concurrent completions coalesce into a single wake instead of queuing —
// the scheduler recomputes readiness from a fresh catalog Snapshot on every
// wake anyway, so a queued second wake would be redundant. Grounded on the
// teacher's EventEmitter.Emit, which uses the same non-blocking
// send-or-drop idiom on a buffered channel.
type CompletionEvent struct {
	ch chan struct{}
}

// NewCompletionEvent returns a cleared CompletionEvent.
func NewCompletionEvent() *CompletionEvent {
	return &CompletionEvent{ch: make(chan struct{}, 1)}
}

// Signal wakes one pending Wait call, or leaves the event latched if none
// is currently waiting. Safe to call from any number of goroutines.
func (e *CompletionEvent) Signal() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until Signal has been called since the last successful Wait,
// or timeout elapses. It returns true if a signal was observed, false on
// timeout. Only the scheduler loop should call Wait — the event is cleared
// by whichever call observes it.
func (e *CompletionEvent) Wait(timeout time.Duration) bool {
	select {
	case <-e.ch:
		return true
	case <-time.After(timeout):
		return false
	}
}
