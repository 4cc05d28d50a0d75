package syncutil

import (
	"sync"
	"time"
)

// Event is a one-shot broadcast gate. It starts unset; Set releases all
// current and future waiters. Once set it can never be reset.
type Event struct {
	mu   sync.Mutex
	set  bool
	done chan struct{}
}

// NewEvent creates an unset Event.
func NewEvent() *Event {
	return &Event{done: make(chan struct{})}
}

// Set marks the event and wakes all waiters. It returns true for the caller
// that performed the transition, false if the event was already set.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (e *Event) Set() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		return false
	}
	e.set = true
	close(e.done)
	return true
}

// IsSet reports whether the event has been set.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Wait blocks until the event is set.
func (e *Event) Wait() {
	<-e.done
}

// WaitFor blocks until the event is set or timeout elapses, and reports
// whether the event was set.
func (e *Event) WaitFor(timeout time.Duration) bool {
	select {
	case <-e.done:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.done:
		return true
	case <-timer.C:
		return false
	}
}
