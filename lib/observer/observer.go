// Package observer provides thread-safe registries of completion observers.
//
// An observer registry fans a single completion notification out to any
// number of registered observers. Two variants are provided, trading write
// cost against notification cost:
//
//   - the copy-on-write set snapshots the observer list on every mutation,
//     making Notify an iteration over an immutable slice
//   - the copy-on-notify set mutates in place and snapshots only when a
//     notification is delivered, favouring frequent add/remove churn
//
// Both variants support the one-shot NotifyAndClear used by single-assignment
// containers: observers are notified exactly once and the registry is left
// empty. Add returns a Registration token; observers are removed by token,
// so function-backed observers (which are not comparable) are fully
// supported.
package observer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Observer receives a completion notification: the completion instant, the
// produced value and the failure reason (nil on success).
type Observer[T any] interface {
	Updated(at time.Time, value T, err error)
}

// Func adapts a plain function to the Observer interface.
type Func[T any] func(at time.Time, value T, err error)

// Updated implements Observer.
func (f Func[T]) Updated(at time.Time, value T, err error) { f(at, value, err) }

// Registration identifies a registered observer within its Set.
type Registration uint64

// Set is a thread-safe registry of observers.
type Set[T any] interface {
	// Add registers an observer and returns a token for later removal.
	Add(o Observer[T]) Registration
	// Delete removes the observer identified by the token. Unknown tokens
	// are ignored.
	Delete(r Registration)
	// Count returns the number of registered observers.
	Count() int
	// Notify delivers a notification to every registered observer.
	Notify(at time.Time, value T, err error)
	// NotifyAndClear delivers a notification to every registered observer
	// exactly once and empties the registry.
	NotifyAndClear(at time.Time, value T, err error)
	// Clear removes all observers.
	Clear()
}

// registration ids are unique process-wide; sets never recycle them
var nextRegistration atomic.Uint64

type entry[T any] struct {
	reg Registration
	obs Observer[T]
}

// --------------------------------------------------------------------------
// Copy-on-write variant
// --------------------------------------------------------------------------

type copyOnWriteSet[T any] struct {
	mu      sync.Mutex
	entries []entry[T] // replaced wholesale on every mutation
}

// NewCopyOnWriteSet creates a Set optimized for frequent notification.
func NewCopyOnWriteSet[T any]() Set[T] {
	return &copyOnWriteSet[T]{}
}

func (s *copyOnWriteSet[T]) Add(o Observer[T]) Registration {
	reg := Registration(nextRegistration.Add(1))

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]entry[T], len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	s.entries = append(next, entry[T]{reg: reg, obs: o})
	return reg
}

func (s *copyOnWriteSet[T]) Delete(r Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]entry[T], 0, len(s.entries))
	for _, e := range s.entries {
		if e.reg != r {
			next = append(next, e)
		}
	}
	s.entries = next
}

func (s *copyOnWriteSet[T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *copyOnWriteSet[T]) Notify(at time.Time, value T, err error) {
	s.mu.Lock()
	snapshot := s.entries
	s.mu.Unlock()

	// the slice is immutable once published, no lock needed to iterate
	for _, e := range snapshot {
		e.obs.Updated(at, value, err)
	}
}

func (s *copyOnWriteSet[T]) NotifyAndClear(at time.Time, value T, err error) {
	s.mu.Lock()
	snapshot := s.entries
	s.entries = nil
	s.mu.Unlock()

	for _, e := range snapshot {
		e.obs.Updated(at, value, err)
	}
}

func (s *copyOnWriteSet[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// --------------------------------------------------------------------------
// Copy-on-notify variant
// --------------------------------------------------------------------------

type copyOnNotifySet[T any] struct {
	mu      sync.Mutex
	entries []entry[T] // mutated in place, copied when notifying
}

// NewCopyOnNotifySet creates a Set optimized for frequent observer churn.
func NewCopyOnNotifySet[T any]() Set[T] {
	return &copyOnNotifySet[T]{}
}

func (s *copyOnNotifySet[T]) Add(o Observer[T]) Registration {
	reg := Registration(nextRegistration.Add(1))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry[T]{reg: reg, obs: o})
	return reg
}

func (s *copyOnNotifySet[T]) Delete(r Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.reg == r {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *copyOnNotifySet[T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *copyOnNotifySet[T]) Notify(at time.Time, value T, err error) {
	for _, e := range s.snapshot(false) {
		e.obs.Updated(at, value, err)
	}
}

func (s *copyOnNotifySet[T]) NotifyAndClear(at time.Time, value T, err error) {
	for _, e := range s.snapshot(true) {
		e.obs.Updated(at, value, err)
	}
}

func (s *copyOnNotifySet[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// snapshot copies the observer list so notifications run outside the lock.
func (s *copyOnNotifySet[T]) snapshot(clear bool) []entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]entry[T], len(s.entries))
	copy(copied, s.entries)
	if clear {
		s.entries = nil
	}
	return copied
}
