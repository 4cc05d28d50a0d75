package future

import (
	"sync"
	"time"

	"github.com/riddopic/garcun/lib/observer"
	"github.com/riddopic/garcun/lib/syncutil"
)

// State is the lifecycle position of a single-assignment container.
type State int32

const (
	// Unscheduled is the initial state of a Future before Execute.
	Unscheduled State = iota
	// Pending means the value has not been assigned yet.
	Pending
	// Fulfilled is terminal: a value was assigned.
	Fulfilled
	// Rejected is terminal: a failure reason was assigned.
	Rejected
)

func (s State) String() string {
	switch s {
	case Unscheduled:
		return "unscheduled"
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// IVar is a single-assignment, thread-safe value container. It starts
// Pending and is completed exactly once with either a value (Fulfilled) or
// a reason (Rejected); all blocked readers are then released and registered
// observers notified exactly once.
type IVar[T any] struct {
	mu        sync.Mutex
	state     State
	value     T
	reason    error
	done      *syncutil.Event
	observers observer.Set[T]
}

// NewIVar creates a Pending IVar.
func NewIVar[T any]() *IVar[T] {
	return &IVar[T]{
		state:     Pending,
		done:      syncutil.NewEvent(),
		observers: observer.NewCopyOnWriteSet[T](),
	}
}

// newUnscheduledIVar is the Future starting point.
func newUnscheduledIVar[T any]() *IVar[T] {
	iv := NewIVar[T]()
	iv.state = Unscheduled
	return iv
}

// State returns the current lifecycle state.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (iv *IVar[T]) State() State {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.state
}

// Pending reports whether the container is not yet complete.
func (iv *IVar[T]) Pending() bool {
	s := iv.State()
	return s == Pending || s == Unscheduled
}

// Unscheduled reports whether the container is a Future whose task has not
// been scheduled yet.
func (iv *IVar[T]) Unscheduled() bool { return iv.State() == Unscheduled }

// Fulfilled reports whether a value was assigned.
func (iv *IVar[T]) Fulfilled() bool { return iv.State() == Fulfilled }

// Rejected reports whether a failure reason was assigned.
func (iv *IVar[T]) Rejected() bool { return iv.State() == Rejected }

// Complete reports whether the container reached a terminal state.
func (iv *IVar[T]) Complete() bool {
	s := iv.State()
	return s == Fulfilled || s == Rejected
}

// Set fulfills the IVar with value. It returns ErrMultipleAssignment if the
// IVar is already complete.
func (iv *IVar[T]) Set(value T) error {
	return iv.complete(true, value, nil)
}

// Fail rejects the IVar with reason (ErrRejected if nil). It returns
// ErrMultipleAssignment if the IVar is already complete.
func (iv *IVar[T]) Fail(reason error) error {
	if reason == nil {
		reason = ErrRejected
	}
	var zero T
	return iv.complete(false, zero, reason)
}

// complete is the single transition point to a terminal state. Both Set and
// Fail route through it, as does the executor-side completion of a Future.
func (iv *IVar[T]) complete(success bool, value T, reason error) error {
	iv.mu.Lock()
	if iv.state == Fulfilled || iv.state == Rejected {
		iv.mu.Unlock()
		return ErrMultipleAssignment
	}
	if success {
		iv.state = Fulfilled
		iv.value = value
	} else {
		iv.state = Rejected
		iv.reason = reason
	}
	iv.mu.Unlock()

	iv.done.Set()
	iv.observers.NotifyAndClear(time.Now(), value, reason)
	return nil
}

// transition moves from one non-terminal state to another, compare-and-set
// style. Used by Future to claim the unscheduled -> pending edge.
func (iv *IVar[T]) transition(from, to State) bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	if iv.state != from {
		return false
	}
	iv.state = to
	return true
}

// Wait blocks until the IVar is complete.
func (iv *IVar[T]) Wait() {
	iv.done.Wait()
}

// WaitFor blocks until the IVar is complete or timeout elapses, reporting
// whether it completed in time.
func (iv *IVar[T]) WaitFor(timeout time.Duration) bool {
	return iv.done.WaitFor(timeout)
}

// Value blocks until completion or timeout. It returns the fulfilled value,
// or the zero value together with the rejection reason or ErrTimeout.
func (iv *IVar[T]) Value(timeout time.Duration) (T, error) {
	var zero T
	if !iv.done.WaitFor(timeout) {
		return zero, ErrTimeout
	}

	iv.mu.Lock()
	defer iv.mu.Unlock()
	if iv.state == Rejected {
		return zero, iv.reason
	}
	return iv.value, nil
}

// Reason returns the rejection reason, or nil while pending or fulfilled.
func (iv *IVar[T]) Reason() error {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.reason
}

// AddObserver registers o for completion notification. If the IVar is
// already complete, o is notified immediately on the calling goroutine.
func (iv *IVar[T]) AddObserver(o observer.Observer[T]) observer.Registration {
	iv.mu.Lock()
	if iv.state == Fulfilled || iv.state == Rejected {
		value, reason := iv.value, iv.reason
		iv.mu.Unlock()
		o.Updated(time.Now(), value, reason)
		return 0
	}
	defer iv.mu.Unlock()
	return iv.observers.Add(o)
}
