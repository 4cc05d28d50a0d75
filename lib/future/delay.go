package future

import (
	"sync"
	"time"

	"github.com/riddopic/garcun/lib/executor"
	"github.com/riddopic/garcun/lib/syncutil"
)

// Delay is a deferred, memoized, at-most-once computation. Without an
// executor the first caller of Value runs the task on its own goroutine;
// with an executor the first demand posts the task once. Either way the
// result - value or failure - is cached and later calls never recompute.
type Delay[T any] struct {
	mu        sync.Mutex
	task      func() (T, error)
	exec      executor.Executor // nil: compute on the demanding goroutine
	computing bool              // guards against duplicate scheduling

	done   *syncutil.Event
	value  T
	reason error
}

// NewDelay creates a Delay that computes synchronously on the goroutine of
// the first Value caller.
func NewDelay[T any](task func() (T, error)) *Delay[T] {
	return &Delay[T]{
		task: task,
		done: syncutil.NewEvent(),
	}
}

// NewDelayWithExecutor creates a Delay whose task is posted to exec on
// first demand.
func NewDelayWithExecutor[T any](task func() (T, error), exec executor.Executor) *Delay[T] {
	return &Delay[T]{
		task: task,
		exec: exec,
		done: syncutil.NewEvent(),
	}
}

// Value demands the result, computing it on first call, and blocks until
// it is available or timeout elapses. Failures captured from the task are
// returned as the error; a timeout returns ErrTimeout and leaves the
// computation in flight.
//
// Thread-safety: this method is thread-safe; concurrent first demands
// compute the task exactly once.
func (d *Delay[T]) Value(timeout time.Duration) (T, error) {
	d.demand()

	var zero T
	if !d.done.WaitFor(timeout) {
		return zero, ErrTimeout
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reason != nil {
		return zero, d.reason
	}
	return d.value, nil
}

// Wait demands the result and blocks until it is available or timeout
// elapses, reporting whether the computation completed in time.
func (d *Delay[T]) Wait(timeout time.Duration) bool {
	d.demand()
	return d.done.WaitFor(timeout)
}

// Reason returns the captured failure, or nil if the task has not failed
// (or not run yet).
func (d *Delay[T]) Reason() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

// Computed reports whether the result is available.
func (d *Delay[T]) Computed() bool {
	return d.done.IsSet()
}

// demand schedules the computation exactly once.
func (d *Delay[T]) demand() {
	d.mu.Lock()
	if d.computing || d.done.IsSet() {
		d.mu.Unlock()
		return
	}
	d.computing = true
	d.mu.Unlock()

	if d.exec == nil {
		d.run()
		return
	}
	if accepted, err := d.exec.Post(d.run); !accepted {
		if err == nil {
			err = executor.ErrRejected
		}
		d.finish(TaskResult[T]{Err: err})
	}
}

func (d *Delay[T]) run() {
	d.finish(RunSafely(d.task))
}

func (d *Delay[T]) finish(result TaskResult[T]) {
	d.mu.Lock()
	d.value = result.Value
	d.reason = result.Err
	d.task = nil // the computation never runs again; release it
	d.mu.Unlock()

	d.done.Set()
}
