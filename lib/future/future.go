package future

import (
	"github.com/riddopic/garcun/lib/executor"
	"github.com/riddopic/garcun/lib/runtime"
)

// Future is an IVar whose value is produced by a task posted to an
// executor. It is created Unscheduled; Execute claims the transition to
// Pending exactly once and posts the computation. All IVar read methods
// (Value, WaitFor, AddObserver, ...) are available on the Future.
type Future[T any] struct {
	*IVar[T]
	task func() (T, error)
	exec executor.Executor
}

// FutureOption customizes a Future at construction.
type FutureOption func(*futureOpts)

type futureOpts struct {
	exec executor.Executor
}

// WithExecutor runs the future's task on the given executor instead of the
// shared IO pool.
func WithExecutor(exec executor.Executor) FutureOption {
	return func(o *futureOpts) { o.exec = exec }
}

// NewFuture creates an Unscheduled Future wrapping task. The task does not
// run until Execute is called.
func NewFuture[T any](task func() (T, error), opts ...FutureOption) *Future[T] {
	var o futureOpts
	for _, opt := range opts {
		opt(&o)
	}
	if o.exec == nil {
		o.exec = runtime.Default().IOExecutor()
	}
	return &Future[T]{
		IVar: newUnscheduledIVar[T](),
		task: task,
		exec: o.exec,
	}
}

// Execute posts the task to the executor. Only the first call has any
// effect; the task runs at most once. It returns the Future for chaining.
func (f *Future[T]) Execute() *Future[T] {
	if !f.transition(Unscheduled, Pending) {
		return f
	}

	accepted, err := f.exec.Post(func() {
		result := RunSafely(f.task)
		f.complete(result.OK, result.Value, result.Err)
	})
	if !accepted {
		// a rejected or discarded post can never fulfill the future
		if err == nil {
			err = executor.ErrRejected
		}
		var zero T
		f.complete(false, zero, err)
	}
	return f
}

// Execute creates a Future and immediately schedules it.
func Execute[T any](task func() (T, error), opts ...FutureOption) *Future[T] {
	return NewFuture(task, opts...).Execute()
}
