package future

import "errors"

var (
	// ErrMultipleAssignment is returned when completing a container that has
	// already been completed. This is a programming error on the caller's
	// side, reported immediately rather than silently ignored.
	ErrMultipleAssignment = errors.New("future: already completed, a value can only be assigned once")

	// ErrTimeout is returned by bounded waits that elapse before completion.
	// The underlying computation is left in flight; this is a cooperative
	// timeout on the waiting side only.
	ErrTimeout = errors.New("future: timed out waiting for completion")

	// ErrTaskPanic wraps a panic recovered at the task boundary.
	ErrTaskPanic = errors.New("future: task panicked")

	// ErrRejected is the reason recorded when Fail is called with a nil
	// error.
	ErrRejected = errors.New("future: rejected")
)
