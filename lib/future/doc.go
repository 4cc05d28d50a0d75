// Package future provides single-assignment value containers and the
// deferred computations built on top of them.
//
//   - IVar[T]: a thread-safe, write-once cell with blocking retrieval,
//     timeouts and completion observers
//   - Future[T]: an IVar whose computation runs at most once on an executor
//     after Execute
//   - Delay[T]: a memoized at-most-once computation, evaluated lazily either
//     on the first caller's goroutine or on an executor
//   - RunSafely: the task boundary that converts errors and panics into a
//     structured result
//
// State machine: a container starts Pending (Unscheduled for a Future before
// Execute), transitions exactly once to Fulfilled with a value or Rejected
// with a reason, and never transitions again. A second completion attempt
// fails with ErrMultipleAssignment. Failures inside a computation never
// escape the executing goroutine; they are captured as the rejection reason
// and re-surfaced to callers of Value.
package future
