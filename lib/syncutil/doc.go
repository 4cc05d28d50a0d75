// Package syncutil provides the blocking synchronization primitives the
// toolkit is composed from.
//
//   - Condition: a condition variable with timed waits that report a
//     structured result (woken vs timed out, with remaining time)
//   - Event: a one-shot broadcast gate
//   - CountDownLatch: a counter that releases waiters when it reaches zero
//   - ReadWriteLock: a reader/writer lock with writer-starvation avoidance
//
// All primitives block the calling goroutine; there is no polling. Timed
// waits are cooperative timeouts on the waiting side only and never cancel
// whatever operation the waiter was waiting for.
package syncutil
