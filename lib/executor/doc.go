// Package executor implements the worker-pool engine of the toolkit.
//
// A ThreadPoolExecutor owns a bounded or unbounded FIFO task queue and a set
// of worker goroutines that grows and shrinks between a configured minimum
// and maximum. Tasks are accepted with Post; when the pool cannot accept a
// task (queue saturated or pool no longer running) a configurable fallback
// policy decides whether the call fails, the task is dropped, or the task
// runs synchronously on the calling goroutine.
//
// Workers never die from a task failure: panics are recovered, logged and
// counted. Shutdown drains the queue before stopping workers; Kill discards
// queued work immediately. Both are terminal - a stopped pool cannot be
// restarted.
//
// FixedThreadPool and CachedThreadPool are thin configuration presets over
// the same engine, mirroring the classic executor service shapes.
package executor
