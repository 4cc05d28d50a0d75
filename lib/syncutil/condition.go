package syncutil

import (
	"sync"
	"time"
)

// Result describes how a Condition wait returned. A fresh Result is created
// on every wait return.
type Result struct {
	// Remaining is the time that was left of the wait budget when the waiter
	// woke up, or nil for an unbounded wait.
	Remaining *time.Duration
}

// WokenUp reports whether the waiter was woken by a signal or broadcast.
// True iff Remaining is nil or greater than zero.
func (r Result) WokenUp() bool {
	return r.Remaining == nil || *r.Remaining > 0
}

// TimedOut is the complement of WokenUp.
func (r Result) TimedOut() bool {
	return !r.WokenUp()
}

// Condition is a condition variable bound to an external sync.Locker,
// supporting timed waits. Unlike sync.Cond, a wait can be bounded and
// reports whether it was woken or timed out.
//
// Waiters are queued FIFO: Signal wakes the longest-waiting goroutine.
// The caller must hold the associated locker around Wait/WaitFor, exactly
// as with sync.Cond.
type Condition struct {
	l sync.Locker

	// guards waiters; each waiter owns a channel that is closed to wake it
	mu      sync.Mutex
	waiters []chan struct{}
}

// NewCondition creates a Condition bound to l.
func NewCondition(l sync.Locker) *Condition {
	return &Condition{l: l}
}

// Wait blocks until the condition is signalled or broadcast. The associated
// locker is released while waiting and re-acquired before returning.
//
// Thread-safety: this method is thread-safe; any number of goroutines may
// wait concurrently.
func (c *Condition) Wait() Result {
	ch := c.enqueue()

	c.l.Unlock()
	defer c.l.Lock()

	<-ch
	return Result{}
}

// WaitFor blocks like Wait but gives up after timeout. The returned Result
// reports whether the waiter was woken (with the remaining budget) or the
// timeout elapsed.
func (c *Condition) WaitFor(timeout time.Duration) Result {
	ch := c.enqueue()

	c.l.Unlock()
	defer c.l.Lock()

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			// woken right at the deadline; a consumed signal must not be
			// reported as a timeout
			remaining = time.Nanosecond
		}
		return Result{Remaining: &remaining}
	case <-timer.C:
		if c.remove(ch) {
			var zero time.Duration
			return Result{Remaining: &zero}
		}
		// a signal raced the timer and already claimed this waiter
		<-ch
		remaining := time.Nanosecond
		return Result{Remaining: &remaining}
	}
}

// Signal wakes the longest-waiting goroutine, if any. Signals are not
// queued: signalling with no waiter present is a no-op.
func (c *Condition) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 {
		return
	}
	close(c.waiters[0])
	c.waiters = c.waiters[1:]
}

// Broadcast wakes all current waiters.
func (c *Condition) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
}

func (c *Condition) enqueue() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan struct{})
	c.waiters = append(c.waiters, ch)
	return ch
}

// remove unregisters a timed-out waiter. It returns false if the waiter has
// already been claimed by a signal or broadcast.
func (c *Condition) remove(ch chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}
