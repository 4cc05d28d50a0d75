// Package clock provides a monotonic time source for interval and deadline
// arithmetic.
//
// Wall-clock time (time.Now compared as absolute instants) can jump backwards
// when the system clock is adjusted, which breaks deadline math in schedulers.
// A Clock measures elapsed time against a fixed epoch using Go's monotonic
// clock reading, so the value it returns never decreases.
package clock

import "time"

// Clock is a never-decreasing time source. The zero value is not usable;
// create instances with New.
type Clock struct {
	epoch time.Time
}

// New creates a Clock whose epoch is the moment of the call.
func New() *Clock {
	return &Clock{epoch: time.Now()}
}

// Now returns the time elapsed since the clock's epoch.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (c *Clock) Now() time.Duration {
	return time.Since(c.epoch)
}

// Deadline returns the monotonic instant that lies delay in the future.
func (c *Clock) Deadline(delay time.Duration) time.Duration {
	return c.Now() + delay
}

// default process-wide clock, shared by all packages that only need relative
// ordering of instants
var defaultClock = New()

// Monotonic returns the elapsed time on the process-wide default clock.
func Monotonic() time.Duration {
	return defaultClock.Now()
}
