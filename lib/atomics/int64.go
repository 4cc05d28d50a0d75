package atomics

import "sync/atomic"

// Int64 is an atomic 64-bit integer with CAS-retry update helpers.
// The zero value is 0 and ready to use.
type Int64 struct {
	v atomic.Int64
}

// NewInt64 creates an Int64 holding the given initial value.
func NewInt64(value int64) *Int64 {
	i := &Int64{}
	i.v.Store(value)
	return i
}

// Get returns the current value.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (i *Int64) Get() int64 {
	return i.v.Load()
}

// Set stores a new value.
func (i *Int64) Set(value int64) {
	i.v.Store(value)
}

// GetAndSet stores value and returns the previous value.
func (i *Int64) GetAndSet(value int64) int64 {
	return i.v.Swap(value)
}

// CompareAndSet stores next if the current value equals expected.
func (i *Int64) CompareAndSet(expected, next int64) bool {
	return i.v.CompareAndSwap(expected, next)
}

// Add atomically adds delta and returns the new value.
func (i *Int64) Add(delta int64) int64 {
	return i.v.Add(delta)
}

// Increment is shorthand for Add(1).
func (i *Int64) Increment() int64 {
	return i.v.Add(1)
}

// Decrement is shorthand for Add(-1).
func (i *Int64) Decrement() int64 {
	return i.v.Add(-1)
}

// UpdateAndGet applies fn to the current value in a CAS retry loop until the
// update wins, then returns the value fn produced. fn may be invoked multiple
// times under contention and must be side-effect free.
func (i *Int64) UpdateAndGet(fn func(current int64) int64) int64 {
	for {
		current := i.v.Load()
		next := fn(current)
		if i.v.CompareAndSwap(current, next) {
			return next
		}
	}
}

// SetIfGreater stores value only if it is greater than the current value.
// Used for high-water marks that must only ever increase.
func (i *Int64) SetIfGreater(value int64) {
	for {
		current := i.v.Load()
		if value <= current {
			return
		}
		if i.v.CompareAndSwap(current, value) {
			return
		}
	}
}
