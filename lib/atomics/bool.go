package atomics

import "sync/atomic"

// Bool is an atomic boolean. The zero value is false and ready to use.
type Bool struct {
	v atomic.Bool
}

// NewBool creates a Bool holding the given initial value.
func NewBool(value bool) *Bool {
	b := &Bool{}
	b.v.Store(value)
	return b
}

// Get returns the current value.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (b *Bool) Get() bool {
	return b.v.Load()
}

// Set stores a new value.
func (b *Bool) Set(value bool) {
	b.v.Store(value)
}

// GetAndSet stores value and returns the previous value.
func (b *Bool) GetAndSet(value bool) bool {
	return b.v.Swap(value)
}

// CompareAndSet stores next if the current value equals expected.
// It returns true if the swap happened.
func (b *Bool) CompareAndSet(expected, next bool) bool {
	return b.v.CompareAndSwap(expected, next)
}

// MakeTrue transitions false -> true, returning true only for the caller
// that performed the transition.
func (b *Bool) MakeTrue() bool {
	return b.v.CompareAndSwap(false, true)
}

// MakeFalse transitions true -> false, returning true only for the caller
// that performed the transition.
func (b *Bool) MakeFalse() bool {
	return b.v.CompareAndSwap(true, false)
}
