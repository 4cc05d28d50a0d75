package atomics

import "sync"

// Cell is a single mutable slot for values of type T. All reads, writes and
// compare-and-set operations are serialized by one mutex, so observers never
// see a torn value.
//
// T must be comparable because CompareAndSet matches the expected value
// with ==.
type Cell[T comparable] struct {
	mu    sync.Mutex
	value T
}

// NewCell creates a Cell holding the given initial value.
func NewCell[T comparable](value T) *Cell[T] {
	return &Cell[T]{value: value}
}

// Get returns the current value.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores a new value.
func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
}

// GetAndSet stores value and returns the previous value.
func (c *Cell[T]) GetAndSet(value T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.value
	c.value = value
	return old
}

// CompareAndSet stores next if the current value equals expected.
// It returns true if the swap happened.
func (c *Cell[T]) CompareAndSet(expected, next T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value != expected {
		return false
	}
	c.value = next
	return true
}

// Update applies fn to the current value under the cell's mutex and stores
// the result, returning the new value. fn is invoked exactly once and must
// not call back into the cell.
func (c *Cell[T]) Update(fn func(current T) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = fn(c.value)
	return c.value
}
