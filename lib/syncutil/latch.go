package syncutil

import (
	"sync"
	"time"
)

// CountDownLatch blocks waiters until its counter, fixed at construction,
// has been counted down to zero. A latch cannot be reset or reused.
type CountDownLatch struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

// NewCountDownLatch creates a latch with the given initial count.
// A non-positive count is a configuration error.
func NewCountDownLatch(count int) (*CountDownLatch, error) {
	if count <= 0 {
		return nil, ErrInvalidCount
	}
	return &CountDownLatch{
		count: count,
		done:  make(chan struct{}),
	}, nil
}

// CountDown decrements the counter. When the counter reaches zero all
// waiters are released. Counting down past zero is a no-op.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (l *CountDownLatch) CountDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	l.count--
	if l.count == 0 {
		close(l.done)
	}
}

// Count returns the current counter value.
func (l *CountDownLatch) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Wait blocks until the counter reaches zero.
func (l *CountDownLatch) Wait() {
	<-l.done
}

// WaitFor blocks until the counter reaches zero or timeout elapses, and
// reports whether the latch opened in time.
func (l *CountDownLatch) WaitFor(timeout time.Duration) bool {
	select {
	case <-l.done:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-l.done:
		return true
	case <-timer.C:
		return false
	}
}
