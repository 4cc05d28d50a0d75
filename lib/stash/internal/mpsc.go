// Package internal holds the lock-free plumbing behind the stash journal.
package internal

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node is a single element of the queue's linked list.
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// MPSC is an unbounded lock-free multi-producer single-consumer queue. Any
// number of goroutines may Push concurrently; exactly one goroutine consumes
// via the Recv channel. Pushes from a single producer are delivered in order;
// ordering across producers follows push completion, not push start.
//
// The journal relies on the per-producer ordering guarantee: a flush marker
// pushed after a record by the same goroutine is always consumed after that
// record.
type MPSC[T any] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan *T
	consumer sync.WaitGroup
	closed   atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewMPSC creates a queue and starts its consumer pump.
func NewMPSC[T any]() *MPSC[T] {
	sentinel := &node[T]{}

	q := &MPSC[T]{out: make(chan *T)}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.pump()
	return q
}

// Push appends value. It returns false if value is nil or the queue is
// closed.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (q *MPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// tail update may be raced by a helping producer; either
				// CAS outcome leaves the list consistent
				q.tail.CompareAndSwap(tailNode, newNode)
				q.cond.Signal()
				return true
			}
		} else {
			// another producer appended but has not advanced tail yet; help
			q.tail.CompareAndSwap(tailNode, next)
		}

		// exponential backoff: spin at low contention, yield at high
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// pump moves items from the linked list to the output channel.
func (q *MPSC[T]) pump() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			head := q.head.Load()
			if head.next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the consumer channel. It is closed after Close once all
// queued items have been delivered.
func (q *MPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close stops further pushes. Items already queued are still delivered.
func (q *MPSC[T]) Close() {
	q.closed.Store(true)
	q.cond.Signal()
}

// IsClosed reports whether Close has been called.
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}
