// Package pqueue provides a keyed binary min-heap.
//
// The implementation combines a container/heap-backed slice with a hash map,
// giving O(log n) priority operations together with O(1) key lookups and
// O(log n) key-based removal. It is the ordering structure behind the timer
// scheduler: items are deadlines keyed by task id, and the scheduler only
// ever needs the earliest one plus the ability to drop a cancelled task
// directly.
//
// The queue is not thread-safe; callers provide external synchronization.
package pqueue

import "container/heap"

// Item is an element of the queue: an opaque payload ordered by Priority and
// addressable by Key.
type Item[T any] struct {
	Key      uint64
	Priority uint64
	Value    T

	index int // position in the heap slice, maintained by container/heap
}

type itemHeap[T any] struct {
	items []*Item[T]
	byKey map[uint64]*Item[T]
}

func (h *itemHeap[T]) Len() int { return len(h.items) }

func (h *itemHeap[T]) Less(i, j int) bool {
	return h.items[i].Priority < h.items[j].Priority
}

func (h *itemHeap[T]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *itemHeap[T]) Push(x interface{}) {
	item := x.(*Item[T])
	item.index = len(h.items)
	h.items = append(h.items, item)
	h.byKey[item.Key] = item
}

func (h *itemHeap[T]) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	h.items = old[:n-1]
	delete(h.byKey, item.Key)
	return item
}

// Queue is a keyed min-heap of Items.
type Queue[T any] struct {
	h itemHeap[T]
}

// New creates an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		h: itemHeap[T]{
			items: make([]*Item[T], 0),
			byKey: make(map[uint64]*Item[T]),
		},
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return q.h.Len() }

// Push inserts value under key with the given priority. If the key already
// exists its priority and value are updated in place.
func (q *Queue[T]) Push(key, priority uint64, value T) {
	if item, exists := q.h.byKey[key]; exists {
		item.Priority = priority
		item.Value = value
		heap.Fix(&q.h, item.index)
		return
	}

	heap.Push(&q.h, &Item[T]{
		Key:      key,
		Priority: priority,
		Value:    value,
	})
}

// Pop removes and returns the item with the smallest priority.
func (q *Queue[T]) Pop() (*Item[T], bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*Item[T]), true
}

// Peek returns the item with the smallest priority without removing it.
func (q *Queue[T]) Peek() (*Item[T], bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	return q.h.items[0], true
}

// RemoveByKey removes the item stored under key, returning it if present.
func (q *Queue[T]) RemoveByKey(key uint64) (*Item[T], bool) {
	item, exists := q.h.byKey[key]
	if !exists {
		return nil, false
	}
	heap.Remove(&q.h, item.index)
	return item, true
}

// Contains reports whether an item is stored under key.
func (q *Queue[T]) Contains(key uint64) bool {
	_, exists := q.h.byKey[key]
	return exists
}

// Clear drops all items.
func (q *Queue[T]) Clear() {
	q.h.items = q.h.items[:0]
	q.h.byKey = make(map[uint64]*Item[T])
}
