// Package queue provides the mutex-guarded hand-off used between producers
// running on other goroutines and the single-threaded tick loop.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO. A bounded queue discards its oldest
// items to make room for new ones.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int
	dropped uint64
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// NewBounded creates a queue holding at most limit items. A limit of zero or
// less is unbounded.
func NewBounded[T any](limit int) *Queue[T] {
	q := New[T]()
	if limit > 0 {
		q.limit = limit
	}
	return q
}

// Push appends items, evicting the oldest if the queue is bounded and full.
// It returns how many items were evicted.
func (q *Queue[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)

	if q.limit == 0 || len(q.items) <= q.limit {
		return 0
	}
	over := len(q.items) - q.limit
	q.items = append(q.items[:0], q.items[over:]...)
	q.dropped += uint64(over)
	return over
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the total number of evicted items.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Drain returns all items in arrival order and empties the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}
