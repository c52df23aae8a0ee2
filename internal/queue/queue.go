// Package queue provides a bounded FIFO used to batch writes between the
// frame pipeline and slow sinks.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO. When a limit is set, pushing past it
// evicts the oldest items.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int
	dropped uint64
}

// New creates a new empty queue. A limit of zero or less means unbounded.
func New[T any](limit int) *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
		limit: limit,
	}
}

// Push appends items and returns how many old items were evicted to stay
// within the limit.
func (q *Queue[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if q.limit <= 0 || len(q.items) <= q.limit {
		return 0
	}
	evicted := len(q.items) - q.limit
	var zero T
	for i := 0; i < evicted; i++ {
		q.items[i] = zero
	}
	q.items = append(q.items[:0], q.items[evicted:]...)
	q.dropped += uint64(evicted)
	return evicted
}

// Requeue puts items back at the front of the queue, ahead of anything
// pushed since they were drained. Returns how many of the oldest items
// were evicted to stay within the limit.
func (q *Queue[T]) Requeue(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]T, 0, len(items)+len(q.items))
	merged = append(merged, items...)
	merged = append(merged, q.items...)
	evicted := 0
	if q.limit > 0 && len(merged) > q.limit {
		evicted = len(merged) - q.limit
		merged = merged[evicted:]
		q.dropped += uint64(evicted)
	}
	q.items = merged
	return evicted
}

// Pop removes and returns the first item. ok is false if the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
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

// Drain returns up to max items from the front of the queue. A max of zero
// or less drains everything.
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}
	result := make([]T, n)
	copy(result, q.items[:n])
	rest := make([]T, len(q.items)-n, cap(q.items))
	copy(rest, q.items[n:])
	q.items = rest
	return result
}
