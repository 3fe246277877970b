// Package queue buffers host records between ticks.
package queue

import (
	"sync"
)

// Queue is a thread-safe append buffer that is drained whole, once per tick.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// New creates an empty queue. A positive limit caps how many items are held;
// pushes beyond it are dropped and counted.
func New[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Push appends items and returns how many were dropped by the limit.
func (q *Queue[T]) Push(items ...T) (dropped int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 {
		room := max(q.limit-len(q.items), 0)
		if len(items) > room {
			dropped = len(items) - room
			items = items[:room]
		}
	}
	q.items = append(q.items, items...)
	return dropped
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear discards everything buffered.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Drain returns all items in push order and empties the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(result))
	return result
}
