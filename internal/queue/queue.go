// Package queue provides the thread-safe FIFO buffering frames and
// commands between the tick loop and the background drain goroutines.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items to the back of the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Pop removes and returns the front item, or the zero value when the
// queue is empty.
func (q *Queue[T]) Pop() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	var item T
	if len(q.items) > 0 {
		item = q.items[0]
		q.items = q.items[1:]
	}
	return item
}

// Empty reports whether the queue holds no items.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear discards all queued items.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// GetAndEmpty hands the caller every queued item in one slice and
// leaves the queue empty. The flush path uses this to drain in a
// single lock acquisition.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}
