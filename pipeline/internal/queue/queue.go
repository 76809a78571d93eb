// Package queue is a FIFO work queue with optional capacity, blocking Put,
// and acknowledgement tracking so a producer can Join until every item it
// put has been fully processed.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Put after Close.
var ErrClosed = errors.New("queue: closed")

// Queue is safe for concurrent use by any number of producers and consumers.
type Queue[T any] struct {
	mu         sync.Mutex
	items      []T
	capacity   int
	unfinished int
	closed     bool
	// changed is closed and replaced whenever state changes, waking waiters.
	changed chan struct{}
}

// New returns a queue holding at most capacity items; 0 means unbounded.
func New[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{capacity: capacity, changed: make(chan struct{})}
}

// broadcast must be called with mu held.
func (q *Queue[T]) broadcast() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// Put appends item, blocking while the queue is full.
func (q *Queue[T]) Put(ctx context.Context, item T) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if q.capacity == 0 || len(q.items) < q.capacity {
			q.items = append(q.items, item)
			q.unfinished++
			q.broadcast()
			q.mu.Unlock()
			return nil
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// Process removes the oldest item, blocking until one is available, and
// passes it to fn. The item is acknowledged when fn returns or panics.
func (q *Queue[T]) Process(ctx context.Context, fn func(T) error) error {
	item, err := q.get(ctx)
	if err != nil {
		return err
	}
	defer q.done()
	return fn(item)
}

func (q *Queue[T]) get(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			q.broadcast()
			q.mu.Unlock()
			return item, nil
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-wait:
		}
	}
}

func (q *Queue[T]) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.unfinished--
	if q.unfinished < 0 {
		panic("queue: more acknowledgements than items")
	}
	q.broadcast()
}

// Join blocks until every item put so far has been processed.
func (q *Queue[T]) Join(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.unfinished == 0 {
			q.mu.Unlock()
			return nil
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// Close makes further Puts fail. Items already queued remain available.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.broadcast()
	}
}

// Len is the number of items waiting to be taken.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Unfinished is the number of items put but not yet acknowledged.
func (q *Queue[T]) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Cap returns the capacity; 0 means unbounded.
func (q *Queue[T]) Cap() int { return q.capacity }
