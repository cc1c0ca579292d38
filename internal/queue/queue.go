// Package queue provides an unbounded FIFO used to hand work from the capture
// loop to background workers.
package queue

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded, goroutine-safe FIFO.
//
// Put never blocks. Consumers either poll with TryGet or wait with Get.
// Every item obtained from TryGet or Get must be acknowledged with TaskDone
// for Join to return.
type Queue[T any] struct {
	mu         sync.Mutex
	items      []T
	ready      chan struct{}
	unfinished int
	drained    chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready:   make(chan struct{}, 1),
		drained: closedChan(),
	}
}

// Put appends v to the tail of the queue.
func (q *Queue[T]) Put(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	if q.unfinished == 0 {
		q.drained = make(chan struct{})
	}
	q.unfinished++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryGet removes and returns the head of the queue without waiting.
func (q *Queue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	// Keep the wake-up signal armed while items remain.
	if len(q.items) > 0 {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return v, true
}

// Get waits up to timeout for an item. It returns false on timeout or when
// ctx is done.
func (q *Queue[T]) Get(ctx context.Context, timeout time.Duration) (T, bool) {
	if v, ok := q.TryGet(); ok {
		return v, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.ready:
			if v, ok := q.TryGet(); ok {
				return v, true
			}
		case <-timer.C:
			return q.TryGet()
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// TaskDone acknowledges one item previously returned by TryGet or Get.
func (q *Queue[T]) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished == 0 {
		return
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.drained)
	}
}

// Join blocks until every item put on the queue has been acknowledged, or
// until ctx is done.
func (q *Queue[T]) Join(ctx context.Context) error {
	q.mu.Lock()
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of items waiting in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Unfinished returns the number of items not yet acknowledged.
func (q *Queue[T]) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
