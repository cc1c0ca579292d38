package notify

import (
	"context"
	"time"

	"github.com/ayusman/smilecast/internal/queue"
)

// Queue is the unbounded FIFO between the capture loop and the Sender.
// Enqueue never blocks and never fails.
type Queue struct {
	q *queue.Queue[Message]
}

// NewQueue creates an empty notification queue.
func NewQueue() *Queue {
	return &Queue{q: queue.New[Message]()}
}

// Enqueue appends a message.
func (q *Queue) Enqueue(m Message) {
	q.q.Put(m)
}

// Notify enqueues a structured notification.
func (q *Queue) Notify(n Notification) {
	q.q.Put(Structured(n))
}

// TryDequeue removes the head without waiting. Callers must call Done once
// they have finished with the message.
func (q *Queue) TryDequeue() (Message, bool) {
	return q.q.TryGet()
}

// Dequeue waits up to timeout for a message.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (Message, bool) {
	return q.q.Get(ctx, timeout)
}

// Done acknowledges a dequeued message.
func (q *Queue) Done() {
	q.q.TaskDone()
}

// Wait blocks until every enqueued message has been handled or ctx ends.
func (q *Queue) Wait(ctx context.Context) error {
	return q.q.Join(ctx)
}

// Len returns the number of messages waiting.
func (q *Queue) Len() int {
	return q.q.Len()
}
