package queue

import (
	"context"
	"sync"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// MemoryQueue is a bounded in-process outbox. Pending notifications are
// lost on restart; their rows stay PENDING in storage.
type MemoryQueue struct {
	items chan *entity.Notification
	done  chan struct{}
	once  sync.Once
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryQueue{
		items: make(chan *entity.Notification, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue blocks while the queue is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, n *entity.Notification) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.items <- n:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*entity.Notification, error) {
	select {
	case n := <-q.items:
		return n, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of buffered notifications.
func (q *MemoryQueue) Len() int {
	return len(q.items)
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

var _ port.NotificationQueue = (*MemoryQueue)(nil)
