package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/infrastructure/queue"
)

type recordingDeliverer struct {
	mu        sync.Mutex
	delivered []string
	fail      map[string]bool
	panicOn   string
}

func (d *recordingDeliverer) Deliver(ctx context.Context, n *entity.Notification) error {
	if n.ID == d.panicOn {
		panic("notifier exploded")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, n.ID)
	if d.fail[n.ID] {
		return errors.New("lark unavailable")
	}
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}

func TestNotificationWorker_DrainsQueue(t *testing.T) {
	q := queue.NewMemoryQueue(16)
	defer q.Close()
	d := &recordingDeliverer{fail: map[string]bool{"n-2": true}, panicOn: "n-4"}

	w := NewNotificationWorker(NotificationWorkerConfig{Concurrency: 3}, q, d, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	for _, id := range []string{"n-1", "n-2", "n-3", "n-4", "n-5"} {
		require.NoError(t, q.Enqueue(context.Background(), &entity.Notification{ID: id}))
	}

	require.Eventually(t, func() bool {
		delivered, failed := w.Stats()
		return delivered+failed == 5
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	delivered, failed := w.Stats()
	assert.EqualValues(t, 3, delivered)
	assert.EqualValues(t, 2, failed)
	assert.Equal(t, 4, d.count())
	assert.Equal(t, 0, q.Len())
}

func TestNotificationWorker_StopsWhenQueueCloses(t *testing.T) {
	q := queue.NewMemoryQueue(1)
	w := NewNotificationWorker(NotificationWorkerConfig{}, q, &recordingDeliverer{}, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, q.Close())

	done := make(chan struct{})
	go func() {
		_ = w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

type flakyQueue struct {
	*queue.MemoryQueue
	mu    sync.Mutex
	fails int
}

func (f *flakyQueue) Dequeue(ctx context.Context) (*entity.Notification, error) {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.MemoryQueue.Dequeue(ctx)
}

func TestNotificationWorker_RetriesQueueErrors(t *testing.T) {
	q := &flakyQueue{MemoryQueue: queue.NewMemoryQueue(4), fails: 2}
	defer q.Close()
	d := &recordingDeliverer{}

	w := NewNotificationWorker(NotificationWorkerConfig{Concurrency: 1, RetryBackoff: 5 * time.Millisecond}, q, d, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, q.Enqueue(context.Background(), &entity.Notification{ID: "n-1"}))
	require.Eventually(t, func() bool { return d.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}
