package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

const testRedisKey = "travel-approval:test:notifications"

// newTestRedisQueue runs an in-process Redis server for the test.
func newTestRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedisQueue(RedisOptions{
		Addr:        mr.Addr(),
		Key:         testRedisKey,
		PollTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q, mr
}

func TestRedisQueue_RoundTrip(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	ctx := context.Background()

	first := &entity.Notification{ID: "n-1", WorkflowID: "wf-1", RecipientID: "mgr-1", Subject: "Approval Required: Travel Request"}
	second := &entity.Notification{ID: "n-2", WorkflowID: "wf-1", RecipientRole: "FINANCE"}
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "n-1", got.ID)
	assert.Equal(t, "mgr-1", got.RecipientID)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "FINANCE", got.RecipientRole)
}

func TestRedisQueue_UsesConfiguredKey(t *testing.T) {
	q, mr := newTestRedisQueue(t)
	require.NoError(t, q.Enqueue(context.Background(), &entity.Notification{ID: "n-1"}))

	items, err := mr.List(testRedisKey)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], `"n-1"`)
}

func TestRedisQueue_DecodeError(t *testing.T) {
	q, mr := newTestRedisQueue(t)
	_, err := mr.Lpush(testRedisKey, "not json")
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background())
	assert.ErrorContains(t, err, "failed to decode notification")
}

func TestNewRedisQueue_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisQueue(RedisOptions{Addr: addr})
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func TestRedisQueue_DequeueHonoursContext(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisQueue_Closed(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(context.Background(), &entity.Notification{ID: "n-1"}), ErrClosed)
	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
