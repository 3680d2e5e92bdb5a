package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

const defaultRedisKey = "travel-approval:notifications"

// RedisOptions configures the Redis-backed queue
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	PoolSize     int
	MinIdleConns int
	// PollTimeout bounds each BRPOP so Dequeue notices cancellation.
	PollTimeout time.Duration
}

// RedisQueue pushes notifications onto a Redis list, surviving restarts
type RedisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
	closed      atomic.Bool
}

func NewRedisQueue(opts RedisOptions) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisQueue(client, opts), nil
}

func newRedisQueue(client *redis.Client, opts RedisOptions) *RedisQueue {
	key := opts.Key
	if key == "" {
		key = defaultRedisKey
	}
	poll := opts.PollTimeout
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &RedisQueue{client: client, key: key, pollTimeout: poll}
}

func (q *RedisQueue) Enqueue(ctx context.Context, n *entity.Notification) error {
	if q.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", n.ID, err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push notification %s: %w", n.ID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*entity.Notification, error) {
	for {
		if q.closed.Load() {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if q.closed.Load() {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("failed to pop notification: %w", err)
		}

		// res is [key, value]
		var n entity.Notification
		if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		return &n, nil
	}
}

// Len reports the list length.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	return q.client.Close()
}

var _ port.NotificationQueue = (*RedisQueue)(nil)
