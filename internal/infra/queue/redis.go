package queue

import (
	"context"
	"time"

	redisclient "github.com/vietddude/triage/internal/infra/redis"
)

// RedisQueue adapts the Redis client's list operations to the Queue
// interface. Redis lists give the at-least-once, FIFO-per-queue semantics
// the delegation path assumes.
type RedisQueue struct {
	client *redisclient.Client
}

// NewRedisQueue creates a Redis-backed queue.
func NewRedisQueue(client *redisclient.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Publish appends a message to the named queue.
func (q *RedisQueue) Publish(ctx context.Context, queue string, payload []byte) error {
	return q.client.Enqueue(ctx, queue, payload)
}

// Receive blocks up to timeout for the next message.
func (q *RedisQueue) Receive(
	ctx context.Context,
	queue string,
	timeout time.Duration,
) ([]byte, bool, error) {
	return q.client.Dequeue(ctx, queue, timeout)
}

// Len returns the number of pending messages.
func (q *RedisQueue) Len(ctx context.Context, queue string) (int64, error) {
	return q.client.QueueLen(ctx, queue)
}
