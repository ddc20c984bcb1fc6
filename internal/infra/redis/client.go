package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the triage engine: destination queues
// and the lifecycle record store.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func queueKey(name string) string {
	return fmt.Sprintf("triage:queue:%s", name)
}

func recordKey(exceptionID string) string {
	return fmt.Sprintf("triage:lifecycle:%s", exceptionID)
}

const slaIndexKey = "triage:sla"

// Enqueue pushes a message onto the named queue.
func (c *Client) Enqueue(ctx context.Context, queue string, payload []byte) error {
	if err := c.rdb.LPush(ctx, queueKey(queue), payload).Err(); err != nil {
		return fmt.Errorf("lpush failed: %w", err)
	}
	return nil
}

// Dequeue pops the oldest message from the named queue, blocking up to
// timeout. Returns found=false on timeout.
func (c *Client) Dequeue(
	ctx context.Context,
	queue string,
	timeout time.Duration,
) (payload []byte, found bool, err error) {
	res, err := c.rdb.BRPop(ctx, timeout, queueKey(queue)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("brpop failed: %w", err)
	}
	// BRPOP returns [key, value]
	if len(res) != 2 {
		return nil, false, fmt.Errorf("unexpected brpop reply length: %d", len(res))
	}
	return []byte(res[1]), true, nil
}

// QueueLen returns the number of pending messages on a queue.
func (c *Client) QueueLen(ctx context.Context, queue string) (int64, error) {
	return c.rdb.LLen(ctx, queueKey(queue)).Result()
}
