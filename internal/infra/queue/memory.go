package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process bounded queue used in tests and when no
// broker is configured.
type MemoryQueue struct {
	mu    sync.Mutex
	depth int
	chans map[string]chan []byte
}

// NewMemoryQueue creates a memory queue with the given per-queue depth.
func NewMemoryQueue(depth int) *MemoryQueue {
	if depth <= 0 {
		depth = 256
	}
	return &MemoryQueue{
		depth: depth,
		chans: make(map[string]chan []byte),
	}
}

func (q *MemoryQueue) channel(name string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.chans[name]
	if !ok {
		ch = make(chan []byte, q.depth)
		q.chans[name] = ch
	}
	return ch
}

// Publish appends a message, blocking if the queue is full.
func (q *MemoryQueue) Publish(ctx context.Context, queue string, payload []byte) error {
	select {
	case q.channel(queue) <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks up to timeout for the next message.
func (q *MemoryQueue) Receive(
	ctx context.Context,
	queue string,
	timeout time.Duration,
) ([]byte, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload := <-q.channel(queue):
		return payload, true, nil
	case <-timer.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Len returns the number of pending messages.
func (q *MemoryQueue) Len(ctx context.Context, queue string) (int64, error) {
	return int64(len(q.channel(queue))), nil
}
