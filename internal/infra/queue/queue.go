package queue

import (
	"context"
	"time"
)

// Publisher sends messages to a named queue.
type Publisher interface {
	// Publish appends a message to the named queue
	Publish(ctx context.Context, queue string, payload []byte) error
}

// Consumer receives messages from a named queue.
type Consumer interface {
	// Receive blocks up to timeout for the next message; ok=false on timeout
	Receive(ctx context.Context, queue string, timeout time.Duration) (payload []byte, ok bool, err error)
}

// Queue combines both directions plus depth inspection.
type Queue interface {
	Publisher
	Consumer

	// Len returns the number of pending messages on a queue
	Len(ctx context.Context, queue string) (int64, error)
}

// Well-known queue names. Destination queues are derived per destination.
const (
	InboundQueue  = "exceptions"
	FeedbackQueue = "outcomes"
)

// DestinationQueue names the delegation queue for a destination.
func DestinationQueue(dest string) string {
	return "dest:" + dest
}
