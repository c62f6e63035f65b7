package queue

import (
	"context"
	"time"
)

// Message is a consumed job awaiting settlement. Exactly one of Ack or
// Nack must be called.
type Message interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// Enqueuer publishes jobs. Services depend on this rather than JobQueue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// JobQueue is the interface for job queues
type JobQueue interface {
	Enqueuer

	// Consume returns a channel of messages from the queue.
	// The caller is responsible for acknowledging each message.
	// Prefetch controls how many unacknowledged messages the consumer holds.
	// Both channels are closed when ctx is cancelled or the connection drops.
	Consume(ctx context.Context, prefetchCount int) (<-chan Message, <-chan error, error)

	// Close closes the queue connection
	Close() error

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered messages older than retention and
// reports how many were removed.
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
