package queue

import (
	"context"
	"time"
)

// MessageInterface is a delivered job awaiting acknowledgement
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// Enqueuer publishes jobs
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// JobQueue is the interface for job queues
type JobQueue interface {
	Enqueuer

	// Consume delivers messages until ctx is cancelled. Prefetch bounds the
	// unacknowledged messages held by this consumer. The caller acknowledges
	// each message.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	Close() error

	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered jobs older than retention
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
