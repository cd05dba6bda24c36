// Package broker implements the message broker collaborator spec.md §1
// names only via its interface: handing task ids from the submission
// front-end to the Task Dispatcher's worker pool. Modeled on
// davrot-gogotex's internal/sessions/redis_repository.go Redis-repository
// idiom (client + key prefix, JSON-free here since the payload is just an
// id string), backed by a BRPop/LPush list instead of that repo's
// key/value session store.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Broker hands PDF task ids from the front-end to the dispatcher via a
// single Redis list acting as a FIFO queue (the Celery broker in the
// original system; see SPEC_FULL.md §11/§12).
type Broker struct {
	client *redis.Client
	queue  string
}

// New connects to redisURL and targets the named queue (CELERY_QUEUE or
// equivalent).
func New(redisURL, queue string) (*Broker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return &Broker{client: client, queue: queue}, nil
}

// NewWithClient wraps an existing client (used by tests against
// miniredis).
func NewWithClient(client *redis.Client, queue string) *Broker {
	return &Broker{client: client, queue: queue}
}

// Close releases the underlying connection pool.
func (b *Broker) Close() error {
	return b.client.Close()
}

// Enqueue pushes a task id onto the queue (front-end side).
func (b *Broker) Enqueue(ctx context.Context, taskID string) error {
	if err := b.client.LPush(ctx, b.queue, taskID).Err(); err != nil {
		return fmt.Errorf("enqueue task %s: %w", taskID, err)
	}
	return nil
}

// QueueLen reports the approximate number of task ids currently waiting,
// for the dispatcher's queue-depth gauge.
func (b *Broker) QueueLen(ctx context.Context) (int64, error) {
	n, err := b.client.LLen(ctx, b.queue).Result()
	if err != nil {
		return 0, fmt.Errorf("queue len: %w", err)
	}
	return n, nil
}

// Dequeue blocks up to timeout for the next task id (dispatcher side). A
// zero timeout blocks forever, matching go-redis's BRPop semantics.
func (b *Broker) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := b.client.BRPop(ctx, timeout, b.queue).Result()
	if err == redis.Nil {
		return "", nil // no message within timeout, not an error
	}
	if err != nil {
		return "", fmt.Errorf("dequeue: %w", err)
	}
	// BRPop returns [key, value]
	if len(res) < 2 {
		return "", fmt.Errorf("unexpected BRPop reply: %v", res)
	}
	return res[1], nil
}
