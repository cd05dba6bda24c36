package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(client, "ocr_tasks")
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, "task-1"))

	id, err := b.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "task-1", id)
}

func TestDequeueTimesOutEmpty(t *testing.T) {
	b := newTestBroker(t)
	id, err := b.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestEnqueueOrderIsFIFO(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()
	require.NoError(t, b.Enqueue(ctx, "first"))
	require.NoError(t, b.Enqueue(ctx, "second"))

	id1, err := b.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	id2, err := b.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "first", id1)
	require.Equal(t, "second", id2)
}
