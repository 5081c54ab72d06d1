package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T, maxReceiveCount int) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisQueue(client, "catalog-items", maxReceiveCount), mr
}

func TestRedisQueue_PublishReceiveAck(t *testing.T) {
	q, mr := setupQueue(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Publish(ctx, fmt.Sprintf(`{"title":"p-%d"}`, i)))
	}

	messages, err := q.Receive(ctx, 2, time.Second)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, `{"title":"p-0"}`, messages[0].Body)
	assert.Equal(t, `{"title":"p-1"}`, messages[1].Body)
	assert.NotEmpty(t, messages[0].ID)
	assert.Zero(t, messages[0].ReceiveCount)

	processing, err := mr.List("catalog-items:processing")
	require.NoError(t, err)
	assert.Len(t, processing, 2)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	require.NoError(t, q.Ack(ctx, messages))
	assert.False(t, mr.Exists("catalog-items:processing"))
}

func TestRedisQueue_RequeueAndDeadLetter(t *testing.T) {
	q, mr := setupQueue(t, 2)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, `{"title":"flaky"}`))

	first, err := q.Receive(ctx, 5, time.Second)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NoError(t, q.Requeue(ctx, first))

	second, err := q.Receive(ctx, 5, time.Second)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, second[0].ReceiveCount)
	assert.Equal(t, `{"title":"flaky"}`, second[0].Body)

	require.NoError(t, q.Requeue(ctx, second))

	dead, err := mr.List(q.DeadLetterList())
	require.NoError(t, err)
	assert.Len(t, dead, 1)

	deadDepth, err := q.DeadLetterDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deadDepth)
	assert.False(t, mr.Exists("catalog-items"))
	assert.False(t, mr.Exists("catalog-items:processing"))
}

func TestRedisQueue_ReceiveEmpty(t *testing.T) {
	q, _ := setupQueue(t, 3)

	messages, err := q.Receive(context.Background(), 5, time.Second)

	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRedisQueue_RawPayloadIsOpaqueBody(t *testing.T) {
	q, mr := setupQueue(t, 3)
	ctx := context.Background()

	_, err := mr.Lpush("catalog-items", "not an envelope")
	require.NoError(t, err)

	messages, err := q.Receive(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "not an envelope", messages[0].Body)

	require.NoError(t, q.Ack(ctx, messages))
	assert.False(t, mr.Exists("catalog-items:processing"))
}

func TestRedisQueue_RecoverInFlight(t *testing.T) {
	q, _ := setupQueue(t, 3)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, `{"title":"a"}`))
	require.NoError(t, q.Publish(ctx, `{"title":"b"}`))

	_, err := q.Receive(ctx, 2, time.Second)
	require.NoError(t, err)

	recovered, err := q.RecoverInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestRedisQueue_ReleaseKeepsReceiveCount(t *testing.T) {
	q, mr := setupQueue(t, 1)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, `{"title":"interrupted"}`))

	first, err := q.Receive(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NoError(t, q.Release(ctx, first))

	assert.False(t, mr.Exists(q.DeadLetterList()))
	assert.False(t, mr.Exists(q.ProcessingList()))

	second, err := q.Receive(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Zero(t, second[0].ReceiveCount)
}

func TestRedisQueue_RecoverInFlightIsPerConsumer(t *testing.T) {
	base, _ := setupQueue(t, 3)
	ctx := context.Background()

	a := base.WithConsumer("host-a")
	b := base.WithConsumer("host-b")
	assert.Equal(t, "catalog-items:processing:host-a", a.ProcessingList())

	require.NoError(t, base.Publish(ctx, `{"title":"a"}`))
	require.NoError(t, base.Publish(ctx, `{"title":"b"}`))

	inFlight, err := a.Receive(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, inFlight, 1)

	recovered, err := b.RecoverInFlight(ctx)
	require.NoError(t, err)
	assert.Zero(t, recovered, "another consumer's batch stays in flight")

	recovered, err = a.RecoverInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	require.NoError(t, a.Ack(ctx, inFlight))
}
