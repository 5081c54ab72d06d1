package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/catalog"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memReceiver struct {
	mu       sync.Mutex
	pending  []queue.Message
	acked    []queue.Message
	requeued []queue.Message
	released []queue.Message
	err      error
}

func (r *memReceiver) Receive(ctx context.Context, max int, wait time.Duration) ([]queue.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	if len(r.pending) == 0 {
		r.mu.Unlock()
		time.Sleep(wait)
		r.mu.Lock()
		return nil, nil
	}
	n := max
	if n > len(r.pending) {
		n = len(r.pending)
	}
	batch := r.pending[:n]
	r.pending = r.pending[n:]
	return batch, nil
}

func (r *memReceiver) Ack(ctx context.Context, messages []queue.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acked = append(r.acked, messages...)
	return nil
}

func (r *memReceiver) Requeue(ctx context.Context, messages []queue.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requeued = append(r.requeued, messages...)
	return nil
}

func (r *memReceiver) Release(ctx context.Context, messages []queue.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, messages...)
	return nil
}

func (r *memReceiver) counts() (pending, acked, requeued int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending), len(r.acked), len(r.requeued)
}

type handlerFunc func(ctx context.Context, messages []queue.Message) (catalog.Result, error)

func (f handlerFunc) HandleBatch(ctx context.Context, messages []queue.Message) (catalog.Result, error) {
	return f(ctx, messages)
}

func pendingMessages(n int) []queue.Message {
	msgs := make([]queue.Message, n)
	for i := range msgs {
		msgs[i] = queue.Message{ID: string(rune('a' + i)), Body: `{}`}
	}
	return msgs
}

func TestPool_RunOnceAcksSuccessfulBatch(t *testing.T) {
	receiver := &memReceiver{pending: pendingMessages(3)}
	handler := handlerFunc(func(ctx context.Context, messages []queue.Message) (catalog.Result, error) {
		return catalog.Result{StatusCode: 200, Created: len(messages)}, nil
	})

	pool := NewPool(receiver, handler, Config{BatchSize: 2})

	result, err := pool.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Messages)
	assert.Equal(t, 2, result.Created)
	assert.NoError(t, result.Error)

	pending, acked, requeued := receiver.counts()
	assert.Equal(t, 1, pending)
	assert.Equal(t, 2, acked)
	assert.Equal(t, 0, requeued)
}

func TestPool_RunOnceRequeuesWholeBatchOnError(t *testing.T) {
	receiver := &memReceiver{pending: pendingMessages(2)}
	handlerErr := errors.New("write failed")
	handler := handlerFunc(func(ctx context.Context, messages []queue.Message) (catalog.Result, error) {
		return catalog.Result{}, handlerErr
	})

	result, err := NewPool(receiver, handler, Config{BatchSize: 5}).RunOnce(context.Background())

	require.NoError(t, err)
	assert.ErrorIs(t, result.Error, handlerErr)

	_, acked, requeued := receiver.counts()
	assert.Equal(t, 0, acked)
	assert.Equal(t, 2, requeued)
}

func TestPool_RunOnceEmptyQueue(t *testing.T) {
	called := false
	handler := handlerFunc(func(ctx context.Context, messages []queue.Message) (catalog.Result, error) {
		called = true
		return catalog.Result{}, nil
	})

	result, err := NewPool(&memReceiver{}, handler, Config{PollTimeout: time.Millisecond}).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Messages)
	assert.False(t, called)
}

func TestPool_RunOnceReceiveError(t *testing.T) {
	receiver := &memReceiver{err: errors.New("connection refused")}

	_, err := NewPool(receiver, handlerFunc(nil), Config{}).RunOnce(context.Background())

	assert.Error(t, err)
}

func TestPool_RunDrainsQueueUntilCancelled(t *testing.T) {
	receiver := &memReceiver{pending: pendingMessages(10)}

	var mu sync.Mutex
	handled := 0
	handler := handlerFunc(func(ctx context.Context, messages []queue.Message) (catalog.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		handled += len(messages)
		return catalog.Result{Created: len(messages)}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(receiver, handler, Config{Workers: 3, BatchSize: 2, PollTimeout: 10 * time.Millisecond})
	pool.Start(ctx)

	require.Eventually(t, func() bool {
		_, acked, _ := receiver.counts()
		return acked == 10
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	pool.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, handled)
}

func TestPool_ShutdownReleasesWithoutRequeue(t *testing.T) {
	receiver := &memReceiver{pending: []queue.Message{{ID: "1", Body: "{}"}, {ID: "2", Body: "{}"}}}
	ctx, cancel := context.WithCancel(context.Background())

	handler := handlerFunc(func(ctx context.Context, messages []queue.Message) (catalog.Result, error) {
		cancel()
		return catalog.Result{}, ctx.Err()
	})

	pool := NewPool(receiver, handler, Config{Workers: 1, BatchSize: 5, PollTimeout: time.Millisecond})
	result, err := pool.RunOnce(ctx)

	require.NoError(t, err)
	assert.ErrorIs(t, result.Error, context.Canceled)
	assert.Len(t, receiver.released, 2)
	assert.Empty(t, receiver.requeued)
	assert.Empty(t, receiver.acked)
}
