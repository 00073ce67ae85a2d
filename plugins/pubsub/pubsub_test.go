package pubsub_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/queueworker"
	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/internal/mock"
	"github.com/miladsoleymani/queueworker/plugins/pubsub"
	"github.com/miladsoleymani/queueworker/queue"
)

// openMem opens a queue on a fresh in-memory topic.
func openMem(t *testing.T) core.Queue {
	t.Helper()
	q, err := queue.Open(context.Background(), queue.Config{
		Driver:  "pubsub",
		Name:    "jobs-" + xid.New().String(),
		Options: map[string]string{"wait_time": "100ms"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestQueue_SendReceiveDelete(t *testing.T) {
	q := openMem(t)
	ctx := context.Background()

	sent := core.NewMessage([]byte("reports.daily"), map[string]string{"day": "monday"})
	require.NoError(t, q.Send(ctx, sent, nil))

	msgs, err := q.Receive(ctx, 5, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID(), msgs[0].ID())
	assert.Equal(t, []byte("reports.daily"), msgs[0].Content())
	assert.Equal(t, map[string]string{"day": "monday"}, msgs[0].Metadata())

	assert.True(t, q.CanDeleteMessage())
	require.NoError(t, q.Delete(ctx, msgs[0]))
	assert.ErrorIs(t, q.Delete(ctx, &mock.Message{Id: "x"}), core.ErrForeignMessage)
}

func TestQueue_ReceiveEmptyTimesOut(t *testing.T) {
	q := openMem(t)

	start := time.Now()
	msgs, err := q.Receive(context.Background(), 3, &core.ReceiveParams{WaitTime: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestQueue_ClosedRejectsCalls(t *testing.T) {
	q := openMem(t)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Send(context.Background(), core.NewMessage(nil, nil), nil), core.ErrQueueClosed)
	_, err := q.Receive(context.Background(), 1, nil)
	assert.ErrorIs(t, err, core.ErrQueueClosed)
}

func TestNew_RequiresURLs(t *testing.T) {
	_, err := pubsub.New(context.Background(), "", "mem://x")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestWorker_AwaitOverMemPubSub(t *testing.T) {
	q := openMem(t)
	ctx := context.Background()

	w := queueworker.New(core.WithLogger(zerolog.Nop()))
	w.Dispatcher().Handle("count", func(c queueworker.Context) (any, error) {
		return "n=" + c.Param("n"), nil
	})

	for i := 1; i <= 3; i++ {
		m := core.NewMessage([]byte("count"), map[string]string{"n": fmt.Sprint(i)})
		require.NoError(t, q.Send(ctx, m, nil))
	}

	res, err := w.Await(ctx, q, &core.ReceiveParams{
		BatchSize:   3,
		WaitTime:    50 * time.Millisecond,
		IdleTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Contains(t, []any{"n=1", "n=2", "n=3"}, res)
}
