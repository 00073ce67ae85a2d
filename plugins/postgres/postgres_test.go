package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/queueworker"
	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/internal/mock"
	"github.com/miladsoleymani/queueworker/internal/testenv"
	"github.com/miladsoleymani/queueworker/plugins/postgres"
	"github.com/miladsoleymani/queueworker/queue"
)

type attempter interface{ Attempts() int }

func TestQueue_Postgres(t *testing.T) {
	url := testenv.Postgres(t)
	ctx := context.Background()
	table := "messages_" + xid.New().String()

	open := func(t *testing.T, opts map[string]string) *postgres.Queue {
		t.Helper()
		if opts == nil {
			opts = map[string]string{}
		}
		opts["table"] = table
		if _, ok := opts["wait_time"]; !ok {
			opts["wait_time"] = "100ms"
		}
		q, err := queue.Open(ctx, queue.Config{
			Driver:  "postgres",
			URLs:    []string{url},
			Name:    "jobs-" + xid.New().String(),
			Options: opts,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = q.Close() })
		return q.(*postgres.Queue)
	}

	t.Run("send receive delete", func(t *testing.T) {
		q := open(t, nil)
		sent := core.NewMessage([]byte("reports.daily"), map[string]string{"day": "monday"})
		require.NoError(t, q.Send(ctx, sent, nil))

		msgs, err := q.Receive(ctx, 10, nil)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, sent.ID(), msgs[0].ID())
		assert.Equal(t, "reports.daily", string(msgs[0].Content()))
		assert.Equal(t, "monday", msgs[0].Metadata()["day"])
		assert.Equal(t, 1, msgs[0].(attempter).Attempts())

		require.NoError(t, q.Delete(ctx, msgs[0]))
		assert.ErrorIs(t, q.Delete(ctx, &mock.Message{}), core.ErrForeignMessage)
		assert.True(t, q.CanDeleteMessage())
	})

	t.Run("fifo order and batch", func(t *testing.T) {
		q := open(t, nil)
		for _, body := range []string{"a", "b", "c"} {
			require.NoError(t, q.Send(ctx, core.NewMessage([]byte(body), nil), nil))
		}

		msgs, err := q.Receive(ctx, 2, nil)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "a", string(msgs[0].Content()))
		assert.Equal(t, "b", string(msgs[1].Content()))

		msgs, err = q.Receive(ctx, 2, nil)
		require.NoError(t, err)
		require.Len(t, msgs, 1, "leased rows are not delivered twice")
		assert.Equal(t, "c", string(msgs[0].Content()))
	})

	t.Run("queues share a table", func(t *testing.T) {
		a, b := open(t, nil), open(t, nil)
		require.NoError(t, a.Send(ctx, core.NewMessage([]byte("for-a"), nil), nil))

		msgs, err := b.Receive(ctx, 1, nil)
		require.NoError(t, err)
		assert.Empty(t, msgs)

		msgs, err = a.Receive(ctx, 1, nil)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})

	t.Run("delayed send", func(t *testing.T) {
		q := open(t, nil)
		require.NoError(t, q.Send(ctx, core.NewMessage([]byte("later"), nil), &core.SendParams{Delay: time.Second}))

		msgs, err := q.Receive(ctx, 1, &core.ReceiveParams{WaitTime: 10 * time.Millisecond})
		require.NoError(t, err)
		assert.Empty(t, msgs)

		msgs, err = q.Receive(ctx, 1, &core.ReceiveParams{WaitTime: 3 * time.Second})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "later", string(msgs[0].Content()))
	})

	t.Run("expired lease is redelivered", func(t *testing.T) {
		q := open(t, nil)
		require.NoError(t, q.Send(ctx, core.NewMessage([]byte("x"), nil), nil))

		params := &core.ReceiveParams{VisibilityTimeout: 200 * time.Millisecond, WaitTime: 10 * time.Millisecond}
		msgs, err := q.Receive(ctx, 1, params)
		require.NoError(t, err)
		require.Len(t, msgs, 1)

		time.Sleep(400 * time.Millisecond)
		msgs, err = q.Receive(ctx, 1, params)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, 2, msgs[0].(attempter).Attempts())
	})

	t.Run("stale delete keeps a reclaimed row", func(t *testing.T) {
		q := open(t, nil)
		require.NoError(t, q.Send(ctx, core.NewMessage([]byte("x"), nil), nil))

		params := &core.ReceiveParams{VisibilityTimeout: 200 * time.Millisecond, WaitTime: 10 * time.Millisecond}
		stale, err := q.Receive(ctx, 1, params)
		require.NoError(t, err)
		require.Len(t, stale, 1)

		time.Sleep(400 * time.Millisecond)
		fresh, err := q.Receive(ctx, 1, params)
		require.NoError(t, err)
		require.Len(t, fresh, 1)

		// the stale receiver must not remove the row the fresh one holds
		require.NoError(t, q.Delete(ctx, stale[0]))

		time.Sleep(400 * time.Millisecond)
		again, err := q.Receive(ctx, 1, params)
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, 3, again[0].(attempter).Attempts())
		require.NoError(t, q.Delete(ctx, again[0]))
	})

	t.Run("delete of an expired lease leaves the row for redelivery", func(t *testing.T) {
		q := open(t, nil)
		require.NoError(t, q.Send(ctx, core.NewMessage([]byte("x"), nil), nil))

		params := &core.ReceiveParams{VisibilityTimeout: 200 * time.Millisecond, WaitTime: 10 * time.Millisecond}
		stale, err := q.Receive(ctx, 1, params)
		require.NoError(t, err)
		require.Len(t, stale, 1)

		time.Sleep(400 * time.Millisecond)
		require.NoError(t, q.Delete(ctx, stale[0]))

		msgs, err := q.Receive(ctx, 1, params)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, stale[0].ID(), msgs[0].ID())
	})

	t.Run("notify wakes a blocked receive", func(t *testing.T) {
		q := open(t, map[string]string{"wait_time": "5s"})
		go func() {
			time.Sleep(200 * time.Millisecond)
			_ = q.Send(ctx, core.NewMessage([]byte("wake"), nil), nil)
		}()

		start := time.Now()
		msgs, err := q.Receive(ctx, 1, nil)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("worker await", func(t *testing.T) {
		q := open(t, nil)
		w := queueworker.New(core.WithLogger(zerolog.Nop()))
		w.Dispatcher().Handle("echo", func(c queueworker.Context) (any, error) {
			return c.Param("v"), nil
		})
		for _, v := range []string{"1", "2"} {
			require.NoError(t, q.Send(ctx, core.NewMessage([]byte("echo"), map[string]string{"v": v}), nil))
		}

		res, err := w.Await(ctx, q, &core.ReceiveParams{BatchSize: 5, IdleTimeout: 500 * time.Millisecond})
		require.NoError(t, err)
		assert.Equal(t, "2", res)

		msgs, err := q.Receive(ctx, 5, &core.ReceiveParams{VisibilityTimeout: time.Millisecond})
		require.NoError(t, err)
		assert.Empty(t, msgs, "processed messages must be deleted")
	})

	t.Run("closed", func(t *testing.T) {
		q := open(t, nil)
		require.NoError(t, q.Close())
		require.NoError(t, q.Close())
		_, err := q.Receive(ctx, 1, nil)
		assert.ErrorIs(t, err, core.ErrQueueClosed)
		assert.ErrorIs(t, q.Send(ctx, core.NewMessage([]byte("x"), nil), nil), core.ErrQueueClosed)
	})
}

func TestNew_RequiresName(t *testing.T) {
	_, err := postgres.New(context.Background(), "postgres://localhost/none", "")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestFactory_RequiresURL(t *testing.T) {
	_, err := queue.Open(context.Background(), queue.Config{Driver: "postgres", Name: "jobs"})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestFactory_InvalidOption(t *testing.T) {
	_, err := queue.Open(context.Background(), queue.Config{
		Driver:  "postgres",
		URLs:    []string{"postgres://localhost/none"},
		Name:    "jobs",
		Options: map[string]string{"listen": "maybe"},
	})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}
