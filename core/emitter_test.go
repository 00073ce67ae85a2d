package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/internal/mock"
)

func TestEmitter_OnReceiveOff(t *testing.T) {
	var em core.Emitter
	var got []string

	a := em.OnReceive(func(context.Context, *core.ReceiveEvent) error {
		got = append(got, "a")
		return nil
	})
	em.OnReceive(func(context.Context, *core.ReceiveEvent) error {
		got = append(got, "b")
		return nil
	})
	assert.Equal(t, 2, em.Listeners())

	require.NoError(t, em.Emit(context.Background(), core.NewReceiveEvent(nil)))
	assert.Equal(t, []string{"a", "b"}, got)

	em.Off(a)
	em.Off(a)
	assert.Equal(t, 1, em.Listeners())
}

func TestEmitter_StopsOnFirstError(t *testing.T) {
	var em core.Emitter
	boom := errors.New("boom")
	called := false
	em.OnReceive(func(context.Context, *core.ReceiveEvent) error { return boom })
	em.OnReceive(func(context.Context, *core.ReceiveEvent) error {
		called = true
		return nil
	})

	err := em.Emit(context.Background(), core.NewReceiveEvent(nil))
	assert.Same(t, boom, err)
	assert.False(t, called)
}

func TestPollAwait_StopsWhenHandlerAsks(t *testing.T) {
	q := mock.NewQueue(true, []core.Message{msg("1", "a")}, []core.Message{msg("2", "b")})
	var em core.Emitter
	var batches int
	em.OnReceive(func(_ context.Context, ev *core.ReceiveEvent) error {
		batches++
		ev.StopAwait()
		return nil
	})

	err := core.PollAwait(context.Background(), q, &em, &core.ReceiveParams{BatchSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, batches)
	assert.Equal(t, 4, q.ReceiveCalls()[0].Max)
}

func TestPollAwait_IdleTimeout(t *testing.T) {
	q := mock.NewQueue(true, []core.Message{msg("1", "a")})
	var em core.Emitter
	var batches int
	var idle int
	em.OnReceive(func(_ context.Context, ev *core.ReceiveEvent) error {
		if len(ev.Messages()) == 0 {
			idle++
			return nil
		}
		batches++
		return nil
	})

	params := &core.ReceiveParams{IdleTimeout: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond}
	err := core.PollAwait(context.Background(), q, &em, params)
	require.NoError(t, err)
	assert.Equal(t, 1, batches)
	assert.Greater(t, len(q.ReceiveCalls()), 1)
	assert.Equal(t, len(q.ReceiveCalls())-2, idle, "every empty poll but the last is emitted")
}

func TestPollAwait_StopWhileIdle(t *testing.T) {
	q := mock.NewQueue(true)
	var em core.Emitter
	var idle int
	em.OnReceive(func(_ context.Context, ev *core.ReceiveEvent) error {
		assert.Empty(t, ev.Messages())
		idle++
		if idle == 3 {
			ev.StopAwait()
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := core.PollAwait(ctx, q, &em, &core.ReceiveParams{PollInterval: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 3, idle)
	assert.Len(t, q.ReceiveCalls(), 3)
}

func TestPollAwait_ContextCancel(t *testing.T) {
	q := mock.NewQueue(true)
	var em core.Emitter

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := core.PollAwait(ctx, q, &em, &core.ReceiveParams{PollInterval: 5 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollAwait_ReceiveAndHandlerErrors(t *testing.T) {
	q := mock.NewQueue(true)
	q.ReceiveErr = errors.New("connection reset")
	var em core.Emitter

	err := core.PollAwait(context.Background(), q, &em, nil)
	assert.Same(t, q.ReceiveErr, err)

	q = mock.NewQueue(true, []core.Message{msg("1", "a")})
	boom := errors.New("boom")
	em.OnReceive(func(context.Context, *core.ReceiveEvent) error { return boom })

	err = core.PollAwait(context.Background(), q, &em, nil)
	assert.Same(t, boom, err)
}
