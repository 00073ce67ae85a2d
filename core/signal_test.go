//go:build unix

package core_test

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/internal/mock"
)

func TestWorker_AwaitStopsOnSignal(t *testing.T) {
	w := newWorker(core.WithSignals(syscall.SIGUSR1))
	defer w.Close()
	w.AttachSelector(always(echo), 1)

	q := mock.NewQueue(true, []core.Message{msg("1", "a")}, []core.Message{msg("2", "b")})
	q.BeforeAwait = func() {
		require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	}

	// the signal is delivered asynchronously, so the worker may observe it
	// after the first or the second batch but never before processing one.
	res, err := w.Await(context.Background(), q, nil)
	require.NoError(t, err)
	assert.Contains(t, []any{"a", "b"}, res)
	assert.NotEmpty(t, q.Deleted())
}

func TestWorker_IdleAwaitStopsOnSignal(t *testing.T) {
	w := newWorker(core.WithSignals(syscall.SIGUSR1))
	defer w.Close()
	w.AttachSelector(always(echo), 1)
	q := pollingQueue{mock.NewQueue(true)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
	}()

	res, err := w.Await(ctx, q, &core.ReceiveParams{PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, res)
}
