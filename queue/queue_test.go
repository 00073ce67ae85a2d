package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/internal/mock"
	"github.com/miladsoleymani/queueworker/queue"
)

type opened struct {
	cfgs   []queue.Config
	queues []*mock.Queue
}

func registerMock(t *testing.T, name string) *opened {
	t.Helper()
	o := &opened{}
	queue.Register(name, func(_ context.Context, cfg queue.Config) (core.Queue, error) {
		if cfg.Name == "broken" {
			return nil, errors.New("cannot connect")
		}
		q := mock.NewQueue(true)
		o.cfgs = append(o.cfgs, cfg)
		o.queues = append(o.queues, q)
		return q, nil
	})
	return o
}

func TestOpen(t *testing.T) {
	o := registerMock(t, "Mock-Open")

	q, err := queue.Open(context.Background(), queue.Config{Driver: "mock-open", Name: "jobs"})
	require.NoError(t, err)
	assert.Same(t, o.queues[0], q)
	assert.Contains(t, queue.Drivers(), "mock-open")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := queue.Open(context.Background(), queue.Config{Driver: "carrier-pigeon"})
	require.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestPool_OpensLazilyAndCaches(t *testing.T) {
	o := registerMock(t, "mock-pool")
	p := queue.NewPool(context.Background(), queue.Config{
		Driver:  "mock-pool",
		URLs:    []string{"mem://"},
		Name:    "default",
		Options: map[string]string{"k": "v"},
	})

	assert.Empty(t, o.cfgs)

	a1, err := p.Queue("a")
	require.NoError(t, err)
	a2, err := p.Queue("a")
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	def, err := p.Queue("")
	require.NoError(t, err)
	assert.NotSame(t, a1, def)

	require.Len(t, o.cfgs, 2)
	assert.Equal(t, "a", o.cfgs[0].Name)
	assert.Equal(t, "default", o.cfgs[1].Name)
	assert.Equal(t, "v", o.cfgs[0].Option("k", ""))
	assert.Equal(t, "mem://", o.cfgs[0].URL())

	_, err = p.Queue("broken")
	require.Error(t, err)

	require.NoError(t, p.Close())
	for _, q := range o.queues {
		assert.True(t, q.IsClosed())
	}

	_, err = p.Queue("a")
	require.ErrorIs(t, err, core.ErrQueueClosed)
	require.NoError(t, p.Close())
}

func TestPool_AsWorkerLocator(t *testing.T) {
	registerMock(t, "mock-locator")
	p := queue.NewPool(context.Background(), queue.Config{Driver: "mock-locator"})
	defer p.Close()

	w := core.New(core.WithLocator(p))
	_, err := w.Dispatch(context.Background(), core.Request{Action: core.ActionReceive, Queue: ""})
	require.ErrorIs(t, err, core.ErrInvalidParameter)
	assert.Equal(t, core.ClassInvalidParameter, core.Classify(err))

	res, err := w.Dispatch(context.Background(), core.Request{Action: core.ActionReceive, Queue: "jobs"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, res)
}

func TestConfig_Helpers(t *testing.T) {
	var cfg queue.Config
	assert.Empty(t, cfg.URL())
	assert.Equal(t, "d", cfg.Option("missing", "d"))

	cfg.Options = map[string]string{"n": "3", "b": "true", "d": "90", "bad": "x"}

	n, err := cfg.IntOption("n", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = cfg.IntOption("missing", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = cfg.IntOption("bad", 1)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	b, err := cfg.BoolOption("b", false)
	require.NoError(t, err)
	assert.True(t, b)
	_, err = cfg.BoolOption("bad", false)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	d, err := cfg.DurationOption("d", 0)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
	_, err = cfg.DurationOption("bad", 0)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}
