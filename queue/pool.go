package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/miladsoleymani/queueworker/core"
)

// Pool opens queues on first use and keeps them until Close. Every queue
// shares the pool's base Config with only the Name replaced, so a worker can
// address many queues of one backend by name.
//
// Pool implements core.Locator.
type Pool struct {
	ctx  context.Context
	base Config

	mu     sync.Mutex
	queues map[string]core.Queue
	closed bool
}

// NewPool creates a Pool. ctx bounds the connection setup of queues opened
// later through the pool.
func NewPool(ctx context.Context, base Config) *Pool {
	return &Pool{ctx: ctx, base: base, queues: make(map[string]core.Queue)}
}

// Queue returns the queue named name, opening it if needed. An empty name
// selects the base Config's queue.
func (p *Pool) Queue(name string) (core.Queue, error) {
	if name == "" {
		name = p.base.Name
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty queue name", core.ErrNoQueue)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, core.ErrQueueClosed
	}
	if q, ok := p.queues[name]; ok {
		return q, nil
	}

	cfg := p.base
	cfg.Name = name
	q, err := Open(p.ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue %q: %w", name, err)
	}
	p.queues[name] = q
	return q, nil
}

// Close closes every queue opened by the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for name, q := range p.queues {
		if err := q.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue %q: %w", name, err))
		}
	}
	p.queues = nil
	return errors.Join(errs...)
}
