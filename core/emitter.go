package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Emitter keeps the batch handlers registered on a queue. Adapters embed it
// to satisfy the OnReceive/Off half of the Queue interface.
type Emitter struct {
	mu       sync.RWMutex
	next     Subscription
	handlers []emitterEntry
}

type emitterEntry struct {
	id Subscription
	h  BatchHandler
}

// OnReceive registers h and returns a handle for Off.
func (e *Emitter) OnReceive(h BatchHandler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.handlers = append(e.handlers, emitterEntry{id: e.next, h: h})
	return e.next
}

// Off removes the handler registered under s. Unknown handles are ignored.
func (e *Emitter) Off(s Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, entry := range e.handlers {
		if entry.id == s {
			e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Listeners returns the number of registered handlers.
func (e *Emitter) Listeners() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// Emit calls every registered handler in registration order. The first
// handler error stops the emission and is returned.
func (e *Emitter) Emit(ctx context.Context, ev *ReceiveEvent) error {
	e.mu.RLock()
	handlers := make([]BatchHandler, len(e.handlers))
	for i, entry := range e.handlers {
		handlers[i] = entry.h
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// PollAwait implements Await for pull-based queues: it receives batches of
// params.BatchSize messages and emits them until a handler stops the await,
// params.IdleTimeout elapses without messages, or ctx ends.
//
// An empty poll is still a batch boundary: handlers receive an event with no
// messages, so stop requests are seen while the queue is idle.
func PollAwait(ctx context.Context, r Receiver, em *Emitter, params *ReceiveParams) error {
	if params == nil {
		params = &ReceiveParams{}
	}
	batch := params.BatchSize
	if batch < 1 {
		batch = 1
	}

	lastActivity := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := r.Receive(ctx, batch, params)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return ctx.Err()
			}
			return err
		}

		if len(msgs) == 0 {
			if params.IdleTimeout > 0 && time.Since(lastActivity) >= params.IdleTimeout {
				return nil
			}
			ev := NewReceiveEvent(nil)
			if err := em.Emit(ctx, ev); err != nil {
				return err
			}
			if ev.AwaitStopped() {
				return nil
			}
			if params.PollInterval > 0 {
				if err := sleepContext(ctx, params.PollInterval); err != nil {
					return err
				}
			}
			continue
		}
		lastActivity = time.Now()

		ev := NewReceiveEvent(msgs)
		if err := em.Emit(ctx, ev); err != nil {
			return err
		}
		if ev.AwaitStopped() {
			return nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
