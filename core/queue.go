package core

import (
	"context"
	"sync/atomic"
)

// Queue defines the contract for queue client implementations.
// Each adapter under plugins/ implements this interface.
type Queue interface {
	Send(ctx context.Context, msg Message, params *SendParams) error

	// Receive returns at most max messages. An empty slice means nothing was
	// available within the receive parameters' wait time.
	Receive(ctx context.Context, max int, params *ReceiveParams) ([]Message, error)

	Delete(ctx context.Context, msg Message) error

	// CanDeleteMessage reports whether Delete is meaningful for this queue.
	// Queues that acknowledge on receipt return false.
	CanDeleteMessage() bool

	// Await blocks, delivering batches to the handlers registered with
	// OnReceive, until a handler stops the await, the queue's idle condition
	// is met, the context is cancelled or an error occurs.
	Await(ctx context.Context, params *ReceiveParams) error

	OnReceive(h BatchHandler) Subscription
	Off(s Subscription)

	Close() error
}

// Receiver is the subset of Queue needed by PollAwait.
type Receiver interface {
	Receive(ctx context.Context, max int, params *ReceiveParams) ([]Message, error)
}

// BatchHandler consumes one batch delivered during Await.
type BatchHandler func(ctx context.Context, ev *ReceiveEvent) error

// Subscription identifies a handler registered with OnReceive.
type Subscription uint64

// ReceiveEvent carries one delivered batch to the registered handlers and
// lets them halt the surrounding await loop. The batch is empty when a poll
// returned nothing.
type ReceiveEvent struct {
	messages []Message
	stopped  atomic.Bool
}

// NewReceiveEvent wraps a delivered batch.
func NewReceiveEvent(msgs []Message) *ReceiveEvent {
	return &ReceiveEvent{messages: msgs}
}

// Messages returns the batch in arrival order.
func (e *ReceiveEvent) Messages() []Message { return e.messages }

// StopAwait asks the queue to return from Await once the current batch has
// been handled.
func (e *ReceiveEvent) StopAwait() { e.stopped.Store(true) }

// AwaitStopped reports whether a handler asked to stop.
func (e *ReceiveEvent) AwaitStopped() bool { return e.stopped.Load() }
