package mock

import (
	"context"
	"sync"

	"github.com/miladsoleymani/queueworker/core"
)

// Queue is a test double for core.Queue. Receive hands out Batches one per
// call; Await emits the remaining Batches in order until a handler stops it
// or they run out.
type Queue struct {
	core.Emitter

	mu        sync.Mutex
	Batches   [][]core.Message
	CanDelete bool
	deleted   []core.Message
	sent      []SentMessage
	received  []ReceiveCall
	closed    bool

	SendErr    error
	ReceiveErr error
	DeleteErr  error

	// BeforeAwait runs when Await starts, before the first batch is emitted.
	BeforeAwait func()
	// BeforeBatch runs before each batch is emitted during Await.
	BeforeBatch func(i int)
}

// SentMessage records a message sent through Send.
type SentMessage struct {
	Message core.Message
	Params  *core.SendParams
}

// ReceiveCall records the arguments of a Receive call.
type ReceiveCall struct {
	Max    int
	Params *core.ReceiveParams
}

// NewQueue creates a Queue that will deliver the given batches.
func NewQueue(canDelete bool, batches ...[]core.Message) *Queue {
	return &Queue{Batches: batches, CanDelete: canDelete}
}

func (q *Queue) Send(_ context.Context, msg core.Message, params *core.SendParams) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.SendErr != nil {
		return q.SendErr
	}
	q.sent = append(q.sent, SentMessage{Message: msg, Params: params})
	return nil
}

func (q *Queue) Receive(_ context.Context, max int, params *core.ReceiveParams) ([]core.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.received = append(q.received, ReceiveCall{Max: max, Params: params})
	if q.ReceiveErr != nil {
		return nil, q.ReceiveErr
	}
	return q.nextBatch(), nil
}

func (q *Queue) nextBatch() []core.Message {
	if len(q.Batches) == 0 {
		return nil
	}
	b := q.Batches[0]
	q.Batches = q.Batches[1:]
	return b
}

func (q *Queue) Delete(_ context.Context, msg core.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.DeleteErr != nil {
		return q.DeleteErr
	}
	q.deleted = append(q.deleted, msg)
	return nil
}

func (q *Queue) CanDeleteMessage() bool { return q.CanDelete }

func (q *Queue) Await(ctx context.Context, _ *core.ReceiveParams) error {
	if q.BeforeAwait != nil {
		q.BeforeAwait()
	}
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.mu.Lock()
		batch := q.nextBatch()
		q.mu.Unlock()
		if batch == nil {
			return nil
		}
		if q.BeforeBatch != nil {
			q.BeforeBatch(i)
		}
		ev := core.NewReceiveEvent(batch)
		if err := q.Emit(ctx, ev); err != nil {
			return err
		}
		if ev.AwaitStopped() {
			return nil
		}
	}
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// Deleted returns the messages passed to Delete, in call order.
func (q *Queue) Deleted() []core.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]core.Message, len(q.deleted))
	copy(out, q.deleted)
	return out
}

// Sent returns all messages sent via Send.
func (q *Queue) Sent() []SentMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]SentMessage, len(q.sent))
	copy(out, q.sent)
	return out
}

// ReceiveCalls returns the recorded Receive calls.
func (q *Queue) ReceiveCalls() []ReceiveCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ReceiveCall, len(q.received))
	copy(out, q.received)
	return out
}

// IsClosed reports whether Close was called.
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
