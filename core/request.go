package core

import (
	"context"
	"fmt"
	"strings"
)

// Actions accepted by Worker.Dispatch.
const (
	ActionProcess = "process"
	ActionReceive = "receive"
	ActionAwait   = "await"
	ActionSend    = "send"
)

// Locator resolves queue names used in a Request.
type Locator interface {
	Queue(name string) (Queue, error)
}

// Queues is a fixed name to Queue Locator.
type Queues map[string]Queue

func (qs Queues) Queue(name string) (Queue, error) {
	q, ok := qs[name]
	if !ok || q == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoQueue, name)
	}
	return q, nil
}

// Request is a named operation for Worker.Dispatch, the entry point used by
// command line or RPC front ends.
type Request struct {
	// Action is one of process, receive, await or send (case-insensitive).
	Action string

	// Message is a Message or its Serializer string form. Used by process
	// and send.
	Message any

	// Queue is a Queue or a name resolved with the worker's Locator. Used by
	// receive, await and send.
	Queue any

	// MaxMessages bounds a receive batch. Zero means 1.
	MaxMessages int

	// Params holds receive parameters for receive/await and send parameters
	// for send, in any shape accepted by ParseReceiveParams.
	Params any
}

// Dispatch validates req and runs the requested operation.
func (w *Worker) Dispatch(ctx context.Context, req Request) (any, error) {
	action := strings.ToLower(strings.TrimSpace(req.Action))

	switch action {
	case ActionProcess:
		msg, err := w.requestMessage(req.Message)
		if err != nil {
			return nil, err
		}
		return w.Process(ctx, msg)

	case ActionReceive, ActionAwait:
		q, err := w.requestQueue(req.Queue)
		if err != nil {
			return nil, err
		}
		params, err := ParseReceiveParams(req.Params)
		if err != nil {
			return nil, err
		}
		if action == ActionAwait {
			return w.Await(ctx, q, params)
		}
		if req.MaxMessages < 0 {
			return nil, fmt.Errorf("%w: max messages must be at least 1, got %d", ErrInvalidParameter, req.MaxMessages)
		}
		return w.Receive(ctx, q, req.MaxMessages, params)

	case ActionSend:
		q, err := w.requestQueue(req.Queue)
		if err != nil {
			return nil, err
		}
		msg, err := w.requestMessage(req.Message)
		if err != nil {
			return nil, err
		}
		params, err := ParseSendParams(req.Params)
		if err != nil {
			return nil, err
		}
		if err := w.Send(ctx, q, msg, params); err != nil {
			return nil, err
		}
		return msg, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperation, req.Action)
	}
}

func (w *Worker) requestMessage(v any) (Message, error) {
	switch m := v.(type) {
	case Message:
		if isNilMessage(m) {
			return nil, fmt.Errorf("%w: missing or invalid message", ErrInvalidParameter)
		}
		return m, nil
	case string:
		return w.serializer.Unserialize(m)
	case []byte:
		return w.serializer.Unserialize(string(m))
	default:
		return nil, fmt.Errorf("%w: missing or invalid message (got %T)", ErrInvalidParameter, v)
	}
}

func (w *Worker) requestQueue(v any) (Queue, error) {
	switch q := v.(type) {
	case Queue:
		return q, nil
	case string:
		if w.locator == nil {
			return nil, fmt.Errorf("%w: no locator configured to resolve queue %q", ErrInvalidParameter, q)
		}
		resolved, err := w.locator.Queue(q)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		return resolved, nil
	default:
		return nil, fmt.Errorf("%w: queue must be a name or a Queue, got %T", ErrInvalidParameter, v)
	}
}
