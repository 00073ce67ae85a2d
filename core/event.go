package core

import (
	"context"
	"fmt"
	"maps"
)

// Event parameter names that address the typed fields of a ProcessEvent.
const (
	ParamMessage   = "message"
	ParamProcessor = "processor"
	ParamResult    = "result"
)

// ProcessEvent is the mutable context passed through processor selection and
// post-processing. A Worker reuses a single instance for sequential calls, so
// it must not be retained beyond the listener invocation.
type ProcessEvent struct {
	ctx       context.Context
	message   Message
	processor Processor
	result    any
	worker    *Worker
	params    map[string]any
}

// NewProcessEvent creates an empty event.
func NewProcessEvent() *ProcessEvent {
	return &ProcessEvent{ctx: context.Background()}
}

// Context returns the context of the in-flight dispatch.
func (e *ProcessEvent) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

func (e *ProcessEvent) SetContext(ctx context.Context) *ProcessEvent {
	e.ctx = ctx
	return e
}

func (e *ProcessEvent) Message() Message { return e.message }

func (e *ProcessEvent) SetMessage(m Message) *ProcessEvent {
	e.message = m
	return e
}

func (e *ProcessEvent) Processor() Processor { return e.processor }

func (e *ProcessEvent) SetProcessor(p Processor) *ProcessEvent {
	e.processor = p
	return e
}

func (e *ProcessEvent) Result() any { return e.result }

func (e *ProcessEvent) SetResult(r any) *ProcessEvent {
	e.result = r
	return e
}

// Worker returns the worker that issued the event. It is a back reference
// only and valid for the duration of the dispatch.
func (e *ProcessEvent) Worker() *Worker { return e.worker }

func (e *ProcessEvent) SetWorker(w *Worker) *ProcessEvent {
	e.worker = w
	return e
}

// Param returns a named parameter. The names message, processor and result
// read the typed fields.
func (e *ProcessEvent) Param(name string, def any) any {
	switch name {
	case ParamMessage:
		return e.message
	case ParamProcessor:
		return e.processor
	case ParamResult:
		return e.result
	}
	if v, ok := e.params[name]; ok {
		return v
	}
	return def
}

// SetParam stores a named parameter. The names message and processor must
// carry a Message and a Processor respectively.
func (e *ProcessEvent) SetParam(name string, v any) error {
	switch name {
	case ParamMessage:
		m, ok := v.(Message)
		if !ok && v != nil {
			return fmt.Errorf("%w: event parameter %q must be a Message, got %T", ErrInvalidParameter, name, v)
		}
		e.message = m
	case ParamProcessor:
		p, ok := v.(Processor)
		if !ok && v != nil {
			return fmt.Errorf("%w: event parameter %q must be a Processor, got %T", ErrInvalidParameter, name, v)
		}
		e.processor = p
	case ParamResult:
		e.result = v
	default:
		if e.params == nil {
			e.params = make(map[string]any)
		}
		e.params[name] = v
	}
	return nil
}

// Params returns every parameter, the typed fields included.
func (e *ProcessEvent) Params() map[string]any {
	out := maps.Clone(e.params)
	if out == nil {
		out = make(map[string]any, 3)
	}
	out[ParamMessage] = e.message
	out[ParamProcessor] = e.processor
	out[ParamResult] = e.result
	return out
}

// SetParams stores every entry of params through SetParam.
func (e *ProcessEvent) SetParams(params map[string]any) error {
	for name, v := range params {
		if err := e.SetParam(name, v); err != nil {
			return err
		}
	}
	return nil
}

// populate prepares the event for a new message, discarding the state of the
// previous dispatch.
func (e *ProcessEvent) populate(ctx context.Context, w *Worker, m Message) {
	e.ctx = ctx
	e.worker = w
	e.message = m
	e.processor = nil
	e.result = nil
}
