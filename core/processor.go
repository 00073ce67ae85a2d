package core

import "context"

// Processor turns a Message into a result. Results are opaque to the worker
// and only meaningful to post-process hooks and the caller.
type Processor interface {
	Process(ctx context.Context, msg Message) (any, error)
}

// WorkerBinder is implemented by processors that call back into the worker.
// BindWorker is invoked before every Process call, since a processor may be
// shared between workers.
type WorkerBinder interface {
	BindWorker(w *Worker)
}

// ProcessorFunc adapts an ordinary function to the Processor interface.
type ProcessorFunc func(ctx context.Context, msg Message) (any, error)

func (f ProcessorFunc) Process(ctx context.Context, msg Message) (any, error) {
	return f(ctx, msg)
}

// SelectorFunc inspects an event and optionally returns the Processor that
// should handle its message. Returning nil passes to the next selector.
type SelectorFunc func(e *ProcessEvent) Processor

// PostProcessFunc runs after a Processor. It may replace the event result.
type PostProcessFunc func(e *ProcessEvent) error

// ListenerAggregate attaches a related set of selectors and hooks at once.
type ListenerAggregate interface {
	Attach(w *Worker, priority int)
	Detach(w *Worker)
}
