// Package queueworker provides the top-level API for the queue worker.
// It re-exports core types for convenience, so users can write:
//
//	w := queueworker.New()
//	w.Dispatcher().Handle("reports.daily", handler)
//	w.Await(ctx, q, nil)
package queueworker

import (
	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/processor"
)

// Re-export core types at the package level for ergonomic usage.
type (
	Message       = core.Message
	Envelope      = core.Envelope
	Queue         = core.Queue
	Processor     = core.Processor
	ProcessEvent  = core.ProcessEvent
	Worker        = core.Worker
	Option        = core.Option
	Request       = core.Request
	HandlerFunc   = core.HandlerFunc
	Context       = core.Context
	ReceiveParams = core.ReceiveParams
	SendParams    = core.SendParams
)

// NewMessage creates an Envelope with a fresh ID.
func NewMessage(content []byte, metadata map[string]string) *Envelope {
	return core.NewMessage(content, metadata)
}

// New creates a Worker with the forward strategy attached at
// processor.DefaultPriority.
func New(opts ...Option) *Worker {
	return NewWithStrategy(processor.NewForwardStrategy(nil), opts...)
}

// NewWithStrategy creates a Worker with s attached at
// processor.DefaultPriority. Keep s to detach it later.
func NewWithStrategy(s *processor.ForwardStrategy, opts ...Option) *Worker {
	w := core.New(opts...)
	w.Attach(s, processor.DefaultPriority)
	return w
}
