package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Worker is the dispatch loop. It selects a Processor for each message,
// runs it, runs the post-process hooks and, when consuming from a queue,
// deletes messages the queue allows to be deleted.
//
// A Worker handles one call at a time: Process, Receive and Await must not
// be invoked concurrently on the same instance. StopAwaiting is the only
// method safe to call from other goroutines.
type Worker struct {
	event      *ProcessEvent
	selectors  chain[SelectorFunc]
	post       chain[PostProcessFunc]
	dispatcher *Dispatcher
	locator    Locator
	serializer Serializer
	logger     zerolog.Logger
	signals    *signalWatch
	stopped    atomic.Bool
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger. The default is the zerolog global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithDispatcher replaces the handler dispatcher used by Forward.
func WithDispatcher(d *Dispatcher) Option {
	return func(w *Worker) { w.dispatcher = d }
}

// WithLocator sets how queue names in a Request are resolved.
func WithLocator(l Locator) Option {
	return func(w *Worker) { w.locator = l }
}

// WithSerializer sets how string messages in a Request are decoded.
func WithSerializer(s Serializer) Option {
	return func(w *Worker) { w.serializer = s }
}

// WithSignals makes the worker stop awaiting when one of sigs is received.
// Signals are observed between batches, when the stop flag is read.
func WithSignals(sigs ...os.Signal) Option {
	return func(w *Worker) {
		if len(sigs) > 0 {
			w.signals = newSignalWatch(sigs)
		}
	}
}

// New creates a Worker with no selectors attached. Use queueworker.New for a
// worker with the default forward strategy installed.
func New(opts ...Option) *Worker {
	w := &Worker{
		dispatcher: NewDispatcher(),
		serializer: Base64JSON{},
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.stopped.Store(true)
	return w
}

// Close releases the OS signal subscription, if any.
func (w *Worker) Close() error {
	if w.signals != nil {
		w.signals.stop()
		w.signals = nil
	}
	return nil
}

// Logger returns the worker logger.
func (w *Worker) Logger() zerolog.Logger { return w.logger }

// Dispatcher returns the handler dispatcher used by Forward.
func (w *Worker) Dispatcher() *Dispatcher { return w.dispatcher }

// Serializer returns the message serializer.
func (w *Worker) Serializer() Serializer { return w.serializer }

// ProcessEvent returns the event reused across dispatches, creating it on
// first use.
func (w *Worker) ProcessEvent() *ProcessEvent {
	if w.event == nil {
		w.SetProcessEvent(NewProcessEvent())
	}
	return w.event
}

// SetProcessEvent replaces the reused event.
func (w *Worker) SetProcessEvent(e *ProcessEvent) {
	e.SetWorker(w)
	w.event = e
}

// AttachSelector adds a processor selector. Selectors run in descending
// priority and the first non-nil Processor wins.
func (w *Worker) AttachSelector(fn SelectorFunc, priority int) ListenerHandle {
	return ListenerHandle{kind: selectorListener, id: w.selectors.add(fn, priority)}
}

// AttachPostProcess adds a hook run after every successful Process call.
// All hooks run, in descending priority.
func (w *Worker) AttachPostProcess(fn PostProcessFunc, priority int) ListenerHandle {
	return ListenerHandle{kind: postProcessListener, id: w.post.add(fn, priority)}
}

// Attach lets an aggregate register its listeners at priority.
func (w *Worker) Attach(a ListenerAggregate, priority int) {
	a.Attach(w, priority)
}

// Detach removes a listener. It reports whether the listener was attached.
func (w *Worker) Detach(h ListenerHandle) bool {
	switch h.kind {
	case selectorListener:
		return w.selectors.remove(h.id)
	case postProcessListener:
		return w.post.remove(h.id)
	}
	return false
}

// Forward runs the dispatcher handler registered for name.
func (w *Worker) Forward(ctx context.Context, name string, params map[string]string) (any, error) {
	return w.dispatcher.Dispatch(ctx, w, name, params)
}

// Process selects a processor for msg, runs it and the post-process hooks,
// and returns the possibly hook-transformed result. Processor errors are
// returned unchanged.
func (w *Worker) Process(ctx context.Context, msg Message) (any, error) {
	if isNilMessage(msg) {
		return nil, fmt.Errorf("%w: missing or invalid message", ErrInvalidParameter)
	}

	ev := w.ProcessEvent()
	ev.populate(ctx, w, msg)

	p := w.selectProcessor(ev)
	if p == nil {
		return nil, fmt.Errorf("%w for message %q", ErrNoProcessorSelected, msg.ID())
	}
	if b, ok := p.(WorkerBinder); ok {
		b.BindWorker(w)
	}
	ev.SetProcessor(p)

	w.logger.Debug().
		Str("message_id", msg.ID()).
		Str("processor", fmt.Sprintf("%T", p)).
		Msg("processing message")

	result, err := p.Process(ctx, msg)
	if err != nil {
		return nil, err
	}
	ev.SetResult(result)

	for _, hook := range w.post.snapshot() {
		if err := hook(ev); err != nil {
			return ev.Result(), err
		}
	}
	return ev.Result(), nil
}

func (w *Worker) selectProcessor(ev *ProcessEvent) Processor {
	for _, sel := range w.selectors.snapshot() {
		if p := sel(ev); p != nil {
			return p
		}
	}
	return nil
}

// Receive fetches up to max messages from q and processes them in order,
// deleting each one after it was processed if q allows deletion. It returns
// the result of the last processed message, or an empty map when nothing
// was processed. A processor error aborts the remaining batch.
func (w *Worker) Receive(ctx context.Context, q Queue, max int, params *ReceiveParams) (any, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: queue is required", ErrInvalidParameter)
	}
	if max < 1 {
		max = 1
	}

	msgs, err := q.Receive(ctx, max, params)
	if err != nil {
		return nil, fmt.Errorf("queueworker: receive: %w", err)
	}

	w.logger.Debug().Int("max_messages", max).Int("received", len(msgs)).Msg("received batch")

	var last any = map[string]any{}
	for _, msg := range msgs {
		res, ok, err := w.consume(ctx, q, msg)
		if err != nil {
			return nil, err
		}
		if ok {
			last = res
		}
	}
	return last, nil
}

// Await consumes from q until the stop flag is raised, the queue stops
// delivering, or ctx is cancelled. Each delivered batch is processed as in
// Receive and the stop flag is checked after every batch. It returns the
// result of the last processed message.
func (w *Worker) Await(ctx context.Context, q Queue, params *ReceiveParams) (any, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: queue is required", ErrInvalidParameter)
	}

	w.stopped.Store(false)
	defer w.stopped.Store(true)

	var (
		last       any = map[string]any{}
		handlerErr error
	)
	sub := q.OnReceive(func(ctx context.Context, ev *ReceiveEvent) error {
		for _, msg := range ev.Messages() {
			res, ok, err := w.consume(ctx, q, msg)
			if err != nil {
				handlerErr = err
				return err
			}
			if ok {
				last = res
			}
		}
		if w.IsAwaitingStopped() {
			ev.StopAwait()
		}
		return nil
	})
	defer q.Off(sub)

	w.logger.Info().Msg("awaiting messages")

	err := q.Await(ctx, params)
	if handlerErr != nil {
		return last, handlerErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return last, fmt.Errorf("queueworker: await: %w", err)
	}

	w.logger.Info().Msg("stopped awaiting messages")
	return last, nil
}

// consume processes one delivered entry and deletes it when allowed. Nil
// entries are skipped and reported with ok=false.
func (w *Worker) consume(ctx context.Context, q Queue, msg Message) (any, bool, error) {
	if isNilMessage(msg) {
		w.logger.Debug().Msg("skipping malformed message")
		return nil, false, nil
	}

	res, err := w.Process(ctx, msg)
	if err != nil {
		return nil, false, err
	}

	if q.CanDeleteMessage() {
		if err := q.Delete(ctx, msg); err != nil {
			return res, true, fmt.Errorf("queueworker: delete message %q: %w", msg.ID(), err)
		}
	}
	return res, true, nil
}

// Send publishes msg on q.
func (w *Worker) Send(ctx context.Context, q Queue, msg Message, params *SendParams) error {
	if q == nil {
		return fmt.Errorf("%w: queue is required", ErrInvalidParameter)
	}
	if isNilMessage(msg) {
		return fmt.Errorf("%w: missing or invalid message", ErrInvalidParameter)
	}
	if err := q.Send(ctx, msg, params); err != nil {
		return fmt.Errorf("queueworker: send: %w", err)
	}
	return nil
}

// StopAwaiting asks a running Await to return after the current batch.
// It is safe to call from any goroutine.
func (w *Worker) StopAwaiting() {
	w.stopped.Store(true)
}

// IsAwaitingStopped reports whether the worker is not (or no longer)
// awaiting. Pending OS stop signals are applied before the flag is read.
func (w *Worker) IsAwaitingStopped() bool {
	if w.signals != nil {
		if sig, ok := w.signals.pending(); ok {
			w.logger.Info().Str("signal", sig.String()).Msg("stop signal received")
			w.StopAwaiting()
		}
	}
	return w.stopped.Load()
}
