package core

import (
	"context"
	"fmt"
	"sync"
)

// Context is what a forwarded handler receives. It carries the handler name
// the message addressed, the message metadata as parameters, and a back
// reference to the worker for sub-dispatch.
type Context interface {
	// Context returns the underlying context.Context.
	Context() context.Context

	// SetContext replaces the underlying context.Context.
	// Useful for middleware that enriches the context with values or deadlines.
	SetContext(ctx context.Context)

	// Name returns the handler name taken from the message content.
	Name() string

	// Params returns all invocation parameters.
	Params() map[string]string

	// Param returns a single parameter, or "" if absent.
	Param(key string) string

	// Bind decodes the parameters into v using the dispatcher's Binder.
	Bind(v any) error

	// Worker returns the worker running the dispatch, nil outside of one.
	Worker() *Worker

	// Forward dispatches another handler through the same dispatcher.
	Forward(name string, params map[string]string) (any, error)

	// Set stores a key-value pair in the context store.
	// Used by middleware to pass data to downstream handlers.
	Set(key string, val any)

	// Get retrieves a value from the context store.
	Get(key string) (any, bool)
}

// HandlerFunc handles a forwarded message and returns its result.
//
//	d.Handle("reports.daily", func(c core.Context) (any, error) {
//	    var req struct {
//	        Day string `json:"day"`
//	    }
//	    if err := c.Bind(&req); err != nil {
//	        return nil, err
//	    }
//	    return buildReport(c.Context(), req.Day)
//	})
type HandlerFunc func(c Context) (any, error)

// MiddlewareFunc wraps a HandlerFunc to add cross-cutting behavior.
//
//	func Timing() core.MiddlewareFunc {
//	    return func(next core.HandlerFunc) core.HandlerFunc {
//	        return func(c core.Context) (any, error) {
//	            // before
//	            res, err := next(c)
//	            // after
//	            return res, err
//	        }
//	    }
//	}
type MiddlewareFunc func(HandlerFunc) HandlerFunc

type handlerContext struct {
	ctx        context.Context
	name       string
	params     map[string]string
	worker     *Worker
	dispatcher *Dispatcher
	binder     Binder
	store      map[string]any
	mu         sync.RWMutex
}

// NewContext creates a handler Context. The Dispatcher calls this for every
// dispatch; it is exported for testing handlers in isolation.
func NewContext(ctx context.Context, name string, params map[string]string, w *Worker, d *Dispatcher, binder Binder) Context {
	if params == nil {
		params = map[string]string{}
	}
	return &handlerContext{
		ctx:        ctx,
		name:       name,
		params:     params,
		worker:     w,
		dispatcher: d,
		binder:     binder,
		store:      make(map[string]any),
	}
}

func (c *handlerContext) Context() context.Context { return c.ctx }

func (c *handlerContext) SetContext(ctx context.Context) { c.ctx = ctx }

func (c *handlerContext) Name() string { return c.name }

func (c *handlerContext) Params() map[string]string { return c.params }

func (c *handlerContext) Param(key string) string { return c.params[key] }

func (c *handlerContext) Worker() *Worker { return c.worker }

func (c *handlerContext) Bind(v any) error {
	if c.binder == nil {
		return fmt.Errorf("queueworker: no binder configured")
	}
	if err := c.binder.Bind(c.params, v); err != nil {
		return fmt.Errorf("queueworker: bind: %w", err)
	}
	return nil
}

func (c *handlerContext) Forward(name string, params map[string]string) (any, error) {
	if c.dispatcher == nil {
		return nil, fmt.Errorf("%w %q", ErrNoHandler, name)
	}
	return c.dispatcher.Dispatch(c.ctx, c.worker, name, params)
}

func (c *handlerContext) Set(key string, val any) {
	c.mu.Lock()
	c.store[key] = val
	c.mu.Unlock()
}

func (c *handlerContext) Get(key string) (any, bool) {
	c.mu.RLock()
	val, ok := c.store[key]
	c.mu.RUnlock()
	return val, ok
}
