package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Dispatcher maps handler names to HandlerFuncs. The forward processor uses
// it to run the handler named by a message's content.
type Dispatcher struct {
	binder      Binder
	middlewares []MiddlewareFunc
	routes      []route
	matcher     NameMatcher
	mu          sync.RWMutex
}

type route struct {
	pattern string
	handler HandlerFunc
}

// NewDispatcher creates an empty Dispatcher using DefaultMatcher for name
// patterns and JSONBinder for Context.Bind.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		binder:  JSONBinder{},
		matcher: DefaultMatcher{},
	}
}

// SetMatcher replaces the name matcher.
func (d *Dispatcher) SetMatcher(m NameMatcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.matcher = m
}

// SetBinder replaces the binder used by Context.Bind.
func (d *Dispatcher) SetBinder(b Binder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.binder = b
}

// Use registers middleware. Given middleware [A, B], the call order is
// A -> B -> handler.
func (d *Dispatcher) Use(m MiddlewareFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, m)
}

// Handle registers a handler for a name pattern. Registering the same
// pattern twice replaces the earlier handler.
//
//	d.Handle("reports.*", func(c core.Context) (any, error) {
//	    return "report " + c.Name(), nil
//	})
func (d *Dispatcher) Handle(pattern string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, r := range d.routes {
		if r.pattern == pattern {
			d.routes[i].handler = h
			return
		}
	}
	d.routes = append(d.routes, route{pattern: pattern, handler: h})
}

// Handlers returns the registered patterns in registration order.
func (d *Dispatcher) Handlers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.routes))
	for i, r := range d.routes {
		out[i] = r.pattern
	}
	return out
}

// Dispatch runs the handler registered for name with params. An exact
// pattern match wins over wildcard patterns, which are tried in
// registration order.
func (d *Dispatcher) Dispatch(ctx context.Context, w *Worker, name string, params map[string]string) (any, error) {
	name = strings.TrimSpace(name)

	d.mu.RLock()
	h := d.lookup(name)
	mws := make([]MiddlewareFunc, len(d.middlewares))
	copy(mws, d.middlewares)
	binder := d.binder
	d.mu.RUnlock()

	if h == nil {
		return nil, fmt.Errorf("%w %q", ErrNoHandler, name)
	}

	c := NewContext(ctx, name, params, w, d, binder)
	return applyMiddleware(h, mws)(c)
}

// lookup must be called with d.mu held.
func (d *Dispatcher) lookup(name string) HandlerFunc {
	if name == "" {
		return nil
	}
	for _, r := range d.routes {
		if r.pattern == name {
			return r.handler
		}
	}
	for _, r := range d.routes {
		if d.matcher.Match(r.pattern, name) {
			return r.handler
		}
	}
	return nil
}

// applyMiddleware wraps a handler with middleware in reverse order.
// Given middleware [A, B, C], the call order is A -> B -> C -> handler.
func applyMiddleware(h HandlerFunc, mws []MiddlewareFunc) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
