// Package queue opens queue adapters by driver name. Adapters under plugins/
// register themselves from init(), so a blank import is enough to make a
// driver available:
//
//	import _ "github.com/miladsoleymani/queueworker/plugins/redis"
//
//	q, err := queue.Open(ctx, queue.Config{Driver: "redis", URLs: []string{"redis://localhost:6379"}, Name: "jobs"})
package queue

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/miladsoleymani/queueworker/core"
)

// Factory creates a Queue from the given Config.
type Factory func(ctx context.Context, cfg Config) (core.Queue, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a named queue factory. Plugins call this from init().
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strings.ToLower(name)] = factory
}

// Open instantiates a queue using the factory registered for cfg.Driver.
func Open(ctx context.Context, cfg Config) (core.Queue, error) {
	mu.RLock()
	f, ok := factories[strings.ToLower(cfg.Driver)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown queue driver %q (registered: %s)",
			core.ErrInvalidParameter, cfg.Driver, strings.Join(Drivers(), ", "))
	}
	return f(ctx, cfg)
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
