package core

import "sync"

// chain is a priority ordered list of listeners. Higher priorities run
// first; equal priorities run in attach order.
type chain[T any] struct {
	mu      sync.RWMutex
	seq     uint64
	entries []chainEntry[T]
}

type chainEntry[T any] struct {
	id       uint64
	priority int
	fn       T
}

func (c *chain[T]) add(fn T, priority int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	e := chainEntry[T]{id: c.seq, priority: priority, fn: fn}

	i := len(c.entries)
	for j, existing := range c.entries {
		if existing.priority < priority {
			i = j
			break
		}
	}
	c.entries = append(c.entries, chainEntry[T]{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = e
	return e.id
}

func (c *chain[T]) remove(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.entries {
		if e.id == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot returns the listeners in run order.
func (c *chain[T]) snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.fn
	}
	return out
}

func (c *chain[T]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type listenerKind uint8

const (
	selectorListener listenerKind = iota + 1
	postProcessListener
)

// ListenerHandle identifies a selector or post-process hook attached to a
// Worker so it can be detached later.
type ListenerHandle struct {
	kind listenerKind
	id   uint64
}
