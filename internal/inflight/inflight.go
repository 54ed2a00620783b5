// Package inflight is the per-key registry of pending work used to coalesce
// concurrent requests for the same key.
//
// Unlike a blocking singleflight, nobody waits here: the first caller to
// Join a key becomes its leader and starts the work; later callers only
// append their waiter. The leader hands the collected waiters out with
// Complete, which also forgets the key so the next Join starts afresh.
//
// Invariants (all under mu):
//   - a key is present iff exactly one unit of work for it is outstanding;
//   - waiters are kept in Join order;
//   - Complete returns each waiter exactly once.
package inflight

import "sync"

// Group is safe for concurrent use. The zero value is ready.
type Group[W any] struct {
	mu sync.Mutex
	m  map[string]*call[W]
}

type call[W any] struct {
	waiters []W
}

// Join registers w under key and reports whether the caller is the leader,
// i.e. whether it must start the work for key.
func (g *Group[W]) Join(key string, w W) (leader bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.m == nil {
		g.m = make(map[string]*call[W])
	}
	if c, ok := g.m[key]; ok {
		c.waiters = append(c.waiters, w)
		return false
	}
	g.m[key] = &call[W]{waiters: []W{w}}
	return true
}

// Complete forgets key and returns its waiters in Join order.
// It returns nil if key is not pending.
func (g *Group[W]) Complete(key string) []W {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.m[key]
	if !ok {
		return nil
	}
	delete(g.m, key)
	return c.waiters
}

// Waiting returns the number of waiters registered for key (0 if absent).
func (g *Group[W]) Waiting(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.m[key]; ok {
		return len(c.waiters)
	}
	return 0
}

// Len returns the number of pending keys.
func (g *Group[W]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
