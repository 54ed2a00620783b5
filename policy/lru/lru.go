// Package lru implements least-recently-used ordering for the image cache.
package lru

import "github.com/IvanBrykalov/thumbcache/policy"

type lru struct {
	h policy.Hooks
}

type factory struct{}

// New returns a Policy that keeps recently displayed images resident.
// LRU never nominates victims itself; the shard trims from the LRU end when
// a count or cost limit is exceeded.
func New() policy.Policy { return factory{} }

func (factory) New(h policy.Hooks) policy.ShardPolicy { return &lru{h: h} }

func (p *lru) OnAdd(e policy.Entry) (evict policy.Entry) {
	p.h.PushFront(e)
	return nil
}

// OnGet promotes on every cache hit, so thumbnails still on screen stay warm.
func (p *lru) OnGet(e policy.Entry) { p.h.MoveToFront(e) }

func (p *lru) OnUpdate(e policy.Entry) { p.h.MoveToFront(e) }

func (p *lru) OnRemove(policy.Entry) {}
