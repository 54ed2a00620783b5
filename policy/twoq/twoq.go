// Package twoq implements the 2Q policy for the image cache.
//
// A fast scroll through the grid touches many thumbnails exactly once. Under
// plain LRU that pass flushes images the user keeps returning to. 2Q admits
// first-time keys into a small probation queue; only a second hit promotes an
// image into the main (protected) part of the shard list. Keys evicted from
// probation are remembered as ghosts, and a ghost that comes back is admitted
// straight into the protected part.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/thumbcache/internal/util"
	"github.com/IvanBrykalov/thumbcache/policy"
)

type twoQ struct {
	h policy.Hooks

	probationCap int
	ghostCap     int

	// probation: MRU at Front, LRU at Back. Element values are policy.Entry.
	probation *list.List
	probIdx   map[string]*list.Element

	// ghosts: keys only, MRU at Front.
	ghosts   *list.List
	ghostIdx map[string]*list.Element
}

type factory struct {
	probationCap int
	ghostCap     int
}

// New returns a 2Q policy factory. Sizes are per shard: a common choice is
// probation ≈ 25% and ghosts ≈ 50% of the per-shard capacity.
func New(probationCap, ghostCap int) policy.Policy {
	if probationCap < 1 {
		probationCap = 1
	}
	if ghostCap < 1 {
		ghostCap = 1
	}
	return factory{probationCap: probationCap, ghostCap: ghostCap}
}

// Sized is New with probation at 25% and ghosts at 50% of the per-shard
// capacity of a cache built with the given Capacity and Shards options.
func Sized(capacity, shards int) policy.Policy {
	perShard := int(util.SplitCeil(int64(capacity), util.ShardCount(shards)))
	return New(perShard/4, perShard/2)
}

func (f factory) New(h policy.Hooks) policy.ShardPolicy {
	return &twoQ{
		h:            h,
		probationCap: f.probationCap,
		ghostCap:     f.ghostCap,
		probation:    list.New(),
		probIdx:      make(map[string]*list.Element),
		ghosts:       list.New(),
		ghostIdx:     make(map[string]*list.Element),
	}
}

// OnAdd admits a new entry. A returning ghost skips probation. Otherwise the
// entry joins probation, and the probation LRU is nominated once the queue
// is over capacity.
func (q *twoQ) OnAdd(e policy.Entry) (evict policy.Entry) {
	k := e.Key()
	q.h.PushFront(e)
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghosts.Remove(ge)
		delete(q.ghostIdx, k)
		return nil
	}

	q.probIdx[k] = q.probation.PushFront(e)
	if q.probation.Len() > q.probationCap {
		if back := q.probation.Back(); back != nil {
			return back.Value.(policy.Entry)
		}
	}
	return nil
}

// OnGet promotes a probation entry to the protected part.
func (q *twoQ) OnGet(e policy.Entry) {
	k := e.Key()
	if el, ok := q.probIdx[k]; ok && el.Value.(policy.Entry) == e {
		q.probation.Remove(el)
		delete(q.probIdx, k)
	}
	q.h.MoveToFront(e)
}

// OnUpdate replaces an image in place; it counts as a use.
func (q *twoQ) OnUpdate(e policy.Entry) { q.OnGet(e) }

// OnRemove turns probation victims into ghosts. Protected entries leave no
// trace.
func (q *twoQ) OnRemove(e policy.Entry) {
	k := e.Key()
	el, ok := q.probIdx[k]
	if !ok || el.Value.(policy.Entry) != e {
		return
	}
	q.probation.Remove(el)
	delete(q.probIdx, k)

	if old, ok := q.ghostIdx[k]; ok {
		q.ghosts.Remove(old)
	}
	q.ghostIdx[k] = q.ghosts.PushFront(k)
	for q.ghosts.Len() > q.ghostCap {
		tail := q.ghosts.Back()
		delete(q.ghostIdx, tail.Value.(string))
		q.ghosts.Remove(tail)
	}
}
