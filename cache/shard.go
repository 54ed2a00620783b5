package cache

import (
	"image"
	"sync"

	"github.com/IvanBrykalov/thumbcache/policy"
)

// shard is an independent partition of the cache with its own lock, map and
// intrusive list (head=MRU, tail=LRU).
type shard struct {
	owner *Sharded

	// ---- guarded by mu ----
	mu      sync.Mutex
	m       map[string]*entry
	head    *entry
	tail    *entry
	len     int
	cost    int64
	cap     int   // 0 = unbounded
	maxCost int64 // 0 = disabled

	pol policy.ShardPolicy
}

func newShard(owner *Sharded, capacity int, maxCost int64) *shard {
	s := &shard{
		owner:   owner,
		m:       make(map[string]*entry),
		cap:     capacity,
		maxCost: maxCost,
	}
	s.pol = owner.opt.Policy.New(shardHooks{s: s})
	return s
}

// get takes the write lock: a hit reorders the list.
func (s *shard) get(key string) (image.Image, bool) {
	s.mu.Lock()
	e, ok := s.m[key]
	if ok {
		s.pol.OnGet(e)
	}
	s.mu.Unlock()

	if !ok {
		s.owner.opt.Metrics.Miss()
		return nil, false
	}
	s.owner.opt.Metrics.Hit()
	return e.img, true
}

func (s *shard) peek(key string) (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.m[key]; ok {
		return e.img, true
	}
	return nil, false
}

func (s *shard) set(key string, img image.Image, cost int64) {
	s.mu.Lock()
	if e, ok := s.m[key]; ok {
		s.addCost(cost - e.cost)
		e.img = img
		e.cost = cost
		s.pol.OnUpdate(e)
	} else {
		e := &entry{key: key, img: img, cost: cost}
		s.m[key] = e
		if victim := s.pol.OnAdd(e); victim != nil {
			s.evict(victim.(*entry), EvictPolicy)
		}
	}
	s.enforceLimitsLocked()
	s.mu.Unlock()

	s.owner.reportSize()
}

func (s *shard) remove(key string) bool {
	s.mu.Lock()
	e, ok := s.m[key]
	if ok {
		s.pol.OnRemove(e)
		s.unlink(e)
		delete(s.m, key)
	}
	s.mu.Unlock()

	if ok {
		s.owner.reportSize()
	}
	return ok
}

// -------------------- internals (mu held) --------------------

func (s *shard) addCost(d int64) {
	s.cost += d
	s.owner.cost.Add(d)
}

func (s *shard) pushFront(e *entry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
	s.len++
	s.owner.entries.Add(1)
	s.addCost(e.cost)
}

func (s *shard) moveToFront(e *entry) {
	if e == s.head {
		return
	}
	s.detach(e)
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *shard) detach(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.head == e {
		s.head = e.next
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

// unlink removes e from the list and the shard counters.
func (s *shard) unlink(e *entry) {
	s.detach(e)
	s.len--
	s.owner.entries.Add(-1)
	s.addCost(-e.cost)
}

func (s *shard) evict(e *entry, reason EvictReason) {
	s.pol.OnRemove(e)
	s.unlink(e)
	delete(s.m, e.key)
	s.owner.opt.Metrics.Evict(reason)
	if cb := s.owner.opt.OnEvict; cb != nil {
		cb(e.key, e.img, reason)
	}
}

// enforceLimitsLocked trims from the LRU end until both limits hold.
// The most recent entry is never evicted to satisfy the cost limit alone,
// so a single oversized image still gets displayed from cache once.
func (s *shard) enforceLimitsLocked() {
	if s.cap > 0 {
		for s.len > s.cap && s.tail != nil {
			s.evict(s.tail, EvictCapacity)
		}
	}
	if s.maxCost > 0 {
		for s.cost > s.maxCost && s.tail != nil && s.tail != s.head {
			s.evict(s.tail, EvictCost)
		}
	}
}

// -------------------- policy hooks --------------------

type shardHooks struct{ s *shard }

func (h shardHooks) MoveToFront(e policy.Entry) { h.s.moveToFront(e.(*entry)) }
func (h shardHooks) PushFront(e policy.Entry)   { h.s.pushFront(e.(*entry)) }
func (h shardHooks) Remove(e policy.Entry)      { h.s.unlink(e.(*entry)) }
func (h shardHooks) Len() int                   { return h.s.len }

func (h shardHooks) Back() policy.Entry {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
