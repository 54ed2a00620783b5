package cache

import (
	"image"
	"sync/atomic"

	"github.com/IvanBrykalov/thumbcache/internal/util"
	"github.com/IvanBrykalov/thumbcache/policy/lru"
)

// Sharded is the in-memory image cache. Keys are spread over independently
// locked shards so that background decoders inserting images do not contend
// with the delivery goroutine reading them.
type Sharded struct {
	shards []*shard
	closed atomic.Bool
	opt    Options

	// cache-wide totals maintained by the shards under their own locks.
	entries util.PaddedCounter
	cost    util.PaddedCounter
}

var (
	_ Cache  = (*Sharded)(nil)
	_ Peeker = (*Sharded)(nil)
)

// New constructs a cache. It never fails; see Options for defaults.
func New(opt Options) *Sharded {
	if opt.Capacity < 0 {
		opt.Capacity = 0
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	// Without a limit nothing may be evicted, so a policy that nominates
	// victims on its own (2Q) is replaced by LRU.
	if opt.Policy == nil || (opt.Capacity == 0 && opt.MaxCost <= 0) {
		opt.Policy = lru.New()
	}
	if opt.MaxCost > 0 && opt.Cost == nil {
		opt.Cost = PixelBytes
	}

	n := util.ShardCount(opt.Shards)
	c := &Sharded{
		shards: make([]*shard, n),
		opt:    opt,
	}
	perShardCap := int(util.SplitCeil(int64(opt.Capacity), n))
	perShardCost := util.SplitCeil(opt.MaxCost, n)
	for i := range c.shards {
		c.shards[i] = newShard(c, perShardCap, perShardCost)
	}
	return c
}

// Get returns the image for key. On hit the entry is promoted by the policy.
func (c *Sharded) Get(key string) (image.Image, bool) {
	if c.closed.Load() {
		return nil, false
	}
	return c.shardFor(key).get(key)
}

// Peek is Get without metrics or promotion.
func (c *Sharded) Peek(key string) (image.Image, bool) {
	if c.closed.Load() {
		return nil, false
	}
	return c.shardFor(key).peek(key)
}

// Set inserts or replaces the image for key. A nil image is ignored: the
// pipeline only stores successfully decoded images.
func (c *Sharded) Set(key string, img image.Image) {
	if c.closed.Load() || img == nil {
		return
	}
	c.shardFor(key).set(key, img, c.costOf(img))
}

// Remove deletes key if present.
func (c *Sharded) Remove(key string) bool {
	if c.closed.Load() {
		return false
	}
	return c.shardFor(key).remove(key)
}

// Len returns the number of resident entries.
func (c *Sharded) Len() int { return int(c.entries.Load()) }

// Close marks the cache closed. It is a soft close and returns nil.
func (c *Sharded) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *Sharded) shardFor(key string) *shard {
	return c.shards[util.ShardIndex(util.HashKey(key), len(c.shards))]
}

func (c *Sharded) costOf(img image.Image) int64 {
	if c.opt.MaxCost <= 0 || c.opt.Cost == nil {
		return 0
	}
	if v := c.opt.Cost(img); v > 0 {
		return v
	}
	return 0
}

func (c *Sharded) reportSize() {
	c.opt.Metrics.Size(int(c.entries.Load()), c.cost.Load())
}
