package cache

import (
	"image"

	"github.com/IvanBrykalov/thumbcache/policy"
)

// Options configures the cache. The zero value is an unbounded cache with
// automatic sharding; defaults are applied in New:
//   - nil Policy   => LRU
//   - no limit set => LRU whatever Policy says, so nothing is ever evicted
//   - Shards <= 0  => auto (power of two)
//   - nil Metrics  => NoopMetrics
//   - nil Cost     => PixelBytes (only consulted when MaxCost > 0)
type Options struct {
	// Capacity is the entry count limit. 0 keeps every image (unbounded).
	Capacity int

	// MaxCost bounds the summed entry cost, e.g. decoded bytes. 0 disables it.
	// Both limits are split evenly across shards.
	MaxCost int64
	Cost    func(img image.Image) int64

	// Shards is rounded up to a power of two.
	Shards int

	// Policy orders entries for eviction. It is ignored when no limit is set.
	Policy policy.Policy

	// OnEvict is called under the shard lock; keep it lightweight.
	OnEvict func(key string, img image.Image, reason EvictReason)
	Metrics Metrics
}

// PixelBytes estimates the in-memory size of a decoded image as
// width*height*4 (RGBA).
func PixelBytes(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
