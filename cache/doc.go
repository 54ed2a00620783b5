// Package cache provides the keyed in-memory image cache: decoded images
// indexed by their source URL.
//
// Design
//
//   - Concurrency: keys are spread over shards, each guarded by its own
//     mutex. Background fetchers insert while the delivery goroutine reads;
//     callers never lock.
//
//   - Retention: unbounded by default. Options.Capacity (entry count) and
//     Options.MaxCost (e.g. decoded bytes via PixelBytes) turn on eviction.
//     Both limits are split evenly across shards.
//
//   - Policies: eviction order is pluggable via the policy package. LRU is
//     the default; 2Q (package policy/twoq) resists scroll-through pollution.
//
//   - Transparency: an evicted key behaves exactly like a key that was never
//     cached. Get never fails.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals;
//     metrics/prom exports them to Prometheus.
//
// Basic usage
//
//	c := cache.New(cache.Options{})
//	c.Set(url, img)
//	if img, ok := c.Get(url); ok {
//	    _ = img
//	}
//
// Bounded by memory
//
//	c := cache.New(cache.Options{
//	    MaxCost: 64 << 20, // ~64 MiB of decoded pixels
//	    Policy:  twoq.New(64, 128),
//	})
package cache
