package util

import "runtime"

// MaxShards caps the automatic shard count.
const MaxShards = 256

// ShardCount normalizes a requested shard count.
// n <= 0 picks nextPow2(2*GOMAXPROCS); any other value is rounded up to a
// power of two. The result is clamped to [1..MaxShards].
func ShardCount(n int) int {
	if n <= 0 {
		p := runtime.GOMAXPROCS(0)
		if p < 1 {
			p = 1
		}
		n = 2 * p
	}
	s := int(NextPow2(uint64(n)))
	if s > MaxShards {
		s = MaxShards
	}
	return s
}

// ShardIndex maps a 64-bit hash to a shard index.
// shards is expected to be a power of two (see ShardCount); other counts
// fall back to modulo.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}

// SplitCeil divides total evenly across n parts, rounding up.
// A non-positive total stays 0 (limit disabled).
func SplitCeil(total int64, n int) int64 {
	if total <= 0 || n <= 0 {
		return 0
	}
	return (total + int64(n) - 1) / int64(n)
}
