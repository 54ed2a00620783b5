// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// HashKey hashes a cache key for shard selection.
// Keys are image URLs, which share long common prefixes (scheme, host,
// path), so a hash with good avalanche on the tail bytes matters more here
// than raw speed on short keys.
func HashKey(key string) uint64 {
	return xxhash.Sum64String(key)
}
