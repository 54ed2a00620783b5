package cache

import "image"

// Cache is the keyed image cache consumed by the fetch pipeline.
// All methods are safe for concurrent use by multiple goroutines; callers
// never lock. The cache is lookup-only: there is no iteration.
type Cache interface {
	// Get returns the decoded image for key and whether it was resident.
	// A miss is an expected outcome, not an error. An evicted key misses.
	Get(key string) (image.Image, bool)

	// Set inserts or replaces the image for key. Setting the same key twice
	// leaves exactly one entry holding the latest image.
	Set(key string, img image.Image)

	// Remove deletes key if present and reports whether it was.
	Remove(key string) bool

	// Len returns the number of resident entries across all shards.
	Len() int

	// Close marks the cache closed: Get misses and Set is ignored afterwards.
	Close() error
}

// Peeker is implemented by caches that can look a key up without reporting a
// hit or miss and without promoting the entry.
type Peeker interface {
	Peek(key string) (image.Image, bool)
}
