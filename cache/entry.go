package cache

import "image"

// entry is an intrusive doubly linked list element owned by a shard.
type entry struct {
	key  string
	img  image.Image
	cost int64

	// head is MRU, tail is LRU.
	prev *entry
	next *entry
}

// Key implements policy.Entry.
func (e *entry) Key() string { return e.key }

// Cost implements policy.Entry.
func (e *entry) Cost() int64 { return e.cost }
