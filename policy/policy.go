// Package policy defines the contract between the image cache shards and
// pluggable eviction strategies.
//
// A policy never owns entries. It orders them through Hooks provided by the
// shard and, on admission, may nominate a victim. Eviction is invisible to
// cache callers: a Get for an evicted key is an ordinary miss.
package policy

// Entry is the view of a resident cache entry a policy may use.
type Entry interface {
	// Key is the cache key (the image URL).
	Key() string
	// Cost is the entry weight, e.g. decoded pixel bytes (0 = uniform).
	Cost() int64
}

// Hooks expose O(1) list operations over a shard's MRU/LRU list.
//
// Concurrency: all hook calls happen under the shard lock.
// Hooks manage only the list; the shard owns the key->entry map.
type Hooks interface {
	// MoveToFront promotes the entry to MRU.
	MoveToFront(Entry)
	// PushFront inserts the entry at MRU (used on admission).
	PushFront(Entry)
	// Remove detaches the entry from the list.
	Remove(Entry)
	// Back returns the current LRU entry (or nil if empty).
	Back() Entry
	// Len returns the number of resident entries in the shard.
	Len() int
}

// ShardPolicy is a per-shard policy instance bound to shard hooks.
// All methods are invoked under the shard lock.
//
//   - OnAdd may return an eviction candidate. The shard evicts it and then
//     calls OnRemove for it.
//   - OnGet/OnUpdate typically promote the entry.
//   - OnRemove is a notification; the shard performs the actual deletion.
type ShardPolicy interface {
	OnAdd(Entry) (evict Entry)
	OnGet(Entry)
	OnUpdate(Entry)
	OnRemove(Entry)
}

// Policy is a factory for shard-local policy instances.
type Policy interface {
	New(Hooks) ShardPolicy
}
