// Package pipeline implements fetch-and-populate: the component that, for
// each display slot being rendered, serves a cached image synchronously or
// fetches, decodes, caches and delivers it asynchronously.
//
// Request flow
//
//   - Hit: Request probes the cache and calls OnReady before returning, on
//     the caller's goroutine.
//
//   - Miss: the request joins the in-flight registry for its key. The first
//     joiner starts one background load (fetch, decode, cache.Set); every
//     later joiner only queues its callbacks. When the load finishes, all
//     queued OnReady callbacks run once, together and in registration order,
//     on the delivery executor, and all receive the same image.
//
//   - Failure: a NetworkError or DecodeError is logged and the key is
//     forgotten, so the next Request retries. OnReady never runs for a
//     failed load. Callers that set OnFailure receive the error on the
//     delivery executor; callers that do not see nothing (blank tile).
//
// Per-key states: Absent -> Pending -> Resolved, or Absent -> Pending ->
// Failed -> Absent.
//
// Staleness
//
// The pipeline does not know about display slots. A callback may fire after
// the slot that asked has been rebound to another photo; the caller must
// capture the key it asked for and compare it with the slot's current key
// before applying the image (see package grid).
//
// There is no cancellation: a scheduled load always runs to completion and
// populates the cache even if nobody is still interested.
package pipeline
