// Package tasks runs playback around the browse layer with real-time progress reporting.
//
// # Session
//
// [Session] turns a playable media id into a queue (via a [Preparer]), hands it to the external
// [Player], and records the current media id and position so [Session.Resume] can pick up where
// playback stopped. Shuffle and repeat flags are persisted alongside.
//
// # Prefetch
//
// After every prepare and index change the session computes the next tracks in play order
// ([NextIndices]) and passes them to a [Prefetcher], which downloads them with a bounded worker
// pool behind a rate limiter and evicts everything else.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default so reporting never blocks.
package tasks
