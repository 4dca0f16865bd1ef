// Package library loads Plex content behind readiness gates.
//
// A [Gate] tracks one kind of resource (the playlist catalog, a playlist's items, an album's
// tracks, ...) through Created, Initializing, and then Initialized or Error. Callers that ask for
// a resource before it resolves are queued and called back exactly once, in the order they asked.
//
// [Source] owns a gate per kind. Its Load methods start a fetch on a worker pool only when none is
// in flight; the fetch returns a [FetchResult] whose [Status] separates authorization expiry from
// other failures. [SelectServer] picks the first remote connection of the account's servers that
// answers a liveness probe, honouring a pinned server without falling back to another one.
package library
