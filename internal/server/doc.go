// Package server provides HTTP routing, middleware, the browse API and the Plex PIN login callback.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with per-path method dispatch.
//
// # Browse API
//
// [API] exposes the browse tree to non-terminal clients:
//
//	GET  /healthz         → status and whether a Plex token is present
//	GET  /browse?id=<id>  → children of a node (root when id is empty)
//	POST /prepare         → {"media_id", "position_ms"} starts playback, returns the queue
//	POST /reload          → drop cached content and the selected server
//	GET  /events          → server-sent NETWORK_FAILURE and LOGIN_REQUIRED events
//
// Domain errors map to status codes through [StatusFor].
//
// # PIN Callback Handler
//
// [PinHandler] receives the browser redirect plex.tv sends once the user approves a login PIN.
// It checks the pin parameter against the PIN it waits for, asks plex.tv for the PIN's token, and
// sends the result through a channel. It only processes one callback.
package server
