// Package services implements the remote clients: [Account] for plex.tv and [Server] for Plex media servers.
//
// # Account
//
// [APIService] wraps the plex.tv v2 API. It lists the resources (servers and their connections)
// authorized for a token and runs the PIN login exchange: [APIService.CreatePin] issues a code,
// the user approves it at [APIService.AuthURL], and [APIService.CheckPin] returns the auth token.
//
// # Media servers
//
// [PlexClient] holds the client identity and transports. [PlexClient.Dial] returns a [PlexServer]
// bound to one connection URI and token. Every request carries X-Plex-Token and asks for JSON;
// responses are a MediaContainer whose Metadata or Directory array holds the items.
//
// Content requests use a [retryablehttp] transport from [NewHTTPClient]. Liveness probes use
// [NewProbeClient], which never retries, so server selection moves on to the next connection quickly.
//
// # Error Handling
//
// Status codes map onto shared sentinels:
//   - [shared.ErrAuthExpired] : 401, the token must be replaced
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrAPIRequest] : any other non-2xx
//   - [shared.ErrServiceUnavailable] : the connection failed
package services
