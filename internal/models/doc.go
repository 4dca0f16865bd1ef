// Package models defines the Plex domain types and the cached entities persisted by repositories.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects decoded from plex.tv and media server JSON
//   - [Resource], [Connection] : servers authorized for an account and their addresses
//   - [Section] : library sections; music libraries have type "artist"
//   - [Playlist], [Track], [Album], [Artist] : browseable content
//   - [Pin], [Account] : PIN login exchange and account lookup
//
// 2. Persistent Entities implementing [Model]
//   - [CachedTrack] : tracks written through on every playlist or album fetch
//   - [CachedPlaylist] : playlist metadata with ordered track membership
//
// Plex identifies content with numeric rating keys that arrive as JSON strings; [RatingKey] decodes both forms.
package models
