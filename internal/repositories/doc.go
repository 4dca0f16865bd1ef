// Package repositories implements SQLite persistence for settings and the offline content cache.
//
// Key Implementations:
//   - [SettingsRepository] : key-value settings (pinned server and library, resume state, playback flags)
//   - [TrackRepository] : tracks fetched from playlists and albums, keyed by server and rating key
//   - [PlaylistRepository] : playlist metadata and ordered track membership
//   - [TrackCacheAdapter] : receives fetched content from the music source and writes it through
//
// Cached rows are replaced in place when the same server and rating key is fetched again, so the
// cache always reflects the latest listing.
package repositories
