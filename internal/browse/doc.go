// Package browse projects the music library into the tree a browsing client walks.
//
// Node ids are plain strings. Categories use reserved ids ("/", "__PLAYLISTS__", ...), artists
// and albums carry a prefix ("artist_12", "album_34"), playlists use their rating key, and
// playable children join their parent id and their own key with a slash ("34/567"). Playlists
// longer than [PageSize] are split into page nodes ("34/page_2").
//
// [Browser] answers load-children requests against a [library.Source], deferring the answer until
// the underlying resource is ready, and resolves playable ids into playback queues.
package browse
