package browse

import (
	"strconv"
	"strings"

	"github.com/desertthunder/plexaa/internal/models"
)

// Reserved node ids.
const (
	RootID           = "/"
	HomeID           = "__HOME__"
	PlaylistsID      = "__PLAYLISTS__"
	ArtistsID        = "__ARTISTS__"
	AlbumsID         = "__ALBUMS__"
	RecentlyPlayedID = "__RECENTLY_PLAYED__"
	RecentlyAddedID  = "__RECENTLY_ADDED__"
	OnDeckID         = "__ON_DECK__"

	// EmptyRootID is handed to clients that may not browse.
	EmptyRootID = "@empty@"
)

const (
	ArtistPrefix = "artist_"
	AlbumPrefix  = "album_"
	pagePrefix   = "page_"
)

// ChildID joins a parent id and a child key.
func ChildID(parent, child string) string {
	return parent + "/" + child
}

// SplitChild splits id at its last slash. The root id is not a child.
func SplitChild(id string) (parent, child string, ok bool) {
	i := strings.LastIndex(id, "/")
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}

// PageID names page n (0-based) of a playlist.
func PageID(playlistID string, n int) string {
	return ChildID(playlistID, pagePrefix+strconv.Itoa(n))
}

// ParsePage reports whether id names a playlist page and returns its parts.
func ParsePage(id string) (playlistID string, n int, ok bool) {
	parent, child, ok := SplitChild(id)
	if !ok || !strings.HasPrefix(child, pagePrefix) {
		return "", 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(child, pagePrefix))
	if err != nil || n < 0 {
		return "", 0, false
	}
	return parent, n, true
}

func ArtistID(key models.RatingKey) string { return ArtistPrefix + key.String() }

func AlbumID(key models.RatingKey) string { return AlbumPrefix + key.String() }

// isReserved reports whether id is one of the category ids.
func isReserved(id string) bool {
	switch id {
	case RootID, HomeID, PlaylistsID, ArtistsID, AlbumsID, RecentlyPlayedID, RecentlyAddedID, OnDeckID, EmptyRootID:
		return true
	}
	return false
}
