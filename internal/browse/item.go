package browse

import (
	"fmt"

	"github.com/desertthunder/plexaa/internal/models"
)

// Item is one node as shown to a browsing client. Browsable items have children; playable items
// can be handed to [Browser.Prepare].
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	Album       string `json:"album,omitempty"`
	Browsable   bool   `json:"browsable"`
	Playable    bool   `json:"playable"`
	ArtURL      string `json:"art_url,omitempty"`
	StreamURL   string `json:"stream_url,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
}

// ArtFunc turns a server-relative thumbnail path into an absolute URL.
type ArtFunc func(path string) string

func (f ArtFunc) resolve(path string) string {
	if f == nil || path == "" {
		return ""
	}
	return f(path)
}

func categoryItem(id, title string) Item {
	return Item{ID: id, Title: title, Browsable: true}
}

func playlistItem(p models.Playlist, art ArtFunc) Item {
	return Item{
		ID:         p.ID(),
		Title:      p.Title,
		Subtitle:   fmt.Sprintf("%d tracks", p.LeafCount),
		Browsable:  true,
		ArtURL:     art.resolve(p.Composite),
		DurationMS: p.Duration,
	}
}

func artistItem(a models.Artist, art ArtFunc) Item {
	return Item{
		ID:        ArtistID(a.RatingKey),
		Title:     a.Title,
		Browsable: true,
		ArtURL:    art.resolve(a.Thumb),
	}
}

func albumItem(a models.Album, art ArtFunc) Item {
	it := Item{
		ID:        AlbumID(a.RatingKey),
		Title:     a.Title,
		Subtitle:  a.ParentTitle,
		Browsable: true,
		ArtURL:    art.resolve(a.Thumb),
	}
	if a.Year > 0 {
		it.Subtitle = fmt.Sprintf("%s (%d)", a.ParentTitle, a.Year)
	}
	return it
}

// trackItem builds a playable item whose id is the track key under parent.
func trackItem(parent string, t models.Track, art ArtFunc) Item {
	return Item{
		ID:          ChildID(parent, t.RatingKey.String()),
		Title:       t.Title,
		Subtitle:    t.Artist(),
		Album:       t.ParentTitle,
		Playable:    true,
		ArtURL:      art.resolve(t.Art()),
		DurationMS:  t.Duration,
		TrackNumber: t.Index,
	}
}

func trackItems(parent string, tracks []models.Track, art ArtFunc) []Item {
	out := make([]Item, 0, len(tracks))
	for _, t := range tracks {
		if !isTrack(t) {
			continue
		}
		out = append(out, trackItem(parent, t, art))
	}
	return out
}

// isTrack skips playlist entries that are not audio tracks, such as videos in mixed playlists.
func isTrack(t models.Track) bool {
	return t.Type == "" || t.Type == "track"
}
