package repositories

import (
	"fmt"

	"github.com/desertthunder/plexaa/internal/library"
	"github.com/desertthunder/plexaa/internal/models"
)

var _ library.TrackCache = (*TrackCacheAdapter)(nil)

// TrackCacheAdapter writes fetched content to the track and playlist repositories.
//
// Rows for the same server and rating key are refreshed in place. A UNIQUE violation from a
// concurrent writer that inserted the row first is ignored.
type TrackCacheAdapter struct {
	tracks    *TrackRepository
	playlists *PlaylistRepository
}

// NewTrackCacheAdapter creates a new TrackCacheAdapter with the given repositories
func NewTrackCacheAdapter(tracks *TrackRepository, playlists *PlaylistRepository) *TrackCacheAdapter {
	return &TrackCacheAdapter{tracks: tracks, playlists: playlists}
}

// SaveTracks caches tracks fetched from serverID.
func (a *TrackCacheAdapter) SaveTracks(serverID string, tracks []models.Track) error {
	_, err := a.saveTracks(serverID, tracks)
	return err
}

func (a *TrackCacheAdapter) saveTracks(serverID string, tracks []models.Track) ([]string, error) {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.RatingKey <= 0 || t.Title == "" {
			continue
		}
		cached, err := a.tracks.Upsert(serverID, t)
		if err != nil {
			if IsUniqueViolation(err) {
				if cached, err = a.tracks.GetByRatingKey(serverID, t.RatingKey); err == nil {
					ids = append(ids, cached.ID())
				}
				continue
			}
			return ids, fmt.Errorf("failed to cache track %s: %w", t.RatingKey, err)
		}
		ids = append(ids, cached.ID())
	}
	return ids, nil
}

// SavePlaylist caches playlist metadata, and its track order when items are loaded.
func (a *TrackCacheAdapter) SavePlaylist(serverID string, p models.Playlist) error {
	cached, err := a.playlists.Upsert(serverID, p)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to cache playlist %s: %w", p.Title, err)
	}
	if !p.Loaded() {
		return nil
	}

	ids, err := a.saveTracks(serverID, p.Items)
	if err != nil {
		return err
	}
	return a.playlists.SetTracks(cached.ID(), ids)
}
