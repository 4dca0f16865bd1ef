package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/formatter"
	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/shared"
	"github.com/desertthunder/plexaa/internal/tasks"
	"github.com/urfave/cli/v3"
)

// serverCriteria scopes cache listings to the pinned server, when there is one.
func (r *Runner) serverCriteria() map[string]any {
	criteria := map[string]any{}
	if pinned := r.settings.PinnedServer(); pinned != "" {
		criteria["server_id"] = pinned
	}
	return criteria
}

// CachedPlaylists lists playlists kept in the offline cache.
func (r *Runner) CachedPlaylists(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}

	cached, err := r.playlists.List(r.serverCriteria())
	if err != nil {
		return fmt.Errorf("failed to list cached playlists: %w", err)
	}

	items := make([]browse.Item, 0, len(cached))
	for _, c := range cached {
		p := c.Playlist()
		items = append(items, browse.Item{
			ID:         p.ID(),
			Title:      p.Title,
			Subtitle:   fmt.Sprintf("%d tracks", p.LeafCount),
			Browsable:  true,
			DurationMS: p.Duration,
		})
	}

	return r.render(cmd, "playlists", func(f formatter.Format) ([]byte, error) {
		return formatter.FormatItems(f, "Cached playlists", items)
	})
}

// CachedPlaylist shows one cached playlist with its tracks.
func (r *Runner) CachedPlaylist(ctx context.Context, cmd *cli.Command) error {
	key, err := models.ParseRatingKey(cmd.StringArg("rating-key"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidID, err)
	}
	if err := r.store(); err != nil {
		return err
	}

	cached, err := r.findPlaylist(key)
	if err != nil {
		return err
	}

	rows, err := r.playlists.Tracks(cached.ID())
	if err != nil {
		return fmt.Errorf("failed to load cached tracks: %w", err)
	}
	tracks := make([]models.Track, 0, len(rows))
	for _, row := range rows {
		tracks = append(tracks, row.Track())
	}

	p := cached.Playlist()
	return r.render(cmd, "playlist-"+p.ID(), func(f formatter.Format) ([]byte, error) {
		return formatter.FormatPlaylist(f, p, tracks)
	})
}

func (r *Runner) findPlaylist(key models.RatingKey) (*models.CachedPlaylist, error) {
	if pinned := r.settings.PinnedServer(); pinned != "" {
		return r.playlists.GetByRatingKey(pinned, key)
	}

	all, err := r.playlists.List(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached playlists: %w", err)
	}
	for _, p := range all {
		if p.Playlist().RatingKey == key {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, key)
}

// CachedTracks lists cached tracks, optionally for one album.
func (r *Runner) CachedTracks(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}

	criteria := r.serverCriteria()
	title := "Cached tracks"
	if album := cmd.String("album"); album != "" {
		key, err := models.ParseRatingKey(album)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidID, err)
		}
		criteria["album_key"] = key
		title = "Album " + album
	}

	rows, err := r.tracks.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list cached tracks: %w", err)
	}

	items := make([]browse.Item, 0, len(rows))
	for _, row := range rows {
		t := row.Track()
		items = append(items, browse.Item{
			ID:          t.RatingKey.String(),
			Title:       t.Title,
			Subtitle:    t.Artist(),
			Album:       t.ParentTitle,
			Playable:    true,
			DurationMS:  t.Duration,
			TrackNumber: t.Index,
		})
	}

	return r.render(cmd, "tracks", func(f formatter.Format) ([]byte, error) {
		return formatter.FormatItems(f, title, items)
	})
}

// PruneCache deletes every prefetched audio file.
func (r *Runner) PruneCache(ctx context.Context, cmd *cli.Command) error {
	prefetcher, err := r.openPrefetcher()
	if err != nil {
		return err
	}
	prefetcher.Update(nil)

	removed := 0
	for done := false; !done; {
		select {
		case update := <-r.progress:
			if update.Phase == tasks.Evict {
				removed += update.Step
			}
		default:
			done = true
		}
	}

	r.logger.Info("pruned audio cache", "dir", r.config.Cache.Dir, "removed", removed)
	r.writePlain("✓ Removed %d cached tracks\n", removed)
	return nil
}
