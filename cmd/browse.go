package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/formatter"
	"github.com/desertthunder/plexaa/internal/shared"
	"github.com/desertthunder/plexaa/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Browse lists the children of a browse node.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	b, err := r.connectLibrary()
	if err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if id == "" {
		id = browse.RootID
	}

	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	items, err := b.ChildrenContext(ctx, id)
	if err != nil {
		return explain(fmt.Errorf("failed to browse %s: %w", id, err))
	}
	r.logger.Debug("browsed", "id", id, "count", len(items))

	title := id
	if id == browse.RootID {
		title = "Library"
	}
	return r.render(cmd, "browse", func(f formatter.Format) ([]byte, error) {
		return formatter.FormatItems(f, title, items)
	})
}

// Play builds the queue around a track and starts it.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	mediaID := cmd.StringArg("media-id")
	if mediaID == "" {
		return fmt.Errorf("%w: media id is required", shared.ErrMissingArgument)
	}

	session, err := r.playback()
	if err != nil {
		return err
	}

	q, err := session.Prepare(ctx, mediaID, cmd.Duration("position"))
	if err != nil {
		return explain(fmt.Errorf("failed to play %s: %w", mediaID, err))
	}
	return r.showQueue(ctx, q, cmd.Duration("wait"))
}

// Resume restarts the last played track.
func (r *Runner) Resume(ctx context.Context, cmd *cli.Command) error {
	session, err := r.playback()
	if err != nil {
		return err
	}

	q, err := session.Resume(ctx)
	if errors.Is(err, tasks.ErrNothingToPlay) {
		r.writePlain("Nothing to resume yet. Use `plexaa play <media-id>` first.\n")
		return nil
	}
	if err != nil {
		return explain(fmt.Errorf("failed to resume: %w", err))
	}
	return r.showQueue(ctx, q, cmd.Duration("wait"))
}

func (r *Runner) showQueue(ctx context.Context, q *browse.Queue, wait time.Duration) error {
	data, err := formatter.FormatQueue(formatter.Text, q)
	if err != nil {
		return err
	}
	r.writePlainln("%s", data)

	if wait <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	r.drainProgress(ctx)
	return nil
}

// Reload reselects the server and reloads the catalog, optionally warming the track cache.
func (r *Runner) Reload(ctx context.Context, cmd *cli.Command) error {
	b, err := r.connectLibrary()
	if err != nil {
		return err
	}

	start := time.Now()
	b.Reload()

	playlists, err := r.src.Catalog(ctx)
	if err != nil {
		return explain(fmt.Errorf("failed to reload catalog: %w", err))
	}
	if sel := r.src.Selected(); sel != nil {
		r.writePlain("Server: %s (%s)\n", sel.Resource.Name, sel.Connection.URI)
	}
	r.writePlain("✓ %d playlists\n", len(playlists))

	if !cmd.Bool("warm") {
		return nil
	}

	artists, err := r.src.Artists(ctx)
	if err != nil {
		return explain(fmt.Errorf("failed to load artists: %w", err))
	}
	r.writePlain("✓ %d artists\n", len(artists))

	albums, err := r.src.Albums(ctx)
	if err != nil {
		return explain(fmt.Errorf("failed to load albums: %w", err))
	}
	r.writePlain("✓ %d albums\n", len(albums))

	tracks, err := r.src.AllTracks(ctx)
	if err != nil {
		return explain(fmt.Errorf("failed to load tracks: %w", err))
	}
	r.writePlain("✓ %d tracks cached\n", len(tracks))

	r.logger.Info("library warmed", "duration", time.Since(start))
	return nil
}
