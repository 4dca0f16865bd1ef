package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/plexaa/internal/formatter"
	"github.com/desertthunder/plexaa/internal/shared"
	"github.com/urfave/cli/v3"
)

// ListServers lists the media servers the account can reach, marking the pinned one.
func (r *Runner) ListServers(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.connectLibrary(); err != nil {
		return err
	}

	servers, err := r.src.Servers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}
	r.logger.Debug("listed servers", "count", len(servers))

	pinned := r.settings.PinnedServer()
	return r.render(cmd, "servers", func(f formatter.Format) ([]byte, error) {
		return formatter.FormatServers(f, servers, pinned)
	})
}

// PinServer stores the server every later selection must use.
func (r *Runner) PinServer(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: server id is required", shared.ErrMissingArgument)
	}
	if err := r.store(); err != nil {
		return err
	}
	if err := r.settings.PinServer(id); err != nil {
		return fmt.Errorf("failed to pin server: %w", err)
	}
	r.logger.Info("pinned server", "id", id)
	r.writePlain("✓ Pinned server %s\n", id)
	return nil
}

// UnpinServer clears the pinned server.
func (r *Runner) UnpinServer(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}
	if err := r.settings.PinServer(""); err != nil {
		return fmt.Errorf("failed to unpin server: %w", err)
	}
	r.writePlain("✓ Server selection is automatic\n")
	return nil
}

// ListLibraries lists the music sections of the selected server.
func (r *Runner) ListLibraries(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.connectLibrary(); err != nil {
		return err
	}

	sections, err := r.src.MusicLibraries(ctx)
	if err != nil {
		return explain(err)
	}
	if sel := r.src.Selected(); sel != nil {
		r.logger.Debug("listed libraries", "server", sel.Resource.Name, "count", len(sections))
	}

	pinned := r.settings.PinnedLibrary()
	return r.render(cmd, "libraries", func(f formatter.Format) ([]byte, error) {
		return formatter.FormatLibraries(f, sections, pinned)
	})
}

// PinLibrary stores the music section to browse.
func (r *Runner) PinLibrary(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("key")
	if key == "" {
		return fmt.Errorf("%w: section key is required", shared.ErrMissingArgument)
	}
	if err := r.store(); err != nil {
		return err
	}
	if err := r.settings.PinLibrary(key); err != nil {
		return fmt.Errorf("failed to pin library: %w", err)
	}
	r.logger.Info("pinned library", "key", key)
	r.writePlain("✓ Pinned library %s\n", key)
	return nil
}

// UnpinLibrary clears the pinned music section.
func (r *Runner) UnpinLibrary(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}
	if err := r.settings.PinLibrary(""); err != nil {
		return fmt.Errorf("failed to unpin library: %w", err)
	}
	r.writePlain("✓ Browsing the first music library\n")
	return nil
}
