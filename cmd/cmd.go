// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// setupCommand handles first-run configuration
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the database",
		Action: r.Setup,
	}
}

// authCommand handles plex.tv sign in
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Plex account operations",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in to plex.tv with a PIN",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the sign-in URL instead of opening a browser",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the PIN to be approved",
						Value: 2 * time.Minute,
					},
				},
				Action: r.Login,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored Plex token",
				Action: r.Logout,
			},
			{
				Name:  "status",
				Usage: "Show the signed-in account",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// serversCommand handles server selection
func serversCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "servers",
		Usage: "Media servers available to the account",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List servers and their remote connections",
				Flags:  formatFlags(),
				Action: r.ListServers,
			},
			{
				Name:      "pin",
				Usage:     "Always use the server with this client identifier",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.PinServer,
			},
			{
				Name:   "unpin",
				Usage:  "Pick the first reachable server again",
				Action: r.UnpinServer,
			},
		},
	}
}

// librariesCommand handles music section selection
func librariesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "libraries",
		Aliases: []string{"libs"},
		Usage:   "Music libraries on the selected server",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List music libraries",
				Flags:  formatFlags(),
				Action: r.ListLibraries,
			},
			{
				Name:      "pin",
				Usage:     "Always browse the library with this section key",
				Arguments: []cli.Argument{&cli.StringArg{Name: "key"}},
				Action:    r.PinLibrary,
			},
			{
				Name:   "unpin",
				Usage:  "Browse the first music library again",
				Action: r.UnpinLibrary,
			},
		},
	}
}

// browseCommand lists the children of a browse node
func browseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "browse",
		Aliases:   []string{"ls"},
		Usage:     "List the children of a browse node (root by default)",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Flags: append(formatFlags(), &cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for the node to load",
			Value: 30 * time.Second,
		}),
		Action: r.Browse,
	}
}

// playCommand prepares a queue around a playable item
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Queue the list containing a track and start it",
		Arguments: []cli.Argument{&cli.StringArg{Name: "media-id"}},
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "position",
				Usage: "Start offset within the track",
			},
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "Keep running to show prefetch progress",
			},
		},
		Action: r.Play,
	}
}

// resumeCommand restarts the last played item
func resumeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Resume the last played track",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "Keep running to show prefetch progress",
			},
		},
		Action: r.Resume,
	}
}

// reloadCommand drops cached state and reloads the catalog
func reloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reload",
		Usage: "Reselect the server and reload the playlist catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "warm",
				Usage: "Also load artists, albums and every track into the local cache",
			},
		},
		Action: r.Reload,
	}
}

// serveCommand runs the browse API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the browse tree and playback over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to the configured host and port)",
			},
		},
		Action: r.Serve,
	}
}

// cacheCommand inspects the local track cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the offline catalog and audio cache",
		Commands: []*cli.Command{
			{
				Name:   "playlists",
				Usage:  "List cached playlists for the pinned server",
				Flags:  formatFlags(),
				Action: r.CachedPlaylists,
			},
			{
				Name:      "show",
				Usage:     "Show a cached playlist and its tracks",
				Arguments: []cli.Argument{&cli.StringArg{Name: "rating-key"}},
				Flags:     formatFlags(),
				Action:    r.CachedPlaylist,
			},
			{
				Name:  "tracks",
				Usage: "List cached tracks",
				Flags: append(formatFlags(), &cli.StringFlag{
					Name:  "album",
					Usage: "Only tracks of the album with this rating key",
				}),
				Action: r.CachedTracks,
			},
			{
				Name:   "prune",
				Usage:  "Delete every prefetched audio file",
				Action: r.PruneCache,
			},
		},
	}
}

// tuiCommand launches the terminal browser
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Browse and play interactively",
		Action: r.TUI,
	}
}
