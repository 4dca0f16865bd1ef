package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/formatter"
	"github.com/desertthunder/plexaa/internal/library"
	"github.com/desertthunder/plexaa/internal/repositories"
	"github.com/desertthunder/plexaa/internal/services"
	"github.com/desertthunder/plexaa/internal/shared"
	"github.com/desertthunder/plexaa/internal/tasks"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 32

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies not supplied through [RunnerOpts] are built on first use from the loaded config.
type Runner struct {
	config       *shared.Config
	configPath   string
	configLoaded bool
	logger       *log.Logger
	output       io.Writer
	httpClient   *http.Client

	creds   shared.CredentialStore
	account services.Account
	dial    services.Dialer
	player  tasks.Player

	db         *sql.DB
	settings   *repositories.SettingsRepository
	tracks     *repositories.TrackRepository
	playlists  *repositories.PlaylistRepository
	src        *library.Source
	browser    *browse.Browser
	prefetcher *tasks.Prefetcher
	session    *tasks.Session
	progress   chan tasks.ProgressUpdate
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Logger      *log.Logger
	Output      io.Writer
	HTTPClient  *http.Client
	Credentials shared.CredentialStore
	Account     services.Account
	Dial        services.Dialer
	DB          *sql.DB
	Player      tasks.Player
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	loaded := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	shared.ResolvePaths(opts.Config)
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Player == nil {
		opts.Player = newPrintPlayer(opts.Output, opts.Logger)
	}

	return &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		configLoaded: loaded,
		logger:       opts.Logger,
		output:       opts.Output,
		httpClient:   opts.HTTPClient,
		creds:        opts.Credentials,
		account:      opts.Account,
		dial:         opts.Dial,
		db:           opts.DB,
		player:       opts.Player,
		progress:     make(chan tasks.ProgressUpdate, progressBuffer),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, serversCommand, librariesCommand, browseCommand, playCommand,
		resumeCommand, reloadCommand, serveCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by commands and by dependencies built afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Before loads the config file named by --config, falling back to defaults when it does not exist.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if r.configLoaded {
		return ctx, nil
	}

	path := cmd.String("config")
	if path == "" {
		path = shared.DefaultConfigPath()
	}
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	shared.ResolvePaths(r.config)
	r.configLoaded = true
	return ctx, nil
}

// After releases everything the command opened.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	r.Close()
	return nil
}

// Close stops prefetching, cancels in-flight fetches and closes the database.
func (r *Runner) Close() {
	if r.prefetcher != nil {
		r.prefetcher.Close()
		r.prefetcher = nil
	}
	if r.src != nil {
		r.src.Close()
		r.src = nil
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
		r.db = nil
	}
}

// store opens the database and the repositories over it.
func (r *Runner) store() error {
	if r.settings != nil {
		return nil
	}
	if r.db == nil {
		r.logger.Debug("opening database", "path", r.config.Database.Path)
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
	} else if err := shared.RunMigrations(r.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.settings = repositories.NewSettingsRepository(r.db)
	r.tracks = repositories.NewTrackRepository(r.db)
	r.playlists = repositories.NewPlaylistRepository(r.db)
	return nil
}

func (r *Runner) credentials() shared.CredentialStore {
	if r.creds == nil {
		r.creds = shared.NewKeyringStore(shared.AppName, r.config.Plex.Token)
	}
	return r.creds
}

// connect builds the plex.tv account client and the server dialer.
func (r *Runner) connect() error {
	if err := r.store(); err != nil {
		return err
	}
	if r.account != nil && r.dial != nil {
		return nil
	}

	clientID := r.config.Plex.ClientIdentifier
	if clientID == "" {
		id, err := r.settings.ClientID()
		if err != nil {
			return fmt.Errorf("failed to load client identifier: %w", err)
		}
		clientID = id
	}

	logger := shared.WithLogger(r.logger, "component", "plex")
	httpClient := r.httpClient
	if httpClient == nil {
		httpClient = services.NewHTTPClient(r.config.Plex.RetryMax, r.config.Plex.RequestTimeoutDuration(), logger)
	}
	client := services.NewPlexClient(services.ClientOptions{
		Product:          r.config.Plex.Product,
		ClientIdentifier: clientID,
		HTTPClient:       httpClient,
		ProbeClient:      services.NewProbeClient(r.config.Plex.ProbeTimeoutDuration(), logger),
		Logger:           logger,
	})

	if r.account == nil {
		r.account = services.NewAPIService(r.config.Plex.AccountURL, r.config.Plex.AuthAppURL, client)
	}
	if r.dial == nil {
		r.dial = client.Dial
	}
	return nil
}

// connectLibrary builds the music source and the browser over it.
func (r *Runner) connectLibrary() (*browse.Browser, error) {
	if r.browser != nil {
		return r.browser, nil
	}
	if err := r.connect(); err != nil {
		return nil, err
	}

	r.src = library.NewSource(library.Options{
		Account:        r.account,
		Dial:           r.dial,
		Credentials:    r.credentials(),
		Preferences:    r.settings,
		Cache:          repositories.NewTrackCacheAdapter(r.tracks, r.playlists),
		Logger:         shared.WithLogger(r.logger, "component", "library"),
		Workers:        r.config.Plex.Workers,
		RecentLimit:    r.config.Plex.RecentLimit,
		ProbeTimeout:   r.config.Plex.ProbeTimeoutDuration(),
		RequestTimeout: r.config.Plex.RequestTimeoutDuration(),
		OnAuthExpired:  r.authExpired,
	})
	r.browser = browse.NewBrowser(r.src, shared.WithLogger(r.logger, "component", "browse"))
	return r.browser, nil
}

// authExpired signs out when a server rejects the stored token.
func (r *Runner) authExpired(err error) {
	r.logger.Warn("plex token rejected, signing out", "error", err)
	if err := r.credentials().ClearToken(); err != nil {
		r.logger.Error("failed to clear token", "error", err)
	}
	if r.browser != nil {
		r.browser.RequireLogin()
	}
}

// playback builds the prefetcher and the session that drives the player.
func (r *Runner) playback() (*tasks.Session, error) {
	if r.session != nil {
		return r.session, nil
	}
	b, err := r.connectLibrary()
	if err != nil {
		return nil, err
	}

	prefetcher, err := r.openPrefetcher()
	if err != nil {
		return nil, err
	}

	r.session = tasks.NewSession(tasks.SessionOpts{
		Preparer:  b,
		Player:    r.player,
		Store:     r.settings,
		Cache:     prefetcher,
		Logger:    shared.WithLogger(r.logger, "component", "session"),
		Progress:  r.progress,
		Lookahead: r.config.Cache.PrefetchCount,
	})
	return r.session, nil
}

func (r *Runner) openPrefetcher() (*tasks.Prefetcher, error) {
	if r.prefetcher != nil {
		return r.prefetcher, nil
	}
	logger := shared.WithLogger(r.logger, "component", "prefetch")
	client := r.httpClient
	if client == nil {
		client = services.NewHTTPClient(r.config.Plex.RetryMax, 0, logger)
	}
	prefetcher, err := tasks.NewPrefetcher(tasks.PrefetchOpts{
		Dir:        r.config.Cache.Dir,
		NumWorkers: r.config.Cache.Workers,
		RateLimit:  r.config.Cache.RateLimit,
		Client:     client,
		Logger:     logger,
		Progress:   r.progress,
	})
	if err != nil {
		return nil, err
	}
	r.prefetcher = prefetcher
	return prefetcher, nil
}

// token returns the stored Plex token, or [shared.ErrNotAuthenticated].
func (r *Runner) token() (string, error) {
	token, err := r.credentials().Token()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", shared.ErrNotAuthenticated
	}
	return token, nil
}

func (r *Runner) globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   shared.DefaultConfigPath(),
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, yaml, csv or markdown",
			Value:   string(formatter.Text),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of stdout",
		},
	}
}

// render writes a listing in the format chosen by --format, to --output when set.
func (r *Runner) render(cmd *cli.Command, base string, fn func(formatter.Format) ([]byte, error)) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	data, err := fn(format)
	if err != nil {
		return err
	}

	if out := cmd.String("output"); out != "" {
		path, err := formatter.WriteFile(format, data, out, base)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", path)
	}

	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// drainProgress prints progress updates until ctx is done.
func (r *Runner) drainProgress(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-r.progress:
			r.writePlain("  %s\n", update.Message)
		}
	}
}

// logProgress sends progress updates to the logger until ctx is done.
func (r *Runner) logProgress(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-r.progress:
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// explain turns common domain errors into a hint for the user, passing others through.
func explain(err error) error {
	switch {
	case errors.Is(err, shared.ErrNoServer):
		return fmt.Errorf("%w (check `plexaa servers list` or unpin with `plexaa servers unpin`)", err)
	case errors.Is(err, shared.ErrNoMusicSection):
		return fmt.Errorf("%w (check `plexaa libraries list`)", err)
	default:
		return err
	}
}
