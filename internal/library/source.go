package library

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/services"
	"github.com/desertthunder/plexaa/internal/shared"
)

// Resource kinds, used as gate names.
const (
	KindCatalog        = "catalog"
	KindPlaylist       = "playlist"
	KindArtists        = "artists"
	KindAlbums         = "albums"
	KindArtistAlbums   = "artist_albums"
	KindAlbumTracks    = "album_tracks"
	KindRecentlyPlayed = "recently_played"
	KindRecentlyAdded  = "recently_added"
	KindOnDeck         = "on_deck"
	KindAllTracks      = "all_tracks"
)

// single is the id used by kinds that hold one resource.
const single = ""

const (
	defaultWorkers     = 4
	defaultRecentLimit = 50
)

// Preferences supplies persisted selections that override discovery.
type Preferences interface {
	PinnedServer() string
	PinnedLibrary() string
}

// TrackCache receives every fetched track list and loaded playlist.
type TrackCache interface {
	SaveTracks(serverID string, tracks []models.Track) error
	SavePlaylist(serverID string, p models.Playlist) error
}

// Credentials yields the account token.
type Credentials interface {
	Token() (string, error)
}

// Options configure a [Source]. Account, Dial and Credentials are required.
type Options struct {
	Account     services.Account
	Dial        services.Dialer
	Credentials Credentials
	Preferences Preferences
	Cache       TrackCache
	Logger      *log.Logger

	Workers        int
	RecentLimit    int
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration

	// OnAuthExpired runs when a fetch is rejected for an expired token, before the resource fails.
	OnAuthExpired func(err error)
}

// Source owns the per-kind resources of one Plex account: the playlist catalog, loaded playlists,
// and the artist, album and home listings. Fetches run on a bounded worker pool and resolve the
// kind's [Gate]; callers register interest with the WhenReady methods.
type Source struct {
	account       services.Account
	dial          services.Dialer
	creds         Credentials
	prefs         Preferences
	cache         TrackCache
	logger        *log.Logger
	recentLimit   int
	probeTimeout  time.Duration
	timeout       time.Duration
	onAuthExpired func(error)

	// selMu guards the cached selection; no network call runs under it. selGen counts drops so a
	// selection started before one is not cached after it.
	selMu     sync.Mutex
	selGen    uint64
	selecting *selectCall
	selection *Selection
	section   *models.Section

	// epoch counts reloads. Catalog writes from a fetch begun under an older epoch are dropped.
	mu      sync.Mutex
	epoch   uint64
	catalog map[models.RatingKey]models.Playlist

	catalogGate    *Gate[[]models.Playlist]
	playlists      *Gate[models.Playlist]
	artists        *Gate[[]models.Artist]
	albums         *Gate[[]models.Album]
	artistAlbums   *Gate[[]models.Album]
	albumTracks    *Gate[[]models.Track]
	recentlyPlayed *Gate[[]models.Track]
	recentlyAdded  *Gate[[]models.Album]
	onDeck         *Gate[[]models.Track]
	allTracks      *Gate[[]models.Track]

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSource creates a source with every resource in the Created state. Nothing is fetched until a
// Load method is called.
func NewSource(opts Options) *Source {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = defaultRecentLimit
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Source{
		account:        opts.Account,
		dial:           opts.Dial,
		creds:          opts.Credentials,
		prefs:          opts.Preferences,
		cache:          opts.Cache,
		logger:         opts.Logger,
		recentLimit:    opts.RecentLimit,
		probeTimeout:   opts.ProbeTimeout,
		timeout:        opts.RequestTimeout,
		onAuthExpired:  opts.OnAuthExpired,
		catalog:        make(map[models.RatingKey]models.Playlist),
		catalogGate:    NewGate[[]models.Playlist](KindCatalog),
		playlists:      NewGate[models.Playlist](KindPlaylist),
		artists:        NewGate[[]models.Artist](KindArtists),
		albums:         NewGate[[]models.Album](KindAlbums),
		artistAlbums:   NewGate[[]models.Album](KindArtistAlbums),
		albumTracks:    NewGate[[]models.Track](KindAlbumTracks),
		recentlyPlayed: NewGate[[]models.Track](KindRecentlyPlayed),
		recentlyAdded:  NewGate[[]models.Album](KindRecentlyAdded),
		onDeck:         NewGate[[]models.Track](KindOnDeck),
		allTracks:      NewGate[[]models.Track](KindAllTracks),
		sem:            make(chan struct{}, opts.Workers),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Close cancels in-flight fetches, waits for the workers, and releases every queued waiter.
func (s *Source) Close() {
	s.cancel()
	s.wg.Wait()
	s.catalogGate.Close()
	s.playlists.Close()
	s.artists.Close()
	s.albums.Close()
	s.artistAlbums.Close()
	s.albumTracks.Close()
	s.recentlyPlayed.Close()
	s.recentlyAdded.Close()
	s.onDeck.Close()
	s.allTracks.Close()
}

// Wait blocks until every fetch started so far has settled.
func (s *Source) Wait() { s.wg.Wait() }

// Authenticated reports whether an account token is available.
func (s *Source) Authenticated() bool {
	_, err := s.token()
	return err == nil
}

func (s *Source) token() (string, error) {
	if s.creds == nil {
		return "", shared.ErrNotAuthenticated
	}
	tok, err := s.creds.Token()
	if err != nil || tok == "" {
		return "", shared.ErrNotAuthenticated
	}
	return tok, nil
}

func (s *Source) pinnedServer() string {
	if s.prefs == nil {
		return ""
	}
	return s.prefs.PinnedServer()
}

func (s *Source) pinnedLibrary() string {
	if s.prefs == nil {
		return ""
	}
	return s.prefs.PinnedLibrary()
}

// selectCall is a server selection in flight, shared by every caller that needs one meanwhile.
type selectCall struct {
	done chan struct{}
	sel  *Selection
	err  error
}

// server returns the cached selection, running selection when there is none.
func (s *Source) server(ctx context.Context) (*Selection, error) {
	s.selMu.Lock()
	if sel := s.selection; sel != nil {
		s.selMu.Unlock()
		return sel, nil
	}
	if call := s.selecting; call != nil {
		s.selMu.Unlock()
		select {
		case <-call.done:
			return call.sel, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &selectCall{done: make(chan struct{})}
	s.selecting = call
	gen := s.selGen
	s.selMu.Unlock()

	call.sel, call.err = s.selectServer(ctx)

	s.selMu.Lock()
	if s.selecting == call {
		s.selecting = nil
	}
	if call.err == nil && s.selGen == gen {
		s.selection = call.sel
	}
	s.selMu.Unlock()
	close(call.done)
	return call.sel, call.err
}

func (s *Source) selectServer(ctx context.Context) (*Selection, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	return SelectServer(ctx, s.account, s.dial, SelectOpts{
		Token:        tok,
		Pinned:       s.pinnedServer(),
		ProbeTimeout: s.probeTimeout,
		Logger:       s.logger,
	})
}

// musicSection returns the selected server and its music library: the pinned library when it is a
// music section, else the first music section. The section is cached only while sel is still the
// current selection.
func (s *Source) musicSection(ctx context.Context) (*Selection, *models.Section, error) {
	sel, err := s.server(ctx)
	if err != nil {
		return nil, nil, err
	}

	s.selMu.Lock()
	if s.selection == sel && s.section != nil {
		sec := s.section
		s.selMu.Unlock()
		return sel, sec, nil
	}
	s.selMu.Unlock()

	sections, err := sel.Server.Sections(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list library sections: %w", err)
	}

	var music []models.Section
	for _, sec := range sections {
		if sec.IsMusic() {
			music = append(music, sec)
		}
	}
	if len(music) == 0 {
		return nil, nil, shared.ErrNoMusicSection
	}

	chosen := music[0]
	if pinned := s.pinnedLibrary(); pinned != "" {
		if i := slices.IndexFunc(music, func(sec models.Section) bool { return sec.Key == pinned }); i >= 0 {
			chosen = music[i]
		} else {
			s.logger.Warn("pinned library is not a music section, using first", "pinned", pinned, "using", chosen.Title)
		}
	}

	s.selMu.Lock()
	defer s.selMu.Unlock()
	if s.selection != sel {
		return sel, &chosen, nil
	}
	if s.section == nil {
		s.section = &chosen
		s.logger.Info("using music section", "title", chosen.Title, "key", chosen.Key)
	}
	return sel, s.section, nil
}

func (s *Source) dropSelection() {
	s.selMu.Lock()
	s.selGen++
	s.selection, s.section, s.selecting = nil, nil, nil
	s.selMu.Unlock()
}

// Selected returns the current server selection without running one.
func (s *Source) Selected() *Selection {
	s.selMu.Lock()
	defer s.selMu.Unlock()
	return s.selection
}

// Server returns the selected server, selecting one if needed.
func (s *Source) Server(ctx context.Context) (services.Server, error) {
	sel, err := s.server(ctx)
	if err != nil {
		return nil, err
	}
	return sel.Server, nil
}

// load claims a fetch on g and runs it on the worker pool. It reports whether a fetch started.
func load[T any](s *Source, g *Gate[T], id string, force bool, fetch func(context.Context) FetchResult[T]) bool {
	if s.ctx.Err() != nil {
		return false
	}
	gen, started := g.Begin(id, force)
	if !started {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
		case <-s.ctx.Done():
			g.Fail(id, gen)
			return
		}

		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		settle(s, g, id, gen, fetch(ctx))
	}()
	return true
}

// reject fails id without fetching. Used for malformed ids.
func reject[T any](s *Source, g *Gate[T], id string, force bool) bool {
	gen, started := g.Begin(id, force)
	if started {
		s.logger.Warn("malformed id", "kind", g.Name(), "id", id)
		g.Fail(id, gen)
	}
	return started
}

func settle[T any](s *Source, g *Gate[T], id string, gen uint64, r FetchResult[T]) {
	switch r.Status {
	case StatusOK:
		if !g.Resolve(id, gen, r.Value) {
			s.logger.Debug("discarded stale fetch", "kind", g.Name(), "id", id)
		}
	case StatusAuthExpired:
		s.logger.Warn("authorization expired", "kind", g.Name(), "id", id, "error", r.Err)
		s.dropSelection()
		if s.onAuthExpired != nil {
			s.onAuthExpired(r.Err)
		}
		g.Fail(id, gen)
	case StatusFailed:
		s.logger.Error("fetch failed", "kind", g.Name(), "id", id, "error", r.Err)
		g.Fail(id, gen)
	}
}

func (s *Source) saveTracks(serverID string, tracks []models.Track) {
	if s.cache == nil || len(tracks) == 0 {
		return
	}
	if err := s.cache.SaveTracks(serverID, tracks); err != nil {
		s.logger.Warn("failed to cache tracks", "count", len(tracks), "error", err)
	}
}

// Catalog

// LoadCatalog fetches the audio playlists of the selected server and adds unseen ones to the
// catalog. With force a fetch starts even when the catalog is loaded or loading.
func (s *Source) LoadCatalog(force bool) bool {
	epoch := s.currentEpoch()
	return load(s, s.catalogGate, single, force, func(ctx context.Context) FetchResult[[]models.Playlist] {
		return s.fetchCatalog(ctx, epoch)
	})
}

func (s *Source) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Source) fetchCatalog(ctx context.Context, epoch uint64) FetchResult[[]models.Playlist] {
	sel, err := s.server(ctx)
	if err != nil {
		return Classify[[]models.Playlist](err)
	}

	if _, _, err := s.musicSection(ctx); err != nil {
		s.logger.Warn("music section unavailable", "error", err)
	}

	playlists, err := sel.Server.Playlists(ctx)
	if err != nil {
		return Classify[[]models.Playlist](err)
	}

	added, current := s.mergeCatalog(epoch, playlists)
	if !current {
		s.logger.Debug("discarded catalog from before reload", "playlists", len(playlists))
		return OK(s.CatalogPlaylists())
	}
	s.logger.Info("loaded catalog", "playlists", len(playlists), "new", added)

	if s.cache != nil {
		for _, p := range playlists {
			if err := s.cache.SavePlaylist(sel.ServerID(), p); err != nil {
				s.logger.Warn("failed to cache playlist", "playlist", p.Title, "error", err)
			}
		}
	}
	return OK(s.CatalogPlaylists())
}

// mergeCatalog adds unseen playlists and refreshes metadata of known ones, keeping loaded items.
// Nothing is written when a reload happened after epoch.
func (s *Source) mergeCatalog(epoch uint64, playlists []models.Playlist) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return 0, false
	}

	added := 0
	for _, p := range playlists {
		if existing, ok := s.catalog[p.RatingKey]; ok {
			p.Items = existing.Items
		} else {
			added++
		}
		s.catalog[p.RatingKey] = p
	}
	return added, true
}

// CatalogWhenReady registers cb for the catalog.
func (s *Source) CatalogWhenReady(cb Callback[[]models.Playlist]) bool {
	return s.catalogGate.Request(single, cb)
}

// CatalogState reports the catalog's readiness.
func (s *Source) CatalogState() State { return s.catalogGate.State(single) }

// CatalogPlaylists snapshots the catalog as it is now, loaded or not, ordered by rating key.
func (s *Source) CatalogPlaylists() []models.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Playlist, 0, len(s.catalog))
	for _, p := range s.catalog {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b models.Playlist) int { return cmp.Compare(a.RatingKey, b.RatingKey) })
	return out
}

// CatalogPlaylist returns one catalog entry.
func (s *Source) CatalogPlaylist(id string) (models.Playlist, bool) {
	key, err := models.ParseRatingKey(id)
	if err != nil {
		return models.Playlist{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.catalog[key]
	return p, ok
}

// Catalog loads the catalog if needed and waits for it.
func (s *Source) Catalog(ctx context.Context) ([]models.Playlist, error) {
	s.LoadCatalog(false)
	return s.catalogGate.Wait(ctx, single)
}

// Playlists

// LoadPlaylist fetches a playlist's items. A non-numeric id fails immediately without a request.
func (s *Source) LoadPlaylist(id string, force bool) bool {
	key, err := models.ParseRatingKey(id)
	if err != nil {
		return reject(s, s.playlists, id, force)
	}
	epoch := s.currentEpoch()
	return load(s, s.playlists, id, force, func(ctx context.Context) FetchResult[models.Playlist] {
		return s.fetchPlaylist(ctx, epoch, key)
	})
}

func (s *Source) fetchPlaylist(ctx context.Context, epoch uint64, key models.RatingKey) FetchResult[models.Playlist] {
	sel, err := s.server(ctx)
	if err != nil {
		return Classify[models.Playlist](err)
	}

	p, known := s.CatalogPlaylist(key.String())
	if !known {
		meta, err := sel.Server.Playlist(ctx, key)
		if err != nil {
			return Classify[models.Playlist](err)
		}
		p = *meta
	}

	items, err := sel.Server.PlaylistItems(ctx, key)
	if err != nil {
		return Classify[models.Playlist](err)
	}
	if items == nil {
		items = []models.Track{}
	}
	p.Items = items
	p.ServerURL = sel.Server.BaseURL()

	s.mu.Lock()
	current := s.epoch == epoch
	if current {
		s.catalog[key] = p
	}
	s.mu.Unlock()
	if !current {
		s.logger.Debug("discarded playlist from before reload", "playlist", p.Title)
		return OK(p)
	}

	s.saveTracks(sel.ServerID(), items)
	if s.cache != nil {
		if err := s.cache.SavePlaylist(sel.ServerID(), p); err != nil {
			s.logger.Warn("failed to cache playlist", "playlist", p.Title, "error", err)
		}
	}
	s.logger.Debug("loaded playlist", "playlist", p.Title, "items", len(items), "leaf_count", p.LeafCount)
	return OK(p)
}

func (s *Source) PlaylistWhenReady(id string, cb Callback[models.Playlist]) bool {
	return s.playlists.Request(id, cb)
}

func (s *Source) PlaylistState(id string) State { return s.playlists.State(id) }

// Playlist loads a playlist's items if needed and waits for them.
func (s *Source) Playlist(ctx context.Context, id string) (models.Playlist, error) {
	s.LoadPlaylist(id, false)
	return s.playlists.Wait(ctx, id)
}

// Artists and albums

func (s *Source) LoadArtists(force bool) bool {
	return load(s, s.artists, single, force, func(ctx context.Context) FetchResult[[]models.Artist] {
		sel, sec, err := s.musicSection(ctx)
		if err != nil {
			return Classify[[]models.Artist](err)
		}
		return From[[]models.Artist](sel.Server.Artists(ctx, sec.Key))
	})
}

func (s *Source) ArtistsWhenReady(cb Callback[[]models.Artist]) bool {
	return s.artists.Request(single, cb)
}

func (s *Source) Artists(ctx context.Context) ([]models.Artist, error) {
	s.LoadArtists(false)
	return s.artists.Wait(ctx, single)
}

func (s *Source) LoadAlbums(force bool) bool {
	return load(s, s.albums, single, force, func(ctx context.Context) FetchResult[[]models.Album] {
		sel, sec, err := s.musicSection(ctx)
		if err != nil {
			return Classify[[]models.Album](err)
		}
		return From[[]models.Album](sel.Server.Albums(ctx, sec.Key))
	})
}

func (s *Source) AlbumsWhenReady(cb Callback[[]models.Album]) bool {
	return s.albums.Request(single, cb)
}

func (s *Source) Albums(ctx context.Context) ([]models.Album, error) {
	s.LoadAlbums(false)
	return s.albums.Wait(ctx, single)
}

// LoadArtistAlbums fetches one artist's albums. A non-numeric id fails immediately.
func (s *Source) LoadArtistAlbums(artistID string, force bool) bool {
	key, err := models.ParseRatingKey(artistID)
	if err != nil {
		return reject(s, s.artistAlbums, artistID, force)
	}
	return load(s, s.artistAlbums, artistID, force, func(ctx context.Context) FetchResult[[]models.Album] {
		sel, err := s.server(ctx)
		if err != nil {
			return Classify[[]models.Album](err)
		}
		return From[[]models.Album](sel.Server.ArtistAlbums(ctx, key))
	})
}

func (s *Source) ArtistAlbumsWhenReady(artistID string, cb Callback[[]models.Album]) bool {
	return s.artistAlbums.Request(artistID, cb)
}

func (s *Source) ArtistAlbums(ctx context.Context, artistID string) ([]models.Album, error) {
	s.LoadArtistAlbums(artistID, false)
	return s.artistAlbums.Wait(ctx, artistID)
}

// LoadAlbumTracks fetches one album's tracks in album order. A non-numeric id fails immediately.
func (s *Source) LoadAlbumTracks(albumID string, force bool) bool {
	key, err := models.ParseRatingKey(albumID)
	if err != nil {
		return reject(s, s.albumTracks, albumID, force)
	}
	return load(s, s.albumTracks, albumID, force, func(ctx context.Context) FetchResult[[]models.Track] {
		sel, err := s.server(ctx)
		if err != nil {
			return Classify[[]models.Track](err)
		}
		tracks, err := sel.Server.AlbumTracks(ctx, key)
		if err != nil {
			return Classify[[]models.Track](err)
		}
		s.saveTracks(sel.ServerID(), tracks)
		return OK(tracks)
	})
}

func (s *Source) AlbumTracksWhenReady(albumID string, cb Callback[[]models.Track]) bool {
	return s.albumTracks.Request(albumID, cb)
}

func (s *Source) AlbumTracks(ctx context.Context, albumID string) ([]models.Track, error) {
	s.LoadAlbumTracks(albumID, false)
	return s.albumTracks.Wait(ctx, albumID)
}

// Home

func (s *Source) LoadRecentlyPlayed(force bool) bool {
	return load(s, s.recentlyPlayed, single, force, func(ctx context.Context) FetchResult[[]models.Track] {
		sel, sec, err := s.musicSection(ctx)
		if err != nil {
			return Classify[[]models.Track](err)
		}
		return From[[]models.Track](sel.Server.RecentlyPlayed(ctx, sec.Key, s.recentLimit))
	})
}

func (s *Source) RecentlyPlayedWhenReady(cb Callback[[]models.Track]) bool {
	return s.recentlyPlayed.Request(single, cb)
}

func (s *Source) RecentlyPlayed(ctx context.Context) ([]models.Track, error) {
	s.LoadRecentlyPlayed(false)
	return s.recentlyPlayed.Wait(ctx, single)
}

func (s *Source) LoadRecentlyAdded(force bool) bool {
	return load(s, s.recentlyAdded, single, force, func(ctx context.Context) FetchResult[[]models.Album] {
		sel, sec, err := s.musicSection(ctx)
		if err != nil {
			return Classify[[]models.Album](err)
		}
		return From[[]models.Album](sel.Server.RecentlyAdded(ctx, sec.Key, s.recentLimit))
	})
}

func (s *Source) RecentlyAddedWhenReady(cb Callback[[]models.Album]) bool {
	return s.recentlyAdded.Request(single, cb)
}

func (s *Source) RecentlyAdded(ctx context.Context) ([]models.Album, error) {
	s.LoadRecentlyAdded(false)
	return s.recentlyAdded.Wait(ctx, single)
}

// LoadOnDeck fetches the server-wide on deck list; it does not need a music section.
func (s *Source) LoadOnDeck(force bool) bool {
	return load(s, s.onDeck, single, force, func(ctx context.Context) FetchResult[[]models.Track] {
		sel, err := s.server(ctx)
		if err != nil {
			return Classify[[]models.Track](err)
		}
		return From[[]models.Track](sel.Server.OnDeck(ctx))
	})
}

func (s *Source) OnDeckWhenReady(cb Callback[[]models.Track]) bool {
	return s.onDeck.Request(single, cb)
}

func (s *Source) OnDeck(ctx context.Context) ([]models.Track, error) {
	s.LoadOnDeck(false)
	return s.onDeck.Wait(ctx, single)
}

func (s *Source) LoadAllTracks(force bool) bool {
	return load(s, s.allTracks, single, force, func(ctx context.Context) FetchResult[[]models.Track] {
		sel, sec, err := s.musicSection(ctx)
		if err != nil {
			return Classify[[]models.Track](err)
		}
		return From[[]models.Track](sel.Server.AllTracks(ctx, sec.Key))
	})
}

func (s *Source) AllTracksWhenReady(cb Callback[[]models.Track]) bool {
	return s.allTracks.Request(single, cb)
}

func (s *Source) AllTracks(ctx context.Context) ([]models.Track, error) {
	s.LoadAllTracks(false)
	return s.allTracks.Wait(ctx, single)
}

// Reload drops the server selection, the music section and the catalog, invalidates every
// resource so fetches still in flight are discarded, and starts a new catalog fetch. Resources with
// waiters still queued are fetched again so each waiter is answered.
func (s *Source) Reload() {
	s.dropSelection()

	s.mu.Lock()
	s.epoch++
	s.catalog = make(map[models.RatingKey]models.Playlist)
	s.mu.Unlock()

	s.logger.Info("reloading library")
	s.LoadCatalog(true)

	for _, id := range s.playlists.ResetAll() {
		s.LoadPlaylist(id, false)
	}
	for _, id := range s.artistAlbums.ResetAll() {
		s.LoadArtistAlbums(id, false)
	}
	for _, id := range s.albumTracks.ResetAll() {
		s.LoadAlbumTracks(id, false)
	}
	relaunch(s.artists, s.LoadArtists)
	relaunch(s.albums, s.LoadAlbums)
	relaunch(s.recentlyPlayed, s.LoadRecentlyPlayed)
	relaunch(s.recentlyAdded, s.LoadRecentlyAdded)
	relaunch(s.onDeck, s.LoadOnDeck)
	relaunch(s.allTracks, s.LoadAllTracks)
}

// relaunch resets a single-resource kind and refetches it when waiters are queued.
func relaunch[T any](g *Gate[T], reload func(force bool) bool) {
	if len(g.ResetAll()) > 0 {
		reload(false)
	}
}

// MusicLibraries lists the music sections of the selected server.
func (s *Source) MusicLibraries(ctx context.Context) ([]models.Section, error) {
	sel, err := s.server(ctx)
	if err != nil {
		return nil, err
	}
	sections, err := sel.Server.Sections(ctx)
	if err != nil {
		return nil, err
	}
	var music []models.Section
	for _, sec := range sections {
		if sec.IsMusic() {
			music = append(music, sec)
		}
	}
	return music, nil
}

// Servers lists the media servers authorized for the account.
func (s *Source) Servers(ctx context.Context) ([]models.Resource, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	resources, err := s.account.Resources(ctx, tok)
	if err != nil {
		return nil, err
	}
	var servers []models.Resource
	for _, r := range resources {
		if r.IsServer() {
			servers = append(servers, r)
		}
	}
	return servers, nil
}
