package library

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/services"
	"github.com/desertthunder/plexaa/internal/shared"
	tu "github.com/desertthunder/plexaa/internal/testing"
)

type staticToken string

func (s staticToken) Token() (string, error) {
	if s == "" {
		return "", shared.ErrNotAuthenticated
	}
	return string(s), nil
}

type prefs struct{ server, library string }

func (p prefs) PinnedServer() string  { return p.server }
func (p prefs) PinnedLibrary() string { return p.library }

type memCache struct {
	mu        sync.Mutex
	tracks    int
	playlists int
}

func (m *memCache) SaveTracks(serverID string, tracks []models.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks += len(tracks)
	return nil
}

func (m *memCache) SavePlaylist(serverID string, p models.Playlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlists++
	return nil
}

func dialer(n *tu.FakeNetwork) services.Dialer {
	return func(baseURL, token string) services.Server { return n.Dial(baseURL, token) }
}

// until polls cond until it holds or a second passes.
func until(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fixture struct {
	server  *tu.FakeServer
	network *tu.FakeNetwork
	account *tu.FakeAccount
}

func newFixture() *fixture {
	srv := &tu.FakeServer{
		URL:         "https://remote-a:32400",
		SectionList: []models.Section{{Key: "1", Title: "Movies", Type: "movie"}, {Key: "4", Title: "Music", Type: "artist"}},
		PlaylistList: []models.Playlist{
			{RatingKey: 20, Title: "Road Trip", LeafCount: 2},
			{RatingKey: 10, Title: "Morning", LeafCount: 1},
		},
		Items: map[models.RatingKey][]models.Track{
			20: {{RatingKey: 201, Title: "B"}, {RatingKey: 202, Title: "A"}},
			10: {{RatingKey: 101, Title: "Only"}},
		},
		ArtistList: []models.Artist{{RatingKey: 5, Title: "Band"}},
		AlbumTrackMap: map[models.RatingKey][]models.Track{
			7: {{RatingKey: 71, Title: "One", Index: 1}, {RatingKey: 72, Title: "Two", Index: 2}},
		},
	}
	network := tu.NewFakeNetwork(srv)
	account := &tu.FakeAccount{ResourceList: []models.Resource{
		tu.ServerResource("srv-a", "https://remote-a:32400"),
	}}
	return &fixture{server: srv, network: network, account: account}
}

func (f *fixture) source(t *testing.T, mod func(*Options)) *Source {
	t.Helper()
	opts := Options{
		Account:     f.account,
		Dial:        dialer(f.network),
		Credentials: staticToken("account-token"),
		Workers:     2,
	}
	if mod != nil {
		mod(&opts)
	}
	s := NewSource(opts)
	t.Cleanup(s.Close)
	return s
}

func TestSelectServer(t *testing.T) {
	ctx := context.Background()

	t.Run("First Responding Remote Connection Wins", func(t *testing.T) {
		good := &tu.FakeServer{URL: "https://good:32400"}
		network := tu.NewFakeNetwork(good)
		res := tu.ServerResource("srv", "https://dead:32400", "https://good:32400", "https://later:32400")
		res.Connections = append([]models.Connection{{URI: "http://192.168.1.5:32400", Local: true}}, res.Connections...)
		account := &tu.FakeAccount{ResourceList: []models.Resource{
			{Name: "phone", Provides: "player", Connections: []models.Connection{{URI: "https://phone"}}},
			res,
		}}

		sel, err := SelectServer(ctx, account, dialer(network), SelectOpts{Token: "tok"})
		if err != nil {
			t.Fatalf("expected selection, got %v", err)
		}
		if sel.Connection.URI != "https://good:32400" {
			t.Errorf("unexpected connection %s", sel.Connection.URI)
		}
		if sel.Server.Token() != "tok-srv" {
			t.Errorf("expected resource access token, got %q", sel.Server.Token())
		}

		want := []string{"https://dead:32400", "https://good:32400"}
		if got := network.Dialed(); !slices.Equal(got, want) {
			t.Errorf("expected linear scan %v, got %v", want, got)
		}
	})

	t.Run("Falls Back To Account Token", func(t *testing.T) {
		good := &tu.FakeServer{URL: "https://good:32400"}
		res := tu.ServerResource("srv", "https://good:32400")
		res.AccessToken = ""
		account := &tu.FakeAccount{ResourceList: []models.Resource{res}}

		sel, err := SelectServer(ctx, account, dialer(tu.NewFakeNetwork(good)), SelectOpts{Token: "tok"})
		if err != nil {
			t.Fatalf("expected selection, got %v", err)
		}
		if sel.Server.Token() != "tok" {
			t.Errorf("expected account token, got %q", sel.Server.Token())
		}
	})

	t.Run("Pinned Server Missing Does Not Fall Back", func(t *testing.T) {
		good := &tu.FakeServer{URL: "https://good:32400"}
		network := tu.NewFakeNetwork(good)
		account := &tu.FakeAccount{ResourceList: []models.Resource{tu.ServerResource("srv", "https://good:32400")}}

		_, err := SelectServer(ctx, account, dialer(network), SelectOpts{Token: "tok", Pinned: "other"})
		if !errors.Is(err, shared.ErrNoServer) {
			t.Fatalf("expected ErrNoServer, got %v", err)
		}
		if len(network.Dialed()) != 0 {
			t.Errorf("no connection should be probed, got %v", network.Dialed())
		}
	})

	t.Run("Pinned Server Restricts Candidates", func(t *testing.T) {
		a := &tu.FakeServer{URL: "https://a:32400"}
		b := &tu.FakeServer{URL: "https://b:32400"}
		account := &tu.FakeAccount{ResourceList: []models.Resource{
			tu.ServerResource("a", "https://a:32400"),
			tu.ServerResource("b", "https://b:32400"),
		}}

		sel, err := SelectServer(ctx, account, dialer(tu.NewFakeNetwork(a, b)), SelectOpts{Token: "tok", Pinned: "b"})
		if err != nil {
			t.Fatalf("expected selection, got %v", err)
		}
		if sel.ServerID() != "b" {
			t.Errorf("expected pinned server b, got %s", sel.ServerID())
		}
	})

	t.Run("No Connection Answers", func(t *testing.T) {
		account := &tu.FakeAccount{ResourceList: []models.Resource{tu.ServerResource("srv", "https://dead:32400")}}
		_, err := SelectServer(ctx, account, dialer(tu.NewFakeNetwork()), SelectOpts{Token: "tok"})
		if !errors.Is(err, shared.ErrNoServer) {
			t.Errorf("expected ErrNoServer, got %v", err)
		}
	})

	t.Run("Only Local Connections", func(t *testing.T) {
		local := models.Resource{ClientIdentifier: "srv", Provides: "server", Connections: []models.Connection{{URI: "http://10.0.0.2:32400", Local: true}}}
		network := tu.NewFakeNetwork(&tu.FakeServer{URL: "http://10.0.0.2:32400"})
		account := &tu.FakeAccount{ResourceList: []models.Resource{local}}

		if _, err := SelectServer(ctx, account, dialer(network), SelectOpts{Token: "tok"}); !errors.Is(err, shared.ErrNoServer) {
			t.Errorf("expected ErrNoServer, got %v", err)
		}
		if len(network.Dialed()) != 0 {
			t.Errorf("local connections must not be probed, got %v", network.Dialed())
		}
	})

	t.Run("Resource Listing Error Propagates", func(t *testing.T) {
		account := &tu.FakeAccount{Err: fmt.Errorf("%w: 401", shared.ErrAuthExpired)}
		_, err := SelectServer(ctx, account, dialer(tu.NewFakeNetwork()), SelectOpts{Token: "tok"})
		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("expected ErrAuthExpired, got %v", err)
		}
	})
}

func TestSource(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("Catalog Load End To End", func(t *testing.T) {
		f := newFixture()
		cache := &memCache{}
		s := f.source(t, func(o *Options) { o.Cache = cache })

		if s.CatalogState() != Created {
			t.Fatalf("expected Created, got %s", s.CatalogState())
		}

		playlists, err := s.Catalog(ctx)
		if err != nil {
			t.Fatalf("Catalog() error = %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		ids := []string{playlists[0].ID(), playlists[1].ID()}
		if !slices.Equal(ids, []string{"10", "20"}) {
			t.Errorf("unexpected catalog ids %v", ids)
		}
		if s.CatalogState() != Initialized {
			t.Errorf("expected Initialized, got %s", s.CatalogState())
		}
		if sel := s.Selected(); sel == nil || sel.ServerID() != "srv-a" {
			t.Errorf("expected cached selection, got %+v", sel)
		}
		if cache.playlists != 2 {
			t.Errorf("expected playlists written through, got %d", cache.playlists)
		}

		if s.LoadCatalog(false) {
			t.Error("loaded catalog must not refetch without force")
		}
		if f.account.ResourceCalls() != 1 {
			t.Errorf("selection should be cached, resources listed %d times", f.account.ResourceCalls())
		}
	})

	t.Run("Playlist Items", func(t *testing.T) {
		f := newFixture()
		cache := &memCache{}
		s := f.source(t, func(o *Options) { o.Cache = cache })

		p, err := s.Playlist(ctx, "20")
		if err != nil {
			t.Fatalf("Playlist() error = %v", err)
		}
		if !p.Loaded() || len(p.Items) != 2 {
			t.Fatalf("expected 2 loaded items, got %+v", p.Items)
		}
		if p.Title != "Road Trip" || p.ServerURL != "https://remote-a:32400" {
			t.Errorf("unexpected playlist metadata %+v", p)
		}
		if f.server.Calls("Playlist") != 1 {
			t.Errorf("metadata should be fetched for an unknown playlist")
		}
		if cached, ok := s.CatalogPlaylist("20"); !ok || !cached.Loaded() {
			t.Error("loaded playlist should be stored in the catalog")
		}
		if cache.tracks != 2 {
			t.Errorf("expected tracks written through, got %d", cache.tracks)
		}
	})

	t.Run("Empty Playlist Is Loaded", func(t *testing.T) {
		f := newFixture()
		f.server.PlaylistList = append(f.server.PlaylistList, models.Playlist{RatingKey: 30, Title: "Empty"})
		s := f.source(t, nil)

		p, err := s.Playlist(ctx, "30")
		if err != nil {
			t.Fatalf("Playlist() error = %v", err)
		}
		if !p.Loaded() || len(p.Items) != 0 {
			t.Errorf("expected loaded empty playlist, got %+v", p)
		}
	})

	t.Run("Malformed Id Fails Without Network", func(t *testing.T) {
		f := newFixture()
		s := f.source(t, nil)

		if !s.LoadPlaylist("not-a-number", false) {
			t.Fatal("expected the load to settle")
		}
		if s.PlaylistState("not-a-number") != Error {
			t.Errorf("expected Error, got %s", s.PlaylistState("not-a-number"))
		}

		var got *bool
		s.PlaylistWhenReady("not-a-number", func(_ models.Playlist, ok bool) { got = &ok })
		if got == nil || *got {
			t.Error("waiter should get absence synchronously")
		}

		s.LoadArtistAlbums("x1", false)
		s.LoadAlbumTracks("", false)
		s.Wait()

		if f.account.ResourceCalls() != 0 || f.server.TotalCalls() != 0 {
			t.Errorf("no network call expected, resources=%d server=%d", f.account.ResourceCalls(), f.server.TotalCalls())
		}
	})

	t.Run("Fetch Is Not Duplicated", func(t *testing.T) {
		f := newFixture()
		f.server.Gate = make(chan struct{})
		s := f.source(t, nil)

		if !s.LoadArtists(false) {
			t.Fatal("expected first load to start")
		}
		if s.LoadArtists(false) {
			t.Error("second load must not start while the first is in flight")
		}

		results := make(chan bool, 2)
		for range 2 {
			if s.ArtistsWhenReady(func(a []models.Artist, ok bool) { results <- ok && len(a) == 1 }) {
				t.Error("waiter should be queued while loading")
			}
		}

		close(f.server.Gate)
		for range 2 {
			if ok := <-results; !ok {
				t.Error("expected artists to resolve")
			}
		}
		if f.server.Calls("Artists") != 1 {
			t.Errorf("expected one fetch, got %d", f.server.Calls("Artists"))
		}
	})

	t.Run("Auth Expiry Runs Hook And Releases Waiters", func(t *testing.T) {
		f := newFixture()
		f.server.Err = fmt.Errorf("%w: 401", shared.ErrAuthExpired)

		var hooked []error
		var mu sync.Mutex
		s := f.source(t, func(o *Options) {
			o.OnAuthExpired = func(err error) {
				mu.Lock()
				hooked = append(hooked, err)
				mu.Unlock()
			}
		})

		_, err := s.Catalog(ctx)
		if !errors.Is(err, shared.ErrResourceFailed) {
			t.Fatalf("expected ErrResourceFailed, got %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(hooked) != 1 || !errors.Is(hooked[0], shared.ErrAuthExpired) {
			t.Errorf("expected the auth hook once, got %v", hooked)
		}
		if s.Selected() != nil {
			t.Error("selection should be dropped after auth expiry")
		}
	})

	t.Run("Generic Failure Does Not Run Hook", func(t *testing.T) {
		f := newFixture()
		f.server.Err = errors.New("boom")
		hooked := false
		s := f.source(t, func(o *Options) { o.OnAuthExpired = func(error) { hooked = true } })

		if _, err := s.OnDeck(ctx); err == nil {
			t.Fatal("expected failure")
		}
		if hooked {
			t.Error("auth hook should only run for expired tokens")
		}
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		f := newFixture()
		s := f.source(t, func(o *Options) { o.Credentials = staticToken("") })

		if s.Authenticated() {
			t.Error("expected unauthenticated source")
		}
		if _, err := s.Catalog(ctx); err == nil {
			t.Error("expected catalog to fail without a token")
		}
	})

	t.Run("No Reachable Server", func(t *testing.T) {
		f := newFixture()
		f.server.ProbeErr = errors.New("timeout")
		s := f.source(t, nil)

		if _, err := s.Artists(ctx); err == nil {
			t.Error("expected failure without a server")
		}
		if f.server.TotalCalls() != 0 {
			t.Error("no content call expected without a server")
		}
	})

	t.Run("Music Section", func(t *testing.T) {
		t.Run("Pinned Library", func(t *testing.T) {
			f := newFixture()
			f.server.SectionList = append(f.server.SectionList, models.Section{Key: "9", Title: "Live", Type: "artist"})
			s := f.source(t, func(o *Options) { o.Preferences = prefs{library: "9"} })

			if _, err := s.Artists(ctx); err != nil {
				t.Fatalf("Artists() error = %v", err)
			}
			_, sec, _ := s.musicSection(ctx)
			if sec.Key != "9" {
				t.Errorf("expected pinned section, got %s", sec.Key)
			}
		})

		t.Run("Pinned Library Not Music", func(t *testing.T) {
			f := newFixture()
			s := f.source(t, func(o *Options) { o.Preferences = prefs{library: "1"} })

			_, sec, err := s.musicSection(ctx)
			if err != nil || sec.Key != "4" {
				t.Errorf("expected first music section, got %+v %v", sec, err)
			}
		})

		t.Run("Missing", func(t *testing.T) {
			f := newFixture()
			f.server.SectionList = []models.Section{{Key: "1", Type: "movie"}}
			s := f.source(t, nil)

			if _, err := s.RecentlyPlayed(ctx); err == nil {
				t.Error("expected failure without a music section")
			}
			if _, err := s.OnDeck(ctx); err != nil {
				t.Errorf("on deck does not need a section, got %v", err)
			}
		})
	})

	t.Run("Album Tracks Keep Order", func(t *testing.T) {
		f := newFixture()
		s := f.source(t, nil)

		tracks, err := s.AlbumTracks(ctx, "7")
		if err != nil {
			t.Fatalf("AlbumTracks() error = %v", err)
		}
		if len(tracks) != 2 || tracks[0].Title != "One" || tracks[1].Title != "Two" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		f := newFixture()
		s := f.source(t, nil)

		if _, err := s.Catalog(ctx); err != nil {
			t.Fatalf("Catalog() error = %v", err)
		}
		if _, err := s.Playlist(ctx, "10"); err != nil {
			t.Fatalf("Playlist() error = %v", err)
		}

		s.Reload()
		if s.PlaylistState("10") != Created {
			t.Errorf("expected playlist reset, got %s", s.PlaylistState("10"))
		}

		if _, err := s.Catalog(ctx); err != nil {
			t.Fatalf("Catalog() after reload error = %v", err)
		}
		if f.account.ResourceCalls() != 2 {
			t.Errorf("reload should reselect the server, resources listed %d times", f.account.ResourceCalls())
		}
		if f.server.Calls("Playlists") != 2 {
			t.Errorf("expected catalog refetch, got %d", f.server.Calls("Playlists"))
		}
	})

	t.Run("Reload Refetches For Queued Waiters", func(t *testing.T) {
		f := newFixture()
		held := make(chan struct{})
		f.server.Hold = map[string]chan struct{}{"Artists": held}
		s := f.source(t, func(o *Options) { o.Workers = 4 })

		s.LoadArtists(false)
		results := make(chan bool, 2)
		s.ArtistsWhenReady(func(a []models.Artist, ok bool) { results <- ok && len(a) == 1 })
		until(t, "artists request", func() bool { return f.server.Calls("Artists") == 1 })

		s.Reload()
		if st := s.artists.State(single); st != Initializing {
			t.Errorf("artists with a queued waiter should be refetched, state=%s", st)
		}

		close(held)
		select {
		case ok := <-results:
			if !ok {
				t.Error("expected the waiter to get the refetched artists")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter queued before reload never ran")
		}

		s.Wait()
		if len(results) != 0 {
			t.Error("waiter ran more than once")
		}
		if f.server.Calls("Artists") != 2 {
			t.Errorf("expected the artists fetch to restart, got %d calls", f.server.Calls("Artists"))
		}
	})

	t.Run("Reload Refetches Queued Playlists", func(t *testing.T) {
		f := newFixture()
		held := make(chan struct{})
		f.server.Hold = map[string]chan struct{}{"PlaylistItems": held}
		s := f.source(t, func(o *Options) { o.Workers = 4 })

		s.LoadPlaylist("20", false)
		result := make(chan models.Playlist, 1)
		s.PlaylistWhenReady("20", func(p models.Playlist, ok bool) {
			if ok {
				result <- p
			}
			close(result)
		})
		until(t, "playlist items request", func() bool { return f.server.Calls("PlaylistItems") == 1 })

		s.Reload()
		close(held)

		select {
		case p, ok := <-result:
			if !ok || len(p.Items) != 2 {
				t.Errorf("expected the refetched playlist, got %+v", p)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("playlist waiter queued before reload never ran")
		}
		s.Wait()
	})

	t.Run("Stale Playlist Fetch Does Not Repopulate Catalog", func(t *testing.T) {
		f := newFixture()
		held := make(chan struct{})
		f.server.Hold = map[string]chan struct{}{"PlaylistItems": held}
		cache := &memCache{}
		s := f.source(t, func(o *Options) { o.Cache = cache; o.Workers = 4 })

		s.LoadPlaylist("10", false)
		until(t, "playlist items request", func() bool { return f.server.Calls("PlaylistItems") == 1 })

		f.server.SetErr(errors.New("server went away"))
		s.Reload()
		until(t, "catalog failure", func() bool { return s.CatalogState() == Error })

		close(held)
		s.Wait()

		if got := s.CatalogPlaylists(); len(got) != 0 {
			t.Errorf("fetch from before the reload leaked into the catalog: %+v", got)
		}
		if _, ok := s.CatalogPlaylist("10"); ok {
			t.Error("stale playlist should not be in the catalog")
		}
		if cache.playlists != 0 || cache.tracks != 0 {
			t.Errorf("stale fetch should not be cached, playlists=%d tracks=%d", cache.playlists, cache.tracks)
		}
	})

	t.Run("Stale Catalog Fetch Is Dropped", func(t *testing.T) {
		f := newFixture()
		held := make(chan struct{})
		f.server.Hold = map[string]chan struct{}{"Playlists": held}
		s := f.source(t, func(o *Options) { o.Workers = 4 })

		s.LoadCatalog(false)
		until(t, "playlists request", func() bool { return f.server.Calls("Playlists") == 1 })

		f.server.SetErr(errors.New("server went away"))
		s.Reload()
		close(held)
		s.Wait()

		if s.CatalogState() != Error {
			t.Errorf("expected the reloaded catalog to fail, got %s", s.CatalogState())
		}
		if got := s.CatalogPlaylists(); len(got) != 0 {
			t.Errorf("catalog from before the reload should be discarded, got %d", len(got))
		}
	})

	t.Run("Reload Does Not Wait On Network", func(t *testing.T) {
		f := newFixture()
		held := make(chan struct{})
		f.server.Hold = map[string]chan struct{}{"Sections": held}
		s := f.source(t, func(o *Options) { o.Workers = 4 })

		s.LoadArtists(false)
		until(t, "sections request", func() bool { return f.server.Calls("Sections") == 1 })

		done := make(chan struct{})
		go func() {
			s.Reload()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
			t.Error("Reload blocked behind an in-flight section lookup")
		}

		close(held)
		<-done
		s.Wait()
	})

	t.Run("Section Of A Dropped Selection Is Not Cached", func(t *testing.T) {
		f := newFixture()
		held := make(chan struct{})
		f.server.Hold = map[string]chan struct{}{"Sections": held}
		s := f.source(t, nil)

		errs := make(chan error, 1)
		go func() {
			_, _, err := s.musicSection(ctx)
			errs <- err
		}()
		until(t, "sections request", func() bool { return f.server.Calls("Sections") == 1 })

		s.dropSelection()
		close(held)
		if err := <-errs; err != nil {
			t.Fatalf("musicSection() error = %v", err)
		}

		s.selMu.Lock()
		sel, sec := s.selection, s.section
		s.selMu.Unlock()
		if sel != nil || sec != nil {
			t.Errorf("lookup for a dropped selection should not be cached, selection=%v section=%v", sel, sec)
		}
	})

	t.Run("Concurrent Fetches Share One Selection", func(t *testing.T) {
		f := newFixture()
		s := f.source(t, func(o *Options) { o.Workers = 4 })

		s.LoadArtists(false)
		s.LoadOnDeck(false)
		s.LoadCatalog(false)
		s.Wait()

		if n := f.account.ResourceCalls(); n != 1 {
			t.Errorf("expected one server selection, resources listed %d times", n)
		}
	})

	t.Run("Servers And Libraries", func(t *testing.T) {
		f := newFixture()
		f.account.ResourceList = append(f.account.ResourceList, models.Resource{Name: "tv", Provides: "player"})
		s := f.source(t, nil)

		servers, err := s.Servers(ctx)
		if err != nil || len(servers) != 1 {
			t.Errorf("Servers() = %+v, %v", servers, err)
		}
		libs, err := s.MusicLibraries(ctx)
		if err != nil || len(libs) != 1 || libs[0].Key != "4" {
			t.Errorf("MusicLibraries() = %+v, %v", libs, err)
		}
	})

	t.Run("Close Releases Waiters", func(t *testing.T) {
		f := newFixture()
		f.server.Gate = make(chan struct{})
		s := NewSource(Options{Account: f.account, Dial: dialer(f.network), Credentials: staticToken("t")})

		s.LoadAlbums(false)
		result := make(chan bool, 1)
		s.AlbumsWhenReady(func(_ []models.Album, ok bool) { result <- ok })
		s.Close()

		select {
		case ok := <-result:
			if ok {
				t.Error("expected absence after close")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not released on close")
		}
	})
}
