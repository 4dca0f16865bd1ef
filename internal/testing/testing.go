// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/plexaa/internal/models"
)

// ErrUnreachable is returned by probes against addresses a [FakeNetwork] does not know.
var ErrUnreachable = errors.New("connection refused")

// FakeServer is a test double for services.Server backed by in-memory fixtures.
//
// Set Err to fail every content call. Set Gate to hold content calls until it is closed, or an
// entry of Hold to hold only the named method.
type FakeServer struct {
	URL      string
	Tok      string
	ProbeErr error
	Err      error
	Gate     chan struct{}
	Hold     map[string]chan struct{}

	SectionList    []models.Section
	PlaylistList   []models.Playlist
	Items          map[models.RatingKey][]models.Track
	ArtistList     []models.Artist
	AlbumList      []models.Album
	ArtistAlbumMap map[models.RatingKey][]models.Album
	AlbumTrackMap  map[models.RatingKey][]models.Track
	Recent         []models.Track
	Added          []models.Album
	Deck           []models.Track
	Tracks         []models.Track

	mu    sync.Mutex
	calls map[string]int
}

// Calls reports how many times the named method ran.
func (f *FakeServer) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls counts every content call, excluding probes.
func (f *FakeServer) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for name, c := range f.calls {
		if name != "Identity" {
			n += c
		}
	}
	return n
}

func (f *FakeServer) record(ctx context.Context, name string) error {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	gate := f.Gate
	if held, ok := f.Hold[name]; ok {
		gate = held
	}
	err := f.Err
	f.mu.Unlock()

	if gate != nil && name != "Identity" {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// SetErr replaces Err for calls made after it returns. Calls already held keep the old value.
func (f *FakeServer) SetErr(err error) {
	f.mu.Lock()
	f.Err = err
	f.mu.Unlock()
}

func (f *FakeServer) BaseURL() string { return f.URL }
func (f *FakeServer) Token() string   { return f.Tok }

func (f *FakeServer) Identity(ctx context.Context) error {
	f.record(ctx, "Identity")
	return f.ProbeErr
}

func (f *FakeServer) Sections(ctx context.Context) ([]models.Section, error) {
	if err := f.record(ctx, "Sections"); err != nil {
		return nil, err
	}
	return f.SectionList, nil
}

func (f *FakeServer) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if err := f.record(ctx, "Playlists"); err != nil {
		return nil, err
	}
	out := make([]models.Playlist, len(f.PlaylistList))
	for i, p := range f.PlaylistList {
		p.ServerURL = f.URL
		out[i] = p
	}
	return out, nil
}

func (f *FakeServer) Playlist(ctx context.Context, key models.RatingKey) (*models.Playlist, error) {
	if err := f.record(ctx, "Playlist"); err != nil {
		return nil, err
	}
	for _, p := range f.PlaylistList {
		if p.RatingKey == key {
			p.ServerURL = f.URL
			return &p, nil
		}
	}
	return nil, fmt.Errorf("playlist %s not found", key)
}

func (f *FakeServer) PlaylistItems(ctx context.Context, key models.RatingKey) ([]models.Track, error) {
	if err := f.record(ctx, "PlaylistItems"); err != nil {
		return nil, err
	}
	return f.Items[key], nil
}

func (f *FakeServer) Artists(ctx context.Context, section string) ([]models.Artist, error) {
	if err := f.record(ctx, "Artists"); err != nil {
		return nil, err
	}
	return f.ArtistList, nil
}

func (f *FakeServer) Albums(ctx context.Context, section string) ([]models.Album, error) {
	if err := f.record(ctx, "Albums"); err != nil {
		return nil, err
	}
	return f.AlbumList, nil
}

func (f *FakeServer) ArtistAlbums(ctx context.Context, artist models.RatingKey) ([]models.Album, error) {
	if err := f.record(ctx, "ArtistAlbums"); err != nil {
		return nil, err
	}
	return f.ArtistAlbumMap[artist], nil
}

func (f *FakeServer) AlbumTracks(ctx context.Context, album models.RatingKey) ([]models.Track, error) {
	if err := f.record(ctx, "AlbumTracks"); err != nil {
		return nil, err
	}
	return f.AlbumTrackMap[album], nil
}

func (f *FakeServer) RecentlyPlayed(ctx context.Context, section string, limit int) ([]models.Track, error) {
	if err := f.record(ctx, "RecentlyPlayed"); err != nil {
		return nil, err
	}
	return truncate(f.Recent, limit), nil
}

func (f *FakeServer) RecentlyAdded(ctx context.Context, section string, limit int) ([]models.Album, error) {
	if err := f.record(ctx, "RecentlyAdded"); err != nil {
		return nil, err
	}
	return truncate(f.Added, limit), nil
}

func (f *FakeServer) OnDeck(ctx context.Context) ([]models.Track, error) {
	if err := f.record(ctx, "OnDeck"); err != nil {
		return nil, err
	}
	return f.Deck, nil
}

func (f *FakeServer) AllTracks(ctx context.Context, section string) ([]models.Track, error) {
	if err := f.record(ctx, "AllTracks"); err != nil {
		return nil, err
	}
	return f.Tracks, nil
}

func (f *FakeServer) StreamURL(t models.Track) string {
	if t.StreamKey() == "" {
		return ""
	}
	return f.URL + t.StreamKey() + "?X-Plex-Token=" + f.Tok
}

func (f *FakeServer) ArtURL(path string) string {
	if path == "" {
		return ""
	}
	return f.URL + path
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// FakeNetwork maps connection URIs to servers. Unknown URIs dial to a server whose probe fails.
type FakeNetwork struct {
	mu      sync.Mutex
	Servers map[string]*FakeServer
	dialed  []string
}

func NewFakeNetwork(servers ...*FakeServer) *FakeNetwork {
	n := &FakeNetwork{Servers: make(map[string]*FakeServer)}
	for _, s := range servers {
		n.Servers[s.URL] = s
	}
	return n
}

// Dial returns the server registered at baseURL with token applied.
func (n *FakeNetwork) Dial(baseURL, token string) *FakeServer {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dialed = append(n.dialed, baseURL)
	if s, ok := n.Servers[baseURL]; ok {
		s.Tok = token
		return s
	}
	return &FakeServer{URL: baseURL, Tok: token, ProbeErr: ErrUnreachable}
}

// Dialed lists every URI passed to Dial, in order.
func (n *FakeNetwork) Dialed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.dialed...)
}

// FakeAccount is a test double for services.Account.
type FakeAccount struct {
	ResourceList []models.Resource
	Err          error
	Pin          *models.Pin
	Approved     string // token returned by CheckPin once set
	UserErr      error

	mu        sync.Mutex
	resources int
}

// ResourceCalls reports how many times Resources ran.
func (a *FakeAccount) ResourceCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resources
}

func (a *FakeAccount) Resources(ctx context.Context, token string) ([]models.Resource, error) {
	a.mu.Lock()
	a.resources++
	a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	return a.ResourceList, nil
}

func (a *FakeAccount) CreatePin(ctx context.Context) (*models.Pin, error) {
	if a.Pin == nil {
		return nil, errors.New("no pin configured")
	}
	p := *a.Pin
	return &p, nil
}

func (a *FakeAccount) CheckPin(ctx context.Context, id int64) (*models.Pin, error) {
	if a.Pin == nil || a.Pin.ID != id {
		return nil, errors.New("unknown pin")
	}
	p := *a.Pin
	p.AuthToken = a.Approved
	return &p, nil
}

func (a *FakeAccount) User(ctx context.Context, token string) (*models.Account, error) {
	if a.UserErr != nil {
		return nil, a.UserErr
	}
	return &models.Account{ID: 1, Username: "listener"}, nil
}

func (a *FakeAccount) AuthURL(pin *models.Pin, forwardURL string) string {
	return "https://app.plex.tv/auth#?code=" + pin.Code
}

// ServerResource builds a resource providing a server with the given connection URIs, all remote.
func ServerResource(id string, uris ...string) models.Resource {
	r := models.Resource{Name: id, ClientIdentifier: id, Provides: "server", AccessToken: "tok-" + id}
	for _, u := range uris {
		r.Connections = append(r.Connections, models.Connection{URI: u})
	}
	return r
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
