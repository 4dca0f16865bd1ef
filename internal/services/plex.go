package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/shared"
)

const (
	typeArtist = 8
	typeAlbum  = 9
	typeTrack  = 10
)

// ClientOptions identify this client to Plex and supply its transports.
type ClientOptions struct {
	Product          string
	ClientIdentifier string
	HTTPClient       *http.Client // content requests
	ProbeClient      *http.Client // liveness probes
	Logger           *log.Logger
}

// PlexClient holds the transports and client identity shared by every [PlexServer] it dials.
type PlexClient struct {
	product  string
	clientID string
	http     *http.Client
	probe    *http.Client
	logger   *log.Logger
}

// NewPlexClient creates a client. Nil clients default to [http.DefaultClient].
func NewPlexClient(opts ClientOptions) *PlexClient {
	c := &PlexClient{
		product:  opts.Product,
		clientID: opts.ClientIdentifier,
		http:     opts.HTTPClient,
		probe:    opts.ProbeClient,
		logger:   opts.Logger,
	}
	if c.product == "" {
		c.product = shared.AppName
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.probe == nil {
		c.probe = c.http
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// Dial returns a [PlexServer] for baseURL. It performs no I/O.
func (c *PlexClient) Dial(baseURL, token string) Server {
	return &PlexServer{client: c, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

func (c *PlexClient) setHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Product", c.product)
	if c.clientID != "" {
		req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	}
	if token != "" {
		req.Header.Set("X-Plex-Token", token)
	}
}

// checkStatus maps an HTTP status to the error taxonomy. 401 means the token was revoked or expired.
func checkStatus(resp *http.Response, path string) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s returned 401", shared.ErrAuthExpired, path)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return nil
}

// PlexServer implements [Server] over the media server's JSON API.
type PlexServer struct {
	client  *PlexClient
	baseURL string
	token   string
}

func (s *PlexServer) BaseURL() string { return s.baseURL }
func (s *PlexServer) Token() string   { return s.token }

func (s *PlexServer) doRequest(ctx context.Context, hc *http.Client, path string, query url.Values, result any) error {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	s.client.setHeaders(req, s.token)
	s.client.logger.Debug("plex request", "server", s.baseURL, "path", path)

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, path); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

type mediaContainer[T any] struct {
	MediaContainer struct {
		Size      int `json:"size"`
		Metadata  []T `json:"Metadata"`
		Directory []T `json:"Directory"`
	} `json:"MediaContainer"`
}

func (m mediaContainer[T]) items() []T {
	if len(m.MediaContainer.Metadata) > 0 {
		return m.MediaContainer.Metadata
	}
	return m.MediaContainer.Directory
}

// list fetches path and returns the container's Metadata, or its Directory entries when there is no Metadata.
func list[T any](ctx context.Context, s *PlexServer, path string, query url.Values) ([]T, error) {
	var mc mediaContainer[T]
	if err := s.doRequest(ctx, s.client.http, path, query, &mc); err != nil {
		return nil, err
	}
	items := mc.items()
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func limitQuery(q url.Values, limit int) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if limit > 0 {
		q.Set("X-Plex-Container-Start", "0")
		q.Set("X-Plex-Container-Size", strconv.Itoa(limit))
	}
	return q
}

func typeQuery(t int) url.Values {
	return url.Values{"type": {strconv.Itoa(t)}}
}

func (s *PlexServer) Identity(ctx context.Context) error {
	return s.doRequest(ctx, s.client.probe, "/identity", nil, nil)
}

func (s *PlexServer) Sections(ctx context.Context) ([]models.Section, error) {
	return list[models.Section](ctx, s, "/library/sections", nil)
}

func (s *PlexServer) Playlists(ctx context.Context) ([]models.Playlist, error) {
	playlists, err := list[models.Playlist](ctx, s, "/playlists", url.Values{"playlistType": {"audio"}})
	if err != nil {
		return nil, err
	}
	for i := range playlists {
		playlists[i].ServerURL = s.baseURL
	}
	return playlists, nil
}

func (s *PlexServer) Playlist(ctx context.Context, key models.RatingKey) (*models.Playlist, error) {
	playlists, err := list[models.Playlist](ctx, s, "/playlists/"+key.String(), nil)
	if err != nil {
		return nil, err
	}
	if len(playlists) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, key)
	}
	p := playlists[0]
	p.ServerURL = s.baseURL
	return &p, nil
}

func (s *PlexServer) PlaylistItems(ctx context.Context, key models.RatingKey) ([]models.Track, error) {
	return list[models.Track](ctx, s, "/playlists/"+key.String()+"/items", nil)
}

func (s *PlexServer) Artists(ctx context.Context, section string) ([]models.Artist, error) {
	return list[models.Artist](ctx, s, sectionPath(section), typeQuery(typeArtist))
}

func (s *PlexServer) Albums(ctx context.Context, section string) ([]models.Album, error) {
	return list[models.Album](ctx, s, sectionPath(section), typeQuery(typeAlbum))
}

func (s *PlexServer) ArtistAlbums(ctx context.Context, artist models.RatingKey) ([]models.Album, error) {
	return list[models.Album](ctx, s, "/library/metadata/"+artist.String()+"/children", nil)
}

func (s *PlexServer) AlbumTracks(ctx context.Context, album models.RatingKey) ([]models.Track, error) {
	return list[models.Track](ctx, s, "/library/metadata/"+album.String()+"/children", nil)
}

// RecentlyPlayed lists played tracks, most recent first.
func (s *PlexServer) RecentlyPlayed(ctx context.Context, section string, limit int) ([]models.Track, error) {
	q := typeQuery(typeTrack)
	q.Set("sort", "lastViewedAt:desc")
	q.Set("viewCount>", "0")
	return list[models.Track](ctx, s, sectionPath(section), limitQuery(q, limit))
}

// RecentlyAdded lists albums, newest first.
func (s *PlexServer) RecentlyAdded(ctx context.Context, section string, limit int) ([]models.Album, error) {
	q := typeQuery(typeAlbum)
	q.Set("sort", "addedAt:desc")
	return list[models.Album](ctx, s, sectionPath(section), limitQuery(q, limit))
}

func (s *PlexServer) OnDeck(ctx context.Context) ([]models.Track, error) {
	return list[models.Track](ctx, s, "/library/onDeck", nil)
}

func (s *PlexServer) AllTracks(ctx context.Context, section string) ([]models.Track, error) {
	return list[models.Track](ctx, s, sectionPath(section), typeQuery(typeTrack))
}

func (s *PlexServer) StreamURL(t models.Track) string {
	key := t.StreamKey()
	if key == "" {
		return ""
	}
	return s.resolve(key)
}

func (s *PlexServer) ArtURL(path string) string {
	if path == "" {
		return ""
	}
	return s.resolve(path)
}

func (s *PlexServer) resolve(path string) string {
	u := s.baseURL + path
	if s.token == "" {
		return u
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return u + sep + "X-Plex-Token=" + url.QueryEscape(s.token)
}

func sectionPath(section string) string {
	return "/library/sections/" + url.PathEscape(section) + "/all"
}
