package services

import (
	"context"

	"github.com/desertthunder/plexaa/internal/models"
)

// Account is the plex.tv side: sign-in PINs, the signed-in user, and the servers authorized for them.
type Account interface {
	// Resources lists every device the token's account can reach, servers and players alike.
	Resources(ctx context.Context, token string) ([]models.Resource, error)

	// CreatePin starts a PIN login.
	CreatePin(ctx context.Context) (*models.Pin, error)

	// CheckPin returns the PIN's current state. AuthToken is empty until the user approves it.
	CheckPin(ctx context.Context, id int64) (*models.Pin, error)

	// User returns the account that owns token. An invalid token yields [shared.ErrAuthExpired].
	User(ctx context.Context, token string) (*models.Account, error)

	// AuthURL is the page the user opens to approve pin.
	AuthURL(pin *models.Pin, forwardURL string) string
}

// Server is a connection to one Plex media server.
//
// Every call may fail with an error wrapping [shared.ErrAuthExpired] when the server rejects the token.
type Server interface {
	BaseURL() string
	Token() string

	// Identity is the liveness probe.
	Identity(ctx context.Context) error

	Sections(ctx context.Context) ([]models.Section, error)
	Playlists(ctx context.Context) ([]models.Playlist, error)
	Playlist(ctx context.Context, key models.RatingKey) (*models.Playlist, error)
	PlaylistItems(ctx context.Context, key models.RatingKey) ([]models.Track, error)
	Artists(ctx context.Context, section string) ([]models.Artist, error)
	Albums(ctx context.Context, section string) ([]models.Album, error)
	ArtistAlbums(ctx context.Context, artist models.RatingKey) ([]models.Album, error)
	AlbumTracks(ctx context.Context, album models.RatingKey) ([]models.Track, error)
	RecentlyPlayed(ctx context.Context, section string, limit int) ([]models.Track, error)
	RecentlyAdded(ctx context.Context, section string, limit int) ([]models.Album, error)
	OnDeck(ctx context.Context) ([]models.Track, error)
	AllTracks(ctx context.Context, section string) ([]models.Track, error)

	// StreamURL returns an absolute, token-bearing URL for the track's first part, or "" when it has none.
	StreamURL(t models.Track) string

	// ArtURL returns an absolute URL for a thumbnail path, or "" for an empty path.
	ArtURL(path string) string
}

// Dialer opens a [Server] at baseURL authenticated with token.
type Dialer func(baseURL, token string) Server

var (
	_ Account = (*APIService)(nil)
	_ Server  = (*PlexServer)(nil)
)
