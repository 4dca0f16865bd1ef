package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// SectionTypeMusic is the library section type Plex uses for music libraries.
const SectionTypeMusic = "artist"

// RatingKey is a Plex content identifier. It decodes from JSON strings or numbers.
type RatingKey int64

func (k *RatingKey) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*k = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid rating key %q: %w", data, err)
	}
	*k = RatingKey(v)
	return nil
}

func (k RatingKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k RatingKey) String() string {
	return strconv.FormatInt(int64(k), 10)
}

// ParseRatingKey parses a numeric id as used in browse node identifiers.
func ParseRatingKey(s string) (RatingKey, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("not a rating key: %q", s)
	}
	return RatingKey(v), nil
}

// Connection is one address at which a server can be reached.
type Connection struct {
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	URI      string `json:"uri"`
	Local    bool   `json:"local"`
	Relay    bool   `json:"relay"`
}

// Resource is a device authorized for an account, as listed by plex.tv.
type Resource struct {
	Name             string       `json:"name"`
	Product          string       `json:"product"`
	ClientIdentifier string       `json:"clientIdentifier"`
	Provides         string       `json:"provides"`
	Owned            bool         `json:"owned"`
	AccessToken      string       `json:"accessToken"`
	Connections      []Connection `json:"connections"`
}

// IsServer reports whether the resource provides a media server.
func (r Resource) IsServer() bool {
	return slices.Contains(strings.Split(r.Provides, ","), "server")
}

// RemoteConnections returns connections that are not on the local network, in listed order.
func (r Resource) RemoteConnections() []Connection {
	var out []Connection
	for _, c := range r.Connections {
		if !c.Local {
			out = append(out, c)
		}
	}
	return out
}

// Section is a library section on a media server.
type Section struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// IsMusic reports whether the section is a music library.
func (s Section) IsMusic() bool { return s.Type == SectionTypeMusic }

// Part is a playable file of a media item.
type Part struct {
	Key       string `json:"key"`
	Container string `json:"container"`
	Size      int64  `json:"size"`
}

// Media groups the parts of a track.
type Media struct {
	Duration   int64  `json:"duration"`
	AudioCodec string `json:"audioCodec"`
	Part       []Part `json:"Part"`
}

// Track is a playable audio item.
type Track struct {
	RatingKey            RatingKey `json:"ratingKey"`
	Type                 string    `json:"type"`
	Title                string    `json:"title"`
	ParentRatingKey      RatingKey `json:"parentRatingKey"`
	ParentTitle          string    `json:"parentTitle"`
	GrandparentRatingKey RatingKey `json:"grandparentRatingKey"`
	GrandparentTitle     string    `json:"grandparentTitle"`
	OriginalTitle        string    `json:"originalTitle"`
	Index                int       `json:"index"`
	Duration             int64     `json:"duration"`
	Thumb                string    `json:"thumb"`
	ParentThumb          string    `json:"parentThumb"`
	Media                []Media   `json:"Media"`
}

// Artist returns the track artist, preferring the per-track credit over the album artist.
func (t Track) Artist() string {
	if t.OriginalTitle != "" {
		return t.OriginalTitle
	}
	return t.GrandparentTitle
}

// StreamKey returns the server-relative path of the first playable part.
func (t Track) StreamKey() string {
	for _, m := range t.Media {
		for _, p := range m.Part {
			if p.Key != "" {
				return p.Key
			}
		}
	}
	return ""
}

// Art returns the best thumbnail path for the track.
func (t Track) Art() string {
	if t.Thumb != "" {
		return t.Thumb
	}
	return t.ParentThumb
}

// Playlist is an ordered list of tracks. LeafCount is the server's total, which may exceed len(Items).
type Playlist struct {
	RatingKey    RatingKey `json:"ratingKey"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	PlaylistType string    `json:"playlistType"`
	LeafCount    int       `json:"leafCount"`
	Duration     int64     `json:"duration"`
	Composite    string    `json:"composite"`
	Smart        bool      `json:"smart"`

	// Items holds the tracks loaded so far; nil until the playlist is fetched.
	Items []Track `json:"-"`
	// ServerURL is the base address of the server the playlist was loaded from.
	ServerURL string `json:"-"`
}

// ID returns the browse identifier for the playlist.
func (p Playlist) ID() string { return p.RatingKey.String() }

// Loaded reports whether items have been fetched.
func (p Playlist) Loaded() bool { return p.Items != nil }

// Album is a music album.
type Album struct {
	RatingKey       RatingKey `json:"ratingKey"`
	Title           string    `json:"title"`
	ParentRatingKey RatingKey `json:"parentRatingKey"`
	ParentTitle     string    `json:"parentTitle"`
	Year            int       `json:"year"`
	LeafCount       int       `json:"leafCount"`
	Thumb           string    `json:"thumb"`
}

// Artist is a music artist.
type Artist struct {
	RatingKey RatingKey `json:"ratingKey"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Thumb     string    `json:"thumb"`
}

// Pin is a plex.tv login PIN. AuthToken is set once the user approves the login.
type Pin struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	AuthToken string `json:"authToken"`
	ExpiresIn int    `json:"expiresIn"`
}

// Account is the signed-in plex.tv user.
type Account struct {
	ID       int64  `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Title    string `json:"title"`
}
