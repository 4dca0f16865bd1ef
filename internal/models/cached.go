package models

import (
	"fmt"
	"time"
)

var (
	_ Model = (*CachedTrack)(nil)
	_ Model = (*CachedPlaylist)(nil)
)

// CachedTrack is a [Track] persisted for offline listing and resume.
type CachedTrack struct {
	id        string
	serverID  string
	track     Track
	createdAt time.Time
	updatedAt time.Time
}

// NewCachedTrack wraps track fetched from the server identified by serverID.
func NewCachedTrack(serverID string, track Track) *CachedTrack {
	now := time.Now()
	return &CachedTrack{serverID: serverID, track: track, createdAt: now, updatedAt: now}
}

func (c *CachedTrack) ID() string               { return c.id }
func (c *CachedTrack) SetID(id string)          { c.id = id }
func (c *CachedTrack) ServerID() string         { return c.serverID }
func (c *CachedTrack) Track() Track             { return c.track }
func (c *CachedTrack) SetTrack(t Track)         { c.track = t }
func (c *CachedTrack) CreatedAt() time.Time     { return c.createdAt }
func (c *CachedTrack) UpdatedAt() time.Time     { return c.updatedAt }
func (c *CachedTrack) SetUpdatedAt(t time.Time) { c.updatedAt = t }

// SetCreatedAt is used when scanning rows.
func (c *CachedTrack) SetCreatedAt(t time.Time) { c.createdAt = t }

func (c *CachedTrack) Validate() error {
	if c.serverID == "" {
		return fmt.Errorf("server id is required")
	}
	if c.track.RatingKey <= 0 {
		return fmt.Errorf("rating key is required")
	}
	if c.track.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// CachedPlaylist is persisted [Playlist] metadata.
type CachedPlaylist struct {
	id        string
	serverID  string
	playlist  Playlist
	createdAt time.Time
	updatedAt time.Time
}

// NewCachedPlaylist wraps playlist fetched from the server identified by serverID.
func NewCachedPlaylist(serverID string, playlist Playlist) *CachedPlaylist {
	now := time.Now()
	return &CachedPlaylist{serverID: serverID, playlist: playlist, createdAt: now, updatedAt: now}
}

func (c *CachedPlaylist) ID() string               { return c.id }
func (c *CachedPlaylist) SetID(id string)          { c.id = id }
func (c *CachedPlaylist) ServerID() string         { return c.serverID }
func (c *CachedPlaylist) Playlist() Playlist       { return c.playlist }
func (c *CachedPlaylist) SetPlaylist(p Playlist)   { c.playlist = p }
func (c *CachedPlaylist) CreatedAt() time.Time     { return c.createdAt }
func (c *CachedPlaylist) UpdatedAt() time.Time     { return c.updatedAt }
func (c *CachedPlaylist) SetUpdatedAt(t time.Time) { c.updatedAt = t }
func (c *CachedPlaylist) SetCreatedAt(t time.Time) { c.createdAt = t }

func (c *CachedPlaylist) Validate() error {
	if c.serverID == "" {
		return fmt.Errorf("server id is required")
	}
	if c.playlist.RatingKey <= 0 {
		return fmt.Errorf("rating key is required")
	}
	if c.playlist.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}
