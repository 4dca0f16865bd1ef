package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/shared"
)

const playlistColumns = `id, server_id, rating_key, title, leaf_count, duration_ms, created_at, updated_at`

// PlaylistRepository implements models.Repository[*models.CachedPlaylist] and keeps the ordered
// track membership of each cached playlist.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist with a generated ID.
func (r *PlaylistRepository) Create(playlist *models.CachedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	playlist.SetID(shared.GenerateID())

	p := playlist.Playlist()
	query := `INSERT INTO playlists (` + playlistColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		playlist.ID(),
		playlist.ServerID(),
		int64(p.RatingKey),
		p.Title,
		p.LeafCount,
		p.Duration,
		playlist.CreatedAt(),
		playlist.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}
	return nil
}

// Get retrieves a playlist by ID
func (r *PlaylistRepository) Get(id string) (*models.CachedPlaylist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ?`
	return scanPlaylist(r.db.QueryRow(query, id))
}

// GetByRatingKey retrieves the playlist a server knows by key.
func (r *PlaylistRepository) GetByRatingKey(serverID string, key models.RatingKey) (*models.CachedPlaylist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE server_id = ? AND rating_key = ?`
	return scanPlaylist(r.db.QueryRow(query, serverID, int64(key)))
}

// Update replaces a playlist's metadata.
func (r *PlaylistRepository) Update(playlist *models.CachedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	playlist.SetUpdatedAt(now)

	p := playlist.Playlist()
	result, err := r.db.Exec(
		`UPDATE playlists SET title = ?, leaf_count = ?, duration_ms = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.LeafCount, p.Duration, now, playlist.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return expectOne(result, "playlist", playlist.ID())
}

// Delete removes a playlist and its membership rows. Member tracks stay cached.
func (r *PlaylistRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete playlist tracks: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if err := expectOne(result, "playlist", id); err != nil {
		return err
	}
	return tx.Commit()
}

// List retrieves playlists ordered by title. Supported criteria: "server_id".
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.CachedPlaylist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists`
	args := []any{}

	if serverID, ok := criteria["server_id"].(string); ok && serverID != "" {
		query += " WHERE server_id = ?"
		args = append(args, serverID)
	}
	query += " ORDER BY title ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.CachedPlaylist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

// Upsert creates the playlist or refreshes the existing row for the same server and key.
func (r *PlaylistRepository) Upsert(serverID string, p models.Playlist) (*models.CachedPlaylist, error) {
	existing, err := r.GetByRatingKey(serverID, p.RatingKey)
	switch {
	case err == nil:
		existing.SetPlaylist(p)
		if err := r.Update(existing); err != nil {
			return nil, err
		}
		return existing, nil
	case errors.Is(err, shared.ErrPlaylistNotFound):
		playlist := models.NewCachedPlaylist(serverID, p)
		if err := r.Create(playlist); err != nil {
			return nil, err
		}
		return playlist, nil
	default:
		return nil, err
	}
}

// SetTracks replaces a playlist's membership with trackIDs in order.
func (r *PlaylistRepository) SetTracks(playlistID string, trackIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ?`, playlistID); err != nil {
		return fmt.Errorf("failed to clear playlist tracks: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for pos, trackID := range trackIDs {
		if _, err := stmt.Exec(playlistID, trackID, pos); err != nil {
			return fmt.Errorf("failed to add track %s at %d: %w", trackID, pos, err)
		}
	}
	return tx.Commit()
}

// Tracks lists a cached playlist's tracks in playlist order.
func (r *PlaylistRepository) Tracks(playlistID string) ([]*models.CachedTrack, error) {
	query := `
		SELECT t.id, t.server_id, t.rating_key, t.title, t.artist, t.album, t.album_key, t.track_index,
		       t.duration_ms, t.stream_key, t.thumb, t.created_at, t.updated_at
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position ASC
	`
	return queryTracks(r.db, query, playlistID)
}

func scanPlaylist(row scanner) (*models.CachedPlaylist, error) {
	var (
		id, serverID, title  string
		ratingKey, duration  int64
		leafCount            int
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&id, &serverID, &ratingKey, &title, &leafCount, &duration, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrPlaylistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	p := models.Playlist{
		RatingKey:    models.RatingKey(ratingKey),
		Title:        title,
		PlaylistType: "audio",
		LeafCount:    leafCount,
		Duration:     duration,
	}
	playlist := models.NewCachedPlaylist(serverID, p)
	playlist.SetID(id)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	return playlist, nil
}
