package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/shared"
)

const trackColumns = `id, server_id, rating_key, title, artist, album, album_key, track_index, duration_ms, stream_key, thumb, created_at, updated_at`

// TrackRepository implements models.Repository[*models.CachedTrack] for the track cache.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.CachedTrack] with a generated ID.
func (r *TrackRepository) Create(track *models.CachedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	track.SetID(shared.GenerateID())

	t := track.Track()
	query := `INSERT INTO tracks (` + trackColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		track.ID(),
		track.ServerID(),
		int64(t.RatingKey),
		t.Title,
		t.Artist(),
		t.ParentTitle,
		int64(t.ParentRatingKey),
		t.Index,
		t.Duration,
		t.StreamKey(),
		t.Art(),
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// Get retrieves a track by ID
func (r *TrackRepository) Get(id string) (*models.CachedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	return scanTrack(r.db.QueryRow(query, id))
}

// GetByRatingKey retrieves the track a server knows by key.
func (r *TrackRepository) GetByRatingKey(serverID string, key models.RatingKey) (*models.CachedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE server_id = ? AND rating_key = ?`
	return scanTrack(r.db.QueryRow(query, serverID, int64(key)))
}

// Update replaces a track's metadata.
func (r *TrackRepository) Update(track *models.CachedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	t := track.Track()
	query := `
		UPDATE tracks
		SET title = ?, artist = ?, album = ?, album_key = ?, track_index = ?, duration_ms = ?, stream_key = ?, thumb = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		t.Title,
		t.Artist(),
		t.ParentTitle,
		int64(t.ParentRatingKey),
		t.Index,
		t.Duration,
		t.StreamKey(),
		t.Art(),
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	return expectOne(result, "track", track.ID())
}

// Delete removes a track and its playlist memberships.
func (r *TrackRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE track_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete playlist memberships: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	if err := expectOne(result, "track", id); err != nil {
		return err
	}
	return tx.Commit()
}

// List retrieves tracks matching criteria. Supported keys are "server_id" and "album_key".
func (r *TrackRepository) List(criteria map[string]any) ([]*models.CachedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE 1 = 1`
	args := []any{}

	if serverID, ok := criteria["server_id"].(string); ok && serverID != "" {
		query += " AND server_id = ?"
		args = append(args, serverID)
	}
	if albumKey, ok := criteria["album_key"].(models.RatingKey); ok && albumKey > 0 {
		query += " AND album_key = ?"
		args = append(args, int64(albumKey))
		query += " ORDER BY track_index ASC, title ASC"
	} else {
		query += " ORDER BY artist ASC, album ASC, track_index ASC"
	}

	return queryTracks(r.db, query, args...)
}

// Upsert creates the track or refreshes the existing row for the same server and key. It
// returns the stored row.
func (r *TrackRepository) Upsert(serverID string, t models.Track) (*models.CachedTrack, error) {
	existing, err := r.GetByRatingKey(serverID, t.RatingKey)
	switch {
	case err == nil:
		existing.SetTrack(t)
		if err := r.Update(existing); err != nil {
			return nil, err
		}
		return existing, nil
	case errors.Is(err, shared.ErrTrackNotFound):
		track := models.NewCachedTrack(serverID, t)
		if err := r.Create(track); err != nil {
			return nil, err
		}
		return track, nil
	default:
		return nil, err
	}
}

func queryTracks(db *sql.DB, query string, args ...any) ([]*models.CachedTrack, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.CachedTrack
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// scanTrack scans one row selected with trackColumns.
func scanTrack(row scanner) (*models.CachedTrack, error) {
	var (
		id, serverID, title, artist, album, streamKey, thumb string
		ratingKey, albumKey, duration                       int64
		index                                               int
		createdAt, updatedAt                                time.Time
	)

	err := row.Scan(&id, &serverID, &ratingKey, &title, &artist, &album, &albumKey, &index, &duration, &streamKey, &thumb, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	t := models.Track{
		RatingKey:        models.RatingKey(ratingKey),
		Type:             "track",
		Title:            title,
		GrandparentTitle: artist,
		ParentTitle:      album,
		ParentRatingKey:  models.RatingKey(albumKey),
		Index:            index,
		Duration:         duration,
		Thumb:            thumb,
	}
	if streamKey != "" {
		t.Media = []models.Media{{Duration: duration, Part: []models.Part{{Key: streamKey}}}}
	}

	track := models.NewCachedTrack(serverID, t)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	return track, nil
}
