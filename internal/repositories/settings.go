package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/plexaa/internal/library"
	"github.com/desertthunder/plexaa/internal/shared"
)

// Settings keys.
const (
	KeyServer       = "server"
	KeyLibrary      = "library"
	KeyLastMediaID  = "last_media_id"
	KeyLastPosition = "last_position"
	KeyShuffle      = "shuffle"
	KeyRepeat       = "repeat"
	KeyClientID     = "client_id"
)

var _ library.Preferences = (*SettingsRepository)(nil)

// SettingsRepository is a key-value store over the settings table.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new SettingsRepository with the given database connection
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value stored at key, or [shared.ErrNotFound].
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: setting %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// Lookup returns the value at key, or "" when it is unset or unreadable.
func (r *SettingsRepository) Lookup(key string) string {
	v, _ := r.Get(key)
	return v
}

// Set stores value at key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing an unset key is not an error.
func (r *SettingsRepository) Delete(key string) error {
	if _, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// All returns every stored setting.
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// setOrDelete stores value, or deletes key when value is empty.
func (r *SettingsRepository) setOrDelete(key, value string) error {
	if value == "" {
		return r.Delete(key)
	}
	return r.Set(key, value)
}

func (r *SettingsRepository) PinnedServer() string  { return r.Lookup(KeyServer) }
func (r *SettingsRepository) PinnedLibrary() string { return r.Lookup(KeyLibrary) }

// PinServer restricts selection to the server with clientIdentifier id. An empty id unpins.
func (r *SettingsRepository) PinServer(id string) error { return r.setOrDelete(KeyServer, id) }

// PinLibrary selects the music section with key. An empty key unpins.
func (r *SettingsRepository) PinLibrary(key string) error { return r.setOrDelete(KeyLibrary, key) }

// ClientID returns the persisted client identifier, generating one on first use.
func (r *SettingsRepository) ClientID() (string, error) {
	if id := r.Lookup(KeyClientID); id != "" {
		return id, nil
	}
	id := shared.GenerateID()
	if err := r.Set(KeyClientID, id); err != nil {
		return "", err
	}
	return id, nil
}

// SaveResume records the last played media id and position.
func (r *SettingsRepository) SaveResume(mediaID string, position time.Duration) error {
	if err := r.Set(KeyLastMediaID, mediaID); err != nil {
		return err
	}
	return r.Set(KeyLastPosition, strconv.FormatInt(position.Milliseconds(), 10))
}

// Resume returns the last played media id and position. ok is false when nothing was played.
func (r *SettingsRepository) Resume() (mediaID string, position time.Duration, ok bool) {
	mediaID = r.Lookup(KeyLastMediaID)
	if mediaID == "" {
		return "", 0, false
	}
	ms, err := strconv.ParseInt(r.Lookup(KeyLastPosition), 10, 64)
	if err != nil || ms < 0 {
		ms = 0
	}
	return mediaID, time.Duration(ms) * time.Millisecond, true
}

func (r *SettingsRepository) SetShuffle(on bool) error {
	return r.Set(KeyShuffle, strconv.FormatBool(on))
}

func (r *SettingsRepository) Shuffle() bool {
	on, _ := strconv.ParseBool(r.Lookup(KeyShuffle))
	return on
}

// SetRepeat stores the repeat mode name.
func (r *SettingsRepository) SetRepeat(mode string) error { return r.setOrDelete(KeyRepeat, mode) }

func (r *SettingsRepository) Repeat() string { return r.Lookup(KeyRepeat) }
