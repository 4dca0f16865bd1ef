package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/shared"
	"github.com/mattn/go-sqlite3"
)

var (
	_ models.Repository[*models.CachedTrack]    = (*TrackRepository)(nil)
	_ models.Repository[*models.CachedPlaylist] = (*PlaylistRepository)(nil)
)

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// expectOne checks that a write touched a row, returning [shared.ErrNotFound] otherwise.
func expectOne(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, kind, id)
	}
	return nil
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
