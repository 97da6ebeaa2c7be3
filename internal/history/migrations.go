package history

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
)

// Store configuration constants
const (
	BusyTimeout      = 5 * time.Second
	DefaultListLimit = 50
)

const (
	insertSession = `INSERT INTO sessions
		(session_id, started_at, finished_at, reason, frames, steps, overlaps, width, height, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSessions = `SELECT id, session_id, started_at, finished_at, reason,
		frames, steps, overlaps, width, height, output FROM sessions`
)

// migration is one ordered schema change
type migration struct {
	Version     int
	Description string
	Up          string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Create schema_version table",
		Up: `CREATE TABLE IF NOT EXISTS schema_version (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL
		)`,
	},
	{
		Version:     2,
		Description: "Create sessions table",
		Up: `CREATE TABLE IF NOT EXISTS sessions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL,
			started_at  DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			reason      TEXT NOT NULL,
			frames      INTEGER NOT NULL,
			steps       INTEGER NOT NULL,
			overlaps    TEXT NOT NULL DEFAULT '[]',
			width       INTEGER NOT NULL,
			height      INTEGER NOT NULL,
			output      TEXT NOT NULL DEFAULT ''
		)`,
	},
	{
		Version:     3,
		Description: "Index sessions by finish time",
		Up:          `CREATE INDEX IF NOT EXISTS idx_sessions_finished ON sessions(finished_at)`,
	},
}

// Version returns the applied schema version, 0 before any migration.
func (s *Store) Version(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err, "read schema version")
	}
	return version, nil
}

func (s *Store) migrate(ctx context.Context) error {
	// schema_version itself is created by migration 1
	if _, err := s.db.ExecContext(ctx, migrations[0].Up); err != nil {
		return classify(err, "create schema_version")
	}
	current, err := s.Version(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return apperrors.Wrapf(err, apperrors.CodeStoreFailed, "migration %d (%s)", m.Version, m.Description)
		}
		slog.Debug("applied history migration", "version", m.Version, "description", m.Description)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", m.Version, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
