// Package history persists finished scroll-capture sessions in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
	"github.com/GriffinCanCode/scrollshot/internal/resilience"
)

// Record is one finished session.
type Record struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Reason     string    `json:"reason"`
	Frames     int       `json:"frames"`
	Steps      int       `json:"steps"`
	Overlaps   []int     `json:"overlaps"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Output     string    `json:"output"`
}

// Store wraps the SQLite connection
type Store struct {
	db    *sql.DB
	path  string
	retry resilience.RetryConfig
}

// Open opens or creates the history database at path and applies migrations.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStoreFailed, "create history directory")
		}
		dsn = path + "?_busy_timeout=" + fmt.Sprint(BusyTimeout.Milliseconds())
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreFailed, "open history database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, classify(err, "ping history database")
	}
	// SQLite works best with a single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path, retry: resilience.StoreRetryConfig()}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string { return s.path }

// Record inserts rec and returns its id. Lock contention is retried.
func (s *Store) Record(ctx context.Context, rec Record) (int64, error) {
	overlaps, err := json.Marshal(nonNil(rec.Overlaps))
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeStoreFailed, "encode overlaps")
	}

	return resilience.RetryValue(ctx, s.retry, func() (int64, error) {
		res, err := s.db.ExecContext(ctx, insertSession,
			rec.SessionID, rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.Reason,
			rec.Frames, rec.Steps, string(overlaps), rec.Width, rec.Height, rec.Output)
		if err != nil {
			return 0, classify(err, "insert session")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, classify(err, "read session id")
		}
		return id, nil
	})
}

// List returns the most recent sessions first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, selectSessions+" ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, classify(err, "list sessions")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list sessions")
	}
	return out, nil
}

// Get returns the session with id, or a NOT_FOUND error.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectSessions+" WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, apperrors.Newf(apperrors.CodeNotFound, "session %d not found", id)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec      Record
		overlaps string
	)
	err := sc.Scan(&rec.ID, &rec.SessionID, &rec.StartedAt, &rec.FinishedAt, &rec.Reason,
		&rec.Frames, &rec.Steps, &overlaps, &rec.Width, &rec.Height, &rec.Output)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}
	if err != nil {
		return Record{}, classify(err, "scan session")
	}
	if err := json.Unmarshal([]byte(overlaps), &rec.Overlaps); err != nil {
		return Record{}, apperrors.Wrap(err, apperrors.CodeStoreFailed, "decode overlaps")
	}
	return rec, nil
}

// classify maps SQLite lock contention to CodeStoreBusy so writes are retried.
func classify(err error, msg string) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return apperrors.Wrap(err, apperrors.CodeStoreBusy, msg)
	}
	return apperrors.Wrap(err, apperrors.CodeStoreFailed, msg)
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
