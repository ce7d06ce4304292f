// Package sqlite implements the doppelbot persistence layer on a single
// SQLite database using modernc.org/sqlite (pure Go, no CGO) with WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/inkonio/doppelbot/internal/store"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000 // milliseconds

// timeFormat matches SQLite's strftime('%Y-%m-%dT%H:%M:%fZ') output so that
// lexicographic comparison in SQL equals chronological comparison.
const timeFormat = "2006-01-02T15:04:05.000Z"

// Compile-time interface guards.
var (
	_ store.SettingsStore   = (*Store)(nil)
	_ store.CorpusStore     = (*Store)(nil)
	_ store.SessionStore    = (*Store)(nil)
	_ store.ConversationLog = (*Store)(nil)
)

// Store implements all doppelbot persistence contracts backed by one
// SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database at the given path and
// migrates the schema. busyTimeout is in milliseconds; zero applies the
// default. The database uses WAL mode and a single connection, since SQLite
// serialises writes anyway.
func Open(path string, busyTimeout int) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", s, err)
	}
	return t, nil
}
