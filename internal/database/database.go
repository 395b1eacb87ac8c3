// Package database is the SQLite result store for tracked people, risk
// analysis records and background tasks.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Sentinel errors returned by store operations.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrFieldNotEditable  = errors.New("field is not editable")
	ErrEmptyName         = errors.New("person name cannot be empty")
)

const timeLayout = "2006-01-02 15:04:05"

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// busy_timeout goes in the DSN so every pooled connection gets it; the
	// scheduler and HTTP handlers write concurrently.
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath, now: time.Now}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) timestamp() string {
	return db.now().UTC().Format(timeLayout)
}
