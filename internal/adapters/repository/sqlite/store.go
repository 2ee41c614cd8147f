// Package sqlite implements repository.Store on SQLite through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/surgitrack/internal/adapters/repository"
	"github.com/okian/surgitrack/pkg/metrics"

	// Pure Go SQLite driver (no CGO).
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{ //nolint:gochecknoglobals // constant list
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	email         TEXT    NOT NULL UNIQUE,
	full_name     TEXT    NOT NULL DEFAULT '',
	password_hash TEXT    NOT NULL,
	created_at    TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS teams (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT    NOT NULL UNIQUE,
	created_at TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS team_members (
	team_id INTEGER NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	PRIMARY KEY (team_id, user_id)
);
CREATE TABLE IF NOT EXISTS tasks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT    NOT NULL,
	slug        TEXT    NOT NULL UNIQUE,
	category    TEXT    NOT NULL DEFAULT '',
	description TEXT    NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS task_standards (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id              INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	level                TEXT    NOT NULL,
	target_time_seconds  INTEGER NOT NULL,
	max_minor_errors     INTEGER NOT NULL DEFAULT 0,
	max_major_errors     INTEGER NOT NULL DEFAULT 0,
	consecutive_required INTEGER NOT NULL DEFAULT 1,
	objective_criteria   TEXT,
	UNIQUE (task_id, level)
);
CREATE TABLE IF NOT EXISTS error_types (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT    NOT NULL UNIQUE,
	description TEXT    NOT NULL DEFAULT '',
	severity    TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS attempts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	task_id      INTEGER NOT NULL REFERENCES tasks(id),
	standard_id  INTEGER NOT NULL REFERENCES task_standards(id),
	started_at   TEXT    NOT NULL,
	ended_at     TEXT    NOT NULL,
	time_seconds INTEGER NOT NULL,
	score        INTEGER NOT NULL,
	proficiency  INTEGER NOT NULL,
	created_at   TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_user ON attempts (user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_attempts_task ON attempts (task_id);
CREATE TABLE IF NOT EXISTS attempt_errors (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	attempt_id    INTEGER NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
	error_type_id INTEGER NOT NULL REFERENCES error_types(id)
);
CREATE INDEX IF NOT EXISTS idx_attempt_errors_attempt ON attempt_errors (attempt_id);
CREATE TABLE IF NOT EXISTS videos (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	attempt_id   INTEGER NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
	storage_url  TEXT    NOT NULL,
	size_bytes   INTEGER NOT NULL,
	content_type TEXT    NOT NULL DEFAULT '',
	created_at   TEXT    NOT NULL
);
`

// Store is the SQLite-backed relational store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// Open connects to the SQLite database at dsn, applies the pragmas and
// creates the schema. A plain file path gets its parent directory created.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if isFilePath(dsn) {
		if err := ensureDir(dsn); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		// Every pooled connection to a private in-memory database would see
		// an empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func withPragmas(dsn string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+url.QueryEscape(p))
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") && isFilePath(dsn) {
		dsn = "file:" + dsn
	}
	return dsn + sep + strings.Join(params, "&")
}

func isFilePath(dsn string) bool {
	return !strings.HasPrefix(dsn, "file:") && !strings.Contains(dsn, ":memory:")
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// track starts timing op. The returned func records latency and outcome:
//
//	defer track("op")(&err)
func track(op string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		err := *errp
		if errors.Is(err, repository.ErrNotFound) {
			err = nil
		}
		metrics.RecordStoreQuery(op, float64(time.Since(start).Microseconds())/1000, err)
	}
}

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var se *msqlite.Error
	// The driver may report either the primary or the extended code.
	if !errors.As(err, &se) || se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return err
	}
	if se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY || strings.Contains(se.Error(), "FOREIGN KEY") {
		return fmt.Errorf("%w: %w", repository.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", repository.ErrConflict, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
