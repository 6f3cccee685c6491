// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the binary as a single file.
// No separate database server to run for development, a single-server
// deployment, or tests (use ":memory:" for an in-memory DB).
//
// DOCUMENT-SHAPED DATA IN A RELATIONAL STORE:
// A project's gallery, timeline, tools and outcomes are always read and
// written as a whole, so they are stored as JSON text columns rather than
// child tables. Per-user analytics are different: they are incremented one
// entry at a time, so they live in their own tables where an UPSERT can
// bump a single row atomically.
//
// ONE CONNECTION:
// SQLite serialises writers anyway, and an in-memory database exists per
// connection. Capping the pool at one connection keeps ":memory:" databases
// coherent and turns every statement into an atomic step.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/projectshelf/internal/apperror"

	// Importing the driver registers it with database/sql as "sqlite".
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and hands out the per-aggregate stores.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/projectshelf.db" → file-based database (persistent)
//   - ":memory:"             → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the identity store.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

// Projects returns the project store.
func (db *DB) Projects() *ProjectDB {
	return &ProjectDB{conn: db.conn}
}

// Analytics returns the per-user analytics store.
func (db *DB) Analytics() *AnalyticsDB {
	return &AnalyticsDB{conn: db.conn}
}

// Migrate creates the schema. Every statement is idempotent, so it runs on
// every start.
func (db *DB) Migrate() error {
	statements := []struct {
		name string
		sql  string
	}{
		{"users table", `
			CREATE TABLE IF NOT EXISTS users (
				id              TEXT PRIMARY KEY,
				username        TEXT NOT NULL UNIQUE,
				email           TEXT NOT NULL UNIQUE,
				password_hash   TEXT,
				google_id       TEXT UNIQUE,
				profile_picture TEXT NOT NULL DEFAULT '',
				bio             TEXT NOT NULL DEFAULT '',
				website         TEXT NOT NULL DEFAULT '',
				github          TEXT NOT NULL DEFAULT '',
				linkedin        TEXT NOT NULL DEFAULT '',
				twitter         TEXT NOT NULL DEFAULT '',
				selected_theme  TEXT NOT NULL DEFAULT 'default',
				primary_color   TEXT NOT NULL DEFAULT '',
				secondary_color TEXT NOT NULL DEFAULT '',
				accent_color    TEXT NOT NULL DEFAULT '',
				last_login      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				login_count     INTEGER NOT NULL DEFAULT 0 CHECK (login_count >= 0),
				created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				CHECK (password_hash IS NOT NULL OR google_id IS NOT NULL)
			);`},
		{"projects table", `
			CREATE TABLE IF NOT EXISTS projects (
				id            TEXT PRIMARY KEY,
				user_id       TEXT NOT NULL REFERENCES users(id),
				title         TEXT NOT NULL,
				slug          TEXT NOT NULL UNIQUE,
				overview      TEXT NOT NULL,
				media_gallery TEXT NOT NULL DEFAULT '[]',
				timeline      TEXT NOT NULL DEFAULT '[]',
				tools         TEXT NOT NULL DEFAULT '[]',
				metrics       TEXT NOT NULL DEFAULT '[]',
				testimonials  TEXT NOT NULL DEFAULT '[]',
				views         INTEGER NOT NULL DEFAULT 0 CHECK (views >= 0),
				engagement    INTEGER NOT NULL DEFAULT 0 CHECK (engagement >= 0),
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_projects_user_id ON projects(user_id);`},
		{"user_visits table", `
			CREATE TABLE IF NOT EXISTS user_visits (
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				day     TEXT NOT NULL,
				visits  INTEGER NOT NULL DEFAULT 0 CHECK (visits >= 0),
				PRIMARY KEY (user_id, day)
			);`},
		{"user_project_views table", `
			CREATE TABLE IF NOT EXISTS user_project_views (
				seq         INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				project_id  TEXT NOT NULL,
				view_count  INTEGER NOT NULL DEFAULT 0 CHECK (view_count >= 0),
				last_viewed DATETIME NOT NULL,
				UNIQUE (user_id, project_id)
			);`},
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt.sql); err != nil {
			return fmt.Errorf("creating %s: %w", stmt.name, err)
		}
	}
	return nil
}

// uniqueViolation reports whether err is a UNIQUE constraint failure and,
// if so, which column caused it (e.g. "email" for "users.email").
func uniqueViolation(err error) (string, bool) {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	if sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return "", false
	}
	msg := sqliteErr.Error()
	idx := strings.Index(msg, "UNIQUE constraint failed:")
	if idx < 0 {
		return "", false
	}
	target := strings.TrimSpace(msg[idx+len("UNIQUE constraint failed:"):])
	// "users.email (2067)" or
	// "user_project_views.user_id, user_project_views.project_id (2067)"
	target, _, _ = strings.Cut(target, ",")
	target, _, _ = strings.Cut(strings.TrimSpace(target), " ")
	if _, column, ok := strings.Cut(target, "."); ok {
		target = column
	}
	return target, true
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// conflictError converts a unique violation into an apperror the service
// layer can branch on.
func conflictError(resource, column string) *apperror.AppError {
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: fmt.Sprintf("%s with this %s already exists", resource, column),
		Field:   column,
	}
}

// nullString maps "" to SQL NULL so optional UNIQUE columns (google_id,
// password_hash) don't collide on empty values.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}
