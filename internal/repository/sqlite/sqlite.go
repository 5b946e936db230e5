// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure-Go translation of SQLite — no CGo, no C
// compiler, cross-compiles everywhere Go does. The blank import below
// registers it with database/sql under the driver name "sqlite".
//
// One *DB value implements every repository interface; the service layer
// still sees them as separate interfaces, so a future split into separate
// stores would not touch the services.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" in tests for a throwaway database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Surface a bad path or permissions problem now, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed during a write — required for a web server where
	// concurrent requests share the pool.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite. We rely on them for the
	// ON DELETE CASCADE from users to highlights/notes/saved_articles.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool, flushing the WAL.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it idempotent;
// for anything fancier you'd bring in golang-migrate.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			email              TEXT NOT NULL UNIQUE,
			password_hash      TEXT NOT NULL,
			google_id          TEXT NOT NULL DEFAULT '',
			learning_interests TEXT NOT NULL DEFAULT '[]',
			profile_picture    TEXT NOT NULL DEFAULT '',
			created_at         DATETIME NOT NULL,
			updated_at         DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_google_id
			ON users(google_id) WHERE google_id != '';
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS highlights (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			article_id       TEXT NOT NULL,
			article_title    TEXT NOT NULL DEFAULT '',
			article_url      TEXT NOT NULL DEFAULT '',
			highlighted_text TEXT NOT NULL,
			explanation      TEXT,
			context          TEXT NOT NULL DEFAULT '',
			position         TEXT,
			tags             TEXT NOT NULL DEFAULT '[]',
			is_bookmarked    INTEGER NOT NULL DEFAULT 0,
			created_at       DATETIME NOT NULL,
			updated_at       DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_highlights_user_created
			ON highlights(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_highlights_user_article
			ON highlights(user_id, article_id);
	`)
	if err != nil {
		return fmt.Errorf("creating highlights table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS notes (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			note_type        TEXT NOT NULL,
			title            TEXT NOT NULL DEFAULT '',
			content          TEXT NOT NULL DEFAULT '',
			highlighted_text TEXT NOT NULL DEFAULT '',
			explanation      TEXT NOT NULL DEFAULT '',
			original_context TEXT NOT NULL DEFAULT '',
			is_favorite      INTEGER NOT NULL DEFAULT 0,
			created_at       DATETIME NOT NULL,
			updated_at       DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notes_user_created
			ON notes(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating notes table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS saved_articles (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title        TEXT NOT NULL,
			url          TEXT NOT NULL,
			content      TEXT NOT NULL DEFAULT '',
			author       TEXT NOT NULL DEFAULT '',
			published_at DATETIME,
			tags         TEXT NOT NULL DEFAULT '',
			dev_to_id    TEXT NOT NULL,
			created_at   DATETIME NOT NULL,
			updated_at   DATETIME NOT NULL,
			UNIQUE(user_id, dev_to_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating saved_articles table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// modernc.org/sqlite surfaces these as plain errors carrying the SQLite
// message, so string matching is the available hook.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
