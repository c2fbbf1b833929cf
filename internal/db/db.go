// Package db persists refresh bookkeeping in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection holding refresh state.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates a SQLite database at the given path.
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := otelsql.Open("sqlite", path, otelsql.WithAttributes(semconv.DBSystemSqlite))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// migration upgrades the schema by one version inside a transaction.
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{version: 1, stmts: []string{
		`CREATE TABLE IF NOT EXISTS refresh_state (
			path TEXT NOT NULL,
			kind TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			remote_id TEXT NOT NULL DEFAULT '',
			refreshed_at INTEGER,
			last_error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (path, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_state_refreshed_at ON refresh_state(refreshed_at)`,
	}},
	{version: 2, stmts: []string{
		`ALTER TABLE refresh_state ADD COLUMN outcome TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE refresh_state ADD COLUMN pass_id TEXT NOT NULL DEFAULT ''`,
	}},
}

// SchemaVersion is the version the migrations bring a database to.
func SchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// migrate applies every migration newer than the stored schema version.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("failed to apply v%d migration: %w", m.version, err)
		}
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m migration) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range m.stmts {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
		return err
	}
	return tx.Commit()
}
