package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Pragmas applied by the driver to every connection it opens.
var archivePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// DB is the local archive of produced summaries.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the archive at dbPath and migrates it to the latest
// schema. ctx bounds the initial connection and the migrations.
func Open(ctx context.Context, dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	conn, err := sql.Open("sqlite", archiveDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to archive %s: %w", dbPath, err)
	}
	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating archive: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

func archiveDSN(dbPath string) string {
	q := url.Values{}
	for _, p := range archivePragmas {
		q.Add("_pragma", p)
	}
	return dbPath + "?" + q.Encode()
}

// Close closes the archive.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the archive file path.
func (db *DB) Path() string {
	return db.path
}
