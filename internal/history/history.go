// Package history records successful extractions in a local sqlite
// database so recent activity survives restarts. Recording is best-effort:
// the relay never fails a request because history could not be written.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tokrelay/internal/models"
)

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS extractions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url        TEXT NOT NULL,
	video_id   TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	author     TEXT NOT NULL DEFAULT '',
	backend    TEXT NOT NULL,
	filename   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extractions_created_at ON extractions(created_at);
`

// Open creates the database file (and its directory) if needed and applies
// the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	// A single writer keeps sqlite happy under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one successful extraction.
func (s *Store) Record(ctx context.Context, e models.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extractions (url, video_id, title, author, backend, filename, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.URL, e.VideoID, e.Title, e.Author, e.Backend, e.Filename, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording extraction: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, video_id, title, author, backend, filename, created_at
		 FROM extractions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.URL, &e.VideoID, &e.Title, &e.Author,
			&e.Backend, &e.Filename, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
