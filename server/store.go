package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fablecast/fablecast/internal/story"
)

// Record is one finished render in the history database.
type Record struct {
	ID        string
	Title     string
	Params    story.Params
	Outputs   []string
	Seconds   float64
	CreatedAt time.Time
}

// Store keeps render history in sqlite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed creates) the history database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening render db: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS renders (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		params TEXT NOT NULL,
		outputs TEXT NOT NULL,
		seconds REAL NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating renders table: %w", err)
	}
	return &Store{db: db}, nil
}

// Add inserts one render record.
func (s *Store) Add(rec Record) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	outputs, err := json.Marshal(rec.Outputs)
	if err != nil {
		return fmt.Errorf("encoding outputs: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO renders (id, title, params, outputs, seconds, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, string(params), string(outputs), rec.Seconds, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting render: %w", err)
	}
	return nil
}

// Recent returns up to n renders, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, title, params, outputs, seconds, created_at FROM renders ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying renders: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Record
	for rows.Next() {
		var (
			rec             Record
			params, outputs string
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &params, &outputs, &rec.Seconds, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning render: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
			return nil, fmt.Errorf("decoding params for %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(outputs), &rec.Outputs); err != nil {
			return nil, fmt.Errorf("decoding outputs for %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
