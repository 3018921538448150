// Package store reads prompt data out of an editor workspace's embedded
// SQLite key-value store. Stores are always opened read-only: the database
// belongs to the editor and may be written by it at any moment.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// promptsKey is the ItemTable key holding the captured prompt collection.
const promptsKey = "aiService.prompts"

// Store is one workspace's opened state database.
type Store struct {
	db      *sql.DB
	path    string
	modTime time.Time
}

// Open opens the store file read-only and captures its modification time.
// The mtime is the authoritative capture timestamp for every prompt read from
// this store; timestamps embedded in the records themselves are not trusted.
func Open(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}

	db, err := openDB("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	return &Store{db: db, path: path, modTime: info.ModTime()}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ModTime returns the store file's modification time at open.
func (s *Store) ModTime() time.Time {
	return s.modTime
}

// Value reads a single ItemTable value. The second return reports whether the
// key exists.
func (s *Store) Value(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM ItemTable WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: read key %q: %w", key, err)
	}
	return value, true, nil
}

// Tables lists the table names in the store, for diagnostics.
func (s *Store) Tables() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM sqlite_master WHERE type='table' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Prompts returns the prompt texts stored under the prompts key, in stored
// order. An absent or empty key yields an empty list with no error; a blob
// that fails to parse as a JSON list is reported as an error so the caller
// can log it and treat the workspace as having no prompts. Elements that are
// not objects, or that lack a string "text" field, are discarded.
func (s *Store) Prompts() ([]string, error) {
	raw, ok, err := s.Value(promptsKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("store: parse prompt collection: %w", err)
	}

	texts := make([]string, 0, len(elems))
	for _, elem := range elems {
		var record struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(elem, &record); err != nil || record.Text == nil {
			continue
		}
		texts = append(texts, *record.Text)
	}
	return texts, nil
}
