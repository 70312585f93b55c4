// Package blacklist records subtitle candidates already rejected for a
// video/language pair so they are never re-offered to the scorer. Entries
// persist across runs in SQLite; membership checks run against an in-memory
// index seeded at open.
package blacklist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"subscout/internal/language"
)

// Entry identifies one rejected candidate.
type Entry struct {
	VideoID     int64
	Language    language.Language
	Provider    string
	CandidateID string
	AddedAt     time.Time
}

// Store is the blacklist backed by a SQLite database.
type Store struct {
	db   *sql.DB
	path string

	mu      sync.RWMutex
	entries map[string]struct{}
}

// Open connects to (or creates) the blacklist database at path, applies the
// schema, and seeds the in-memory index.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("blacklist: open sqlite db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("blacklist: apply pragma %q: %w", pragma, execErr)
		}
	}
	schema := `CREATE TABLE IF NOT EXISTS blacklist (
        video_id     INTEGER NOT NULL,
        language     TEXT NOT NULL,
        provider     TEXT NOT NULL,
        candidate_id TEXT NOT NULL,
        added_at     TEXT NOT NULL,
        PRIMARY KEY (video_id, language, provider, candidate_id)
    )`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blacklist: apply schema: %w", err)
	}

	store := &Store{db: db, path: path, entries: make(map[string]struct{})}
	if err := store.seed(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) seed(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT video_id, language, provider, candidate_id FROM blacklist`)
	if err != nil {
		return fmt.Errorf("blacklist: seed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var videoID int64
		var lang, provider, candidateID string
		if err := rows.Scan(&videoID, &lang, &provider, &candidateID); err != nil {
			return fmt.Errorf("blacklist: scan seed row: %w", err)
		}
		s.entries[key(videoID, lang, provider, candidateID)] = struct{}{}
	}
	return rows.Err()
}

// Contains reports whether the candidate was already rejected for this
// video/language. Checked before scoring, never after.
func (s *Store) Contains(videoID int64, lang language.Language, provider, candidateID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key(videoID, lang.Key(), provider, candidateID)]
	return ok
}

// Add records a rejection, persisting it and updating the index atomically
// per key. Adding an existing entry is a no-op.
func (s *Store) Add(ctx context.Context, videoID int64, lang language.Language, provider, candidateID string) error {
	k := key(videoID, lang.Key(), provider, candidateID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[k]; ok {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blacklist (video_id, language, provider, candidate_id, added_at) VALUES (?, ?, ?, ?, ?)`,
		videoID, lang.Key(), provider, candidateID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("blacklist: insert: %w", err)
	}
	s.entries[k] = struct{}{}
	return nil
}

// List returns all persisted entries, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, language, provider, candidate_id, added_at FROM blacklist ORDER BY added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("blacklist: list: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var videoID int64
		var langCode, provider, candidateID, addedAt string
		if err := rows.Scan(&videoID, &langCode, &provider, &candidateID, &addedAt); err != nil {
			return nil, fmt.Errorf("blacklist: scan row: %w", err)
		}
		lang, err := language.Parse(langCode)
		if err != nil {
			return nil, fmt.Errorf("blacklist: stored language %q: %w", langCode, err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, addedAt)
		entries = append(entries, Entry{
			VideoID:     videoID,
			Language:    lang,
			Provider:    provider,
			CandidateID: candidateID,
			AddedAt:     ts,
		})
	}
	return entries, rows.Err()
}

// Clear removes every entry, persisted and in-memory.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blacklist`); err != nil {
		return fmt.Errorf("blacklist: clear: %w", err)
	}
	s.entries = make(map[string]struct{})
	return nil
}

// Len returns the number of entries currently indexed.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func key(videoID int64, lang, provider, candidateID string) string {
	return strings.Join([]string{fmt.Sprintf("%d", videoID), lang, provider, candidateID}, "|")
}
