// Package packcache stores raw multi-subtitle archives keyed by their
// fingerprint, so a season pack fetched for one episode is reused by every
// other episode that resolves to the same archive. Concurrent downloads that
// share a fingerprint serialize on a per-fingerprint lock: the first caller
// fetches, the rest hit the cache.
package packcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	bolt "go.etcd.io/bbolt"

	"subscout/internal/logging"
	"subscout/internal/providers"
)

var bucketName = []byte("archives")

// Store is the archive cache backed by a bbolt database.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*fingerprintLock
}

type fingerprintLock struct {
	mu   sync.Mutex
	refs int
}

// Open creates or opens the cache database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("packcache: open db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("packcache: create bucket: %w", err)
	}
	return &Store{
		db:     db,
		logger: logging.NewComponentLogger(logger, "pack-cache"),
		locks:  make(map[string]*fingerprintLock),
	}, nil
}

// Load returns the cached archive bytes for a fingerprint, if present.
func (s *Store) Load(fingerprint string) ([]byte, bool, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil, false, errors.New("packcache: empty fingerprint")
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if value := tx.Bucket(bucketName).Get([]byte(fingerprint)); value != nil {
			data = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("packcache: load %s: %w", fingerprint, err)
	}
	return data, data != nil, nil
}

// Save persists archive bytes under the fingerprint.
func (s *Store) Save(fingerprint string, data []byte) error {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return errors.New("packcache: empty fingerprint")
	}
	if len(data) == 0 {
		return errors.New("packcache: empty archive")
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(fingerprint), data)
	})
	if err != nil {
		return fmt.Errorf("packcache: save %s: %w", fingerprint, err)
	}
	s.logger.Debug("archive cached",
		logging.String("fingerprint", fingerprint),
		logging.Int("bytes", len(data)),
	)
	return nil
}

// Invalidate removes a fingerprint so a corrupted or unusable archive is
// never silently reused.
func (s *Store) Invalidate(fingerprint string) error {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(fingerprint))
	})
	if err != nil {
		return fmt.Errorf("packcache: invalidate %s: %w", fingerprint, err)
	}
	s.logger.Debug("archive invalidated", logging.String("fingerprint", fingerprint))
	return nil
}

// LockFingerprint serializes work on one fingerprint across goroutines and
// returns the unlock function. Callers hold the lock across the whole
// pre-download/download/post-download sequence.
func (s *Store) LockFingerprint(fingerprint string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[fingerprint]
	if !ok {
		l = &fingerprintLock{}
		s.locks[fingerprint] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, fingerprint)
		}
		s.mu.Unlock()
	}
}

// PreDownload is the pool hook that injects previously fetched archive bytes
// into a pack candidate so the adapter can skip re-fetching.
func (s *Store) PreDownload(_ context.Context, candidate *providers.Candidate) error {
	if !candidate.IsPack || candidate.PackFingerprint == "" {
		return nil
	}
	data, ok, err := s.Load(candidate.PackFingerprint)
	if err != nil {
		return err
	}
	if ok {
		candidate.Archive = data
		s.logger.Debug("archive cache hit",
			logging.String("fingerprint", candidate.PackFingerprint),
			logging.String("provider", candidate.Provider),
		)
	}
	return nil
}

// PostDownload is the pool hook that persists a newly fetched archive and
// clears the candidate's archive reference, so sibling episodes sharing the
// archive do not re-persist it.
func (s *Store) PostDownload(_ context.Context, candidate *providers.Candidate) error {
	if !candidate.IsPack || candidate.PackFingerprint == "" || len(candidate.Archive) == 0 {
		candidate.Archive = nil
		return nil
	}
	err := s.Save(candidate.PackFingerprint, candidate.Archive)
	candidate.Archive = nil
	return err
}

// Stats reports the number of cached archives and their total size.
func (s *Store) Stats() (count int, bytes int64, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(_, v []byte) error {
			count++
			bytes += int64(len(v))
			return nil
		})
	})
	if err != nil {
		return 0, 0, fmt.Errorf("packcache: stats: %w", err)
	}
	return count, bytes, nil
}

// Clear removes every cached archive.
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
	if err != nil {
		return fmt.Errorf("packcache: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
