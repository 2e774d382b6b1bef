// Package store defines the external persistent-store contract referenced
// in §6 and a reference SQLite implementation resolving the warmup
// candidate source. Persisting message/session state itself is out of
// scope (§14); this package only backs the CacheManager's warmup.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rclabs/etlmonitor/internal/cache"
	"github.com/rclabs/etlmonitor/internal/errs"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the narrow collaborator contract the cache's warmup,
// health-check and access-recording paths need from whatever persistent
// store is deployed. This repo owns only this interface and the SQLite
// reference implementation below; a production deployment may swap in
// any store satisfying it.
type Store interface {
	cache.WarmupSource
	cache.Backend
	cache.AccessRecorder
}

// SQLiteStore is a reference Store backed by database/sql + mattn/go-sqlite3.
// It expects a cache_access_log table recording recently-touched cache
// keys, tags and payloads — the warmup candidate source the spec leaves
// as an external-store implementation detail.
type SQLiteStore struct {
	db *sql.DB
}

// Open connects to a SQLite database at dsn and verifies it with a ping.
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.Wrap(err, "open sqlite store")
	}
	if err := db.Ping(); err != nil {
		return nil, errs.Wrap(err, "ping sqlite store")
	}
	return &SQLiteStore{db: db}, nil
}

// NewWithDB wraps an already-open *sql.DB, for callers that manage their
// own connection pool (and for sqlmock-based tests).
func NewWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping satisfies cache.Backend.
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

// accessLogRow mirrors one row of cache_access_log.
type accessLogRow struct {
	CacheKey string
	Tag      string
	Payload  []byte
}

// WarmupCandidates returns up to max rows from cache_access_log ordered
// by most recently accessed, satisfying cache.WarmupSource.
func (s *SQLiteStore) WarmupCandidates(ctx context.Context, max int) ([]cache.WarmupCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cache_key, tag, payload
		FROM cache_access_log
		ORDER BY accessed_at DESC
		LIMIT ?
	`, max)
	if err != nil {
		return nil, errs.Wrap(err, "query warmup candidates")
	}
	defer rows.Close()

	var out []cache.WarmupCandidate
	for rows.Next() {
		var row accessLogRow
		if err := rows.Scan(&row.CacheKey, &row.Tag, &row.Payload); err != nil {
			return nil, errs.Wrap(err, "scan warmup candidate row")
		}
		out = append(out, cache.WarmupCandidate{
			Key:   row.CacheKey,
			Value: row.Payload,
			Tags:  []cache.Tag{cache.Tag(row.Tag)},
		})
	}
	return out, rows.Err()
}

// RecordAccess appends one row to cache_access_log, satisfying
// cache.AccessRecorder. cache.Manager.Put calls this on every put
// whenever its backend implements the interface, so future warmups favor
// recently-hot keys.
func (s *SQLiteStore) RecordAccess(ctx context.Context, key string, tag cache.Tag, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_access_log (cache_key, tag, payload, accessed_at)
		VALUES (?, ?, ?, ?)
	`, key, string(tag), payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return errs.Wrap(err, "record cache access")
	}
	return nil
}

// Migrate creates cache_access_log if it does not already exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cache_access_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cache_key TEXT NOT NULL,
			tag TEXT NOT NULL,
			payload BLOB,
			accessed_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return errs.Wrap(err, "migrate cache_access_log")
	}
	return nil
}
