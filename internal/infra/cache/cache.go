// Package cache provides the durable release-date cache on SQLite.
//
// Each row distinguishes three outcomes for a (track, artist) key:
// a known date, an explicit "looked up, nothing found" tombstone
// (NULL date column), and absent (no row). The tombstone keeps the
// resolver from re-querying a provider that already confirmed a miss.
package cache

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS release_date_cache (
	track_name   TEXT NOT NULL,
	artist_name  TEXT NOT NULL,
	release_date TEXT,
	updated_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (track_name, artist_name)
);
`

// Key identifies a cache entry.
type Key struct {
	TrackName  string
	ArtistName string
}

// NewKey normalizes a (track, artist) pair into a cache key.
func NewKey(trackName, artistName string) Key {
	return Key{
		TrackName:  strings.TrimSpace(trackName),
		ArtistName: strings.TrimSpace(artistName),
	}
}

// Store is the SQLite-backed cache.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "cache: open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: ping database")
	}
	return &Store{db: db}, nil
}

// Migrate creates the cache table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "cache: create schema")
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get looks up a key. present reports whether a row exists at all;
// a present row with an empty date is the not-found tombstone.
func (s *Store) Get(ctx context.Context, key Key) (date string, present bool, err error) {
	var stored sql.NullString
	row := s.db.QueryRowContext(ctx,
		`SELECT release_date FROM release_date_cache WHERE track_name = ? AND artist_name = ?`,
		key.TrackName, key.ArtistName)
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "cache: get")
	}
	if !stored.Valid {
		return "", true, nil
	}
	return stored.String, true, nil
}

// Put upserts a key. An empty date writes the not-found tombstone.
// Last write wins.
func (s *Store) Put(ctx context.Context, key Key, date string) error {
	var stored any
	if date != "" {
		stored = date
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO release_date_cache (track_name, artist_name, release_date, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (track_name, artist_name)
		 DO UPDATE SET release_date = excluded.release_date, updated_at = excluded.updated_at`,
		key.TrackName, key.ArtistName, stored, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "cache: put")
	}
	return nil
}

// BatchGet returns only the present keys. Tombstoned keys appear in
// the result with an empty date. Absent keys are omitted.
func (s *Store) BatchGet(ctx context.Context, keys []Key) (map[Key]string, error) {
	hits := make(map[Key]string, len(keys))
	if len(keys) == 0 {
		return hits, nil
	}

	placeholders := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		placeholders = append(placeholders, "(?, ?)")
		args = append(args, key.TrackName, key.ArtistName)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT track_name, artist_name, release_date FROM release_date_cache
		 WHERE (track_name, artist_name) IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		return nil, errors.Wrap(err, "cache: batch get")
	}
	defer rows.Close()

	for rows.Next() {
		var key Key
		var stored sql.NullString
		if err := rows.Scan(&key.TrackName, &key.ArtistName, &stored); err != nil {
			return nil, errors.Wrap(err, "cache: batch get scan")
		}
		if stored.Valid {
			hits[key] = stored.String
		} else {
			hits[key] = ""
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "cache: batch get rows")
	}
	return hits, nil
}
