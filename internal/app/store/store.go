// Package store persists session snapshots to disk so a restart
// resumes exactly where the game left off.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunetap/internal/app/game"
)

// UIState holds the client-visible flags saved alongside the game, so
// a resumed session looks exactly like the one that was left.
type UIState struct {
	ShowSongName     bool `json:"showSongName"`
	ShowArtistName   bool `json:"showArtistName"`
	ShowReleaseDates bool `json:"showReleaseDates"`
	Blurred          bool `json:"blurred"`
}

// SessionData is the full persisted snapshot.
type SessionData struct {
	Game    game.Snapshot `json:"game"`
	UI      UIState       `json:"ui"`
	SavedAt time.Time     `json:"savedAt"`
}

// Config holds store configuration.
type Config struct {
	Path     string
	Debounce time.Duration // Delay coalescing rapid successive saves
	MaxAge   time.Duration // Oldest snapshot accepted on load
}

// Store writes snapshots with debouncing. All failures are logged and
// swallowed; persistence problems must never break a running game.
type Store struct {
	path     string
	debounce time.Duration
	maxAge   time.Duration

	mu      sync.Mutex
	pending *SessionData
	timer   *time.Timer
}

// New creates a snapshot store.
func New(cfg Config) *Store {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	return &Store{
		path:     cfg.Path,
		debounce: cfg.Debounce,
		maxAge:   cfg.MaxAge,
	}
}

// Save schedules a debounced write. Rapid successive calls coalesce
// into a single write of the latest data.
func (s *Store) Save(data SessionData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = &data
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.flushPending)
}

// SaveImmediate writes right away, for critical transitions such as
// shutdown or navigation.
func (s *Store) SaveImmediate(data SessionData) {
	s.mu.Lock()
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.write(data)
}

// Flush writes any pending debounced snapshot now.
func (s *Store) Flush() {
	s.flushPending()
}

func (s *Store) flushPending() {
	s.mu.Lock()
	data := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if data == nil {
		return
	}
	s.write(*data)
}

// write marshals and atomically replaces the snapshot file.
func (s *Store) write(data SessionData) {
	data.SavedAt = time.Now().UTC()

	encoded, err := json.Marshal(data)
	if err != nil {
		zlog.Warn().Err(err).Msg("store: snapshot marshal failed")
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		zlog.Warn().Err(err).Msg("store: snapshot temp file failed")
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		zlog.Warn().Err(err).Msg("store: snapshot write failed")
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		zlog.Warn().Err(err).Msg("store: snapshot close failed")
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		zlog.Warn().Err(err).Msg("store: snapshot rename failed")
		return
	}

	zlog.Debug().Str("path", s.path).Msg("store: snapshot saved")
}

// Load reads the snapshot. ok is false when there is nothing usable:
// no file, malformed data, or a snapshot past its maximum age. The
// caller falls back to a fresh setup state.
func (s *Store) Load() (SessionData, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			zlog.Warn().Err(err).Msg("store: snapshot read failed")
		}
		return SessionData{}, false
	}

	var data SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		zlog.Warn().Err(err).Msg("store: snapshot is malformed, discarding")
		return SessionData{}, false
	}

	if data.SavedAt.IsZero() || time.Since(data.SavedAt) > s.maxAge {
		zlog.Info().Time("saved_at", data.SavedAt).Msg("store: snapshot expired, discarding")
		return SessionData{}, false
	}

	return data, true
}

// Clear removes the snapshot file.
func (s *Store) Clear() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		zlog.Warn().Err(err).Msg("store: snapshot remove failed")
	}
}
