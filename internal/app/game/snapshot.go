package game

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/tunetap/internal/app/timeline"
	"github.com/osa030/tunetap/internal/domain/player"
	"github.com/osa030/tunetap/internal/domain/track"
)

// Snapshot is the serializable image of a session, sufficient to
// resume play exactly where it left off.
type Snapshot struct {
	ID                 string           `json:"id"`
	Players            []player.Player  `json:"players"`
	CurrentPlayerIndex int              `json:"currentPlayerIndex"`
	DrawPile           []track.Track    `json:"drawPile"`
	CurrentTrack       *track.Track     `json:"currentTrack,omitempty"`
	Status             Status           `json:"status"`
	TurnsTaken         int              `json:"turnsTaken"`
	InitialTurnCount   int              `json:"initialTurnCount"`
	LastResult         *timeline.Result `json:"lastResult,omitempty"`
}

// Snapshot captures the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:                 s.id,
		Players:            make([]player.Player, 0, len(s.players)),
		CurrentPlayerIndex: s.currentPlayerIndex,
		DrawPile:           append([]track.Track(nil), s.drawPile...),
		Status:             s.status,
		TurnsTaken:         s.turnsTaken,
		InitialTurnCount:   s.initialTurnCount,
	}
	for _, p := range s.players {
		cp := *p
		cp.Timeline = append([]track.Track(nil), cp.Timeline...)
		snap.Players = append(snap.Players, cp)
	}
	if s.currentTrack != nil {
		cp := *s.currentTrack
		snap.CurrentTrack = &cp
	}
	if s.lastResult != nil {
		cp := *s.lastResult
		snap.LastResult = &cp
	}
	return snap
}

// RestoreSession rebuilds a session from a snapshot.
func RestoreSession(snap Snapshot, config Config) (*Session, error) {
	switch snap.Status {
	case StatusSetup, StatusPlaying, StatusRoundEnd, StatusWaitingForTracks, StatusGameEnd:
	default:
		return nil, errors.Newf("game: unknown session status %q", snap.Status)
	}
	if len(snap.Players) == 0 && snap.Status != StatusSetup {
		return nil, errors.New("game: snapshot has no players")
	}
	if len(snap.Players) > 0 &&
		(snap.CurrentPlayerIndex < 0 || snap.CurrentPlayerIndex >= len(snap.Players)) {
		return nil, errors.Newf("game: current player index %d out of range", snap.CurrentPlayerIndex)
	}

	s := NewSession(config)
	if snap.ID != "" {
		s.id = snap.ID
	}
	for i := range snap.Players {
		cp := snap.Players[i]
		cp.Timeline = append([]track.Track(nil), cp.Timeline...)
		s.players = append(s.players, &cp)
	}
	s.currentPlayerIndex = snap.CurrentPlayerIndex
	s.drawPile = append([]track.Track(nil), snap.DrawPile...)
	if snap.CurrentTrack != nil {
		cp := *snap.CurrentTrack
		s.currentTrack = &cp
	}
	s.status = snap.Status
	s.turnsTaken = snap.TurnsTaken
	s.initialTurnCount = snap.InitialTurnCount
	if snap.LastResult != nil {
		cp := *snap.LastResult
		s.lastResult = &cp
	}
	return s, nil
}
