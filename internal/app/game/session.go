// Package game implements the turn-based session state machine.
package game

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunetap/internal/app/filter"
	"github.com/osa030/tunetap/internal/app/timeline"
	"github.com/osa030/tunetap/internal/domain/player"
	"github.com/osa030/tunetap/internal/domain/track"
)

// Status represents the session lifecycle state.
type Status string

const (
	StatusSetup            Status = "setup"
	StatusPlaying          Status = "playing"
	StatusRoundEnd         Status = "roundEnd"
	StatusWaitingForTracks Status = "waitingForTracks"
	StatusGameEnd          Status = "gameEnd"
)

// Config holds session configuration.
type Config struct {
	WinThreshold int           // Score that ends the game
	EndDelay     time.Duration // Delay between the winning placement and game end
	MinPlayers   int
	MaxPlayers   int
}

// DefaultConfig returns the standard game rules.
func DefaultConfig() Config {
	return Config{
		WinThreshold: 10,
		EndDelay:     2 * time.Second,
		MinPlayers:   2,
		MaxPlayers:   6,
	}
}

// Session owns the authoritative game state: players, the shared draw
// pile, the current turn's track, and turn progression. Mutations are
// serialized by an internal mutex; observers consume the event channel.
type Session struct {
	mu sync.RWMutex

	id                 string
	players            []*player.Player
	currentPlayerIndex int
	drawPile           []track.Track
	currentTrack       *track.Track
	status             Status
	turnsTaken         int
	initialTurnCount   int
	lastResult         *timeline.Result

	config Config

	endTimerCancel func()

	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a session in the setup state.
func NewSession(config Config) *Session {
	if config.WinThreshold <= 0 {
		config.WinThreshold = 10
	}
	if config.EndDelay <= 0 {
		config.EndDelay = 2 * time.Second
	}
	if config.MinPlayers <= 0 {
		config.MinPlayers = 2
	}
	if config.MaxPlayers < config.MinPlayers {
		config.MaxPlayers = 6
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:      uuid.NewString(),
		status:  StatusSetup,
		config:  config,
		eventCh: make(chan Event, 10),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Events returns the event channel.
func (s *Session) Events() <-chan Event {
	return s.eventCh
}

// Initialize sets up a new game: screens and shuffles the candidate
// tracks, creates the players, deals one seed track to each, and starts
// the first turn. Only valid from the setup state; a no-op otherwise.
func (s *Session) Initialize(candidates []track.Track, playerNames []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusSetup {
		return
	}

	pool := filter.NewChain(filter.NewPlayableFilter()).Apply(candidates)
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	names := clampPlayerNames(playerNames, s.config.MinPlayers, s.config.MaxPlayers)
	s.players = make([]*player.Player, 0, len(names))
	for _, name := range names {
		s.players = append(s.players, player.New(name))
	}

	// Seed each timeline with one unconditionally placed track.
	for _, p := range s.players {
		if len(pool) == 0 {
			break
		}
		seed := pool[0]
		pool = pool[1:]
		p.InsertAt(timeline.InsertIndex(p.Timeline, seed), seed)
	}

	s.drawPile = pool
	s.currentPlayerIndex = 0
	s.turnsTaken = 0
	s.initialTurnCount = len(pool)
	s.lastResult = nil

	zlog.Info().
		Str("session_id", s.id).
		Int("players", len(s.players)).
		Int("draw_pile", len(s.drawPile)).
		Msg("game: session initialized")

	s.status = StatusPlaying
	s.selectRandomTrackLocked()
}

// SelectRandomTrack draws a random track from the pile as the current
// track without removing it. Only valid while playing.
func (s *Session) SelectRandomTrack() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPlaying {
		return
	}
	s.selectRandomTrackLocked()
}

func (s *Session) selectRandomTrackLocked() {
	if len(s.drawPile) == 0 {
		s.currentTrack = nil
		s.status = StatusWaitingForTracks
		s.sendEventLocked(Event{Type: EventWaitingForTracks, Status: s.status})
		return
	}

	drawn := s.drawPile[rand.Intn(len(s.drawPile))]
	s.currentTrack = &drawn
	s.status = StatusPlaying
	s.sendEventLocked(Event{
		Type:   EventTurnStarted,
		Status: s.status,
		Player: s.players[s.currentPlayerIndex].Name,
		Track:  s.currentTrack,
	})
}

// PlaceTrackFromGap resolves the current turn using a gap position in
// the active player's timeline: gap 0 is before everything, gap N
// (timeline length) is after everything. A no-op outside of a turn.
func (s *Session) PlaceTrackFromGap(gapIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPlaying || s.currentTrack == nil {
		return
	}

	active := s.players[s.currentPlayerIndex]
	var p timeline.Placement
	switch {
	case gapIndex <= 0:
		p = timeline.Placement{Kind: timeline.KindBefore, ReferenceIndex: timeline.NoReference}
	case gapIndex >= len(active.Timeline):
		p = timeline.Placement{Kind: timeline.KindAfter, ReferenceIndex: timeline.NoReference}
	default:
		p = timeline.Placement{Kind: timeline.KindBefore, ReferenceIndex: gapIndex}
	}

	s.resolvePlacementLocked(p)
}

// PlaceTrackSameYear resolves the current turn by asserting the current
// track shares a release year with the card at cardIndex in the active
// player's timeline. A no-op outside of a turn or for a bad index.
func (s *Session) PlaceTrackSameYear(cardIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPlaying || s.currentTrack == nil {
		return
	}

	active := s.players[s.currentPlayerIndex]
	if cardIndex < 0 || cardIndex >= len(active.Timeline) {
		return
	}

	year, ok := active.Timeline[cardIndex].ReleaseYear()
	if !ok {
		return
	}

	s.resolvePlacementLocked(timeline.Placement{
		Kind:          timeline.KindSame,
		ReferenceYear: year,
	})
}

func (s *Session) resolvePlacementLocked(p timeline.Placement) {
	active := s.players[s.currentPlayerIndex]
	drawn := *s.currentTrack

	result := timeline.ComputePlacement(active.Timeline, drawn, p)

	if result.Correct {
		active.AwardPoint()
		active.InsertAt(result.CorrectPosition, drawn)
	} else {
		active.ResetScore()
	}

	s.removeFromPileLocked(drawn.ID)
	s.currentTrack = nil
	s.lastResult = &result
	s.status = StatusRoundEnd

	zlog.Debug().
		Str("session_id", s.id).
		Str("player", active.Name).
		Bool("correct", result.Correct).
		Int("score", active.Score).
		Msg("game: placement resolved")

	s.sendEventLocked(Event{
		Type:   EventRoundEnded,
		Status: s.status,
		Player: active.Name,
		Track:  &drawn,
		Result: &result,
	})

	if active.Score >= s.config.WinThreshold {
		s.scheduleGameEndLocked()
	}
}

// scheduleGameEndLocked arms the delayed end-of-game transition so the
// winning placement's result stays visible for a moment.
func (s *Session) scheduleGameEndLocked() {
	if s.endTimerCancel != nil {
		s.endTimerCancel()
	}
	t := time.AfterFunc(s.config.EndDelay, func() {
		s.EndGame()
	})
	s.endTimerCancel = func() { t.Stop() }
}

// NextTurn advances to the next player and draws their track.
// Only valid from roundEnd; a no-op otherwise.
func (s *Session) NextTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRoundEnd {
		return
	}

	s.currentPlayerIndex = (s.currentPlayerIndex + 1) % len(s.players)
	if s.turnsTaken < s.initialTurnCount {
		s.turnsTaken++
	}

	s.status = StatusPlaying
	s.selectRandomTrackLocked()
}

// AddPlayableTracks appends newly resolved tracks to the draw pile,
// skipping anything already in use and anything not playable. If the
// session was starved for tracks, play resumes. Callable at any time.
func (s *Session) AddPlayableTracks(tracks []track.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusGameEnd {
		return
	}

	chain := filter.NewChain(
		filter.NewPlayableFilter(),
		filter.NewDuplicateTrackFilter(usedTrackSet(s.usedTracksLocked())),
	)
	fresh := chain.Apply(tracks)
	if len(fresh) == 0 {
		return
	}

	s.drawPile = append(s.drawPile, fresh...)
	s.initialTurnCount += len(fresh)

	zlog.Info().
		Str("session_id", s.id).
		Int("added", len(fresh)).
		Int("draw_pile", len(s.drawPile)).
		Msg("game: playable tracks added")

	s.sendEventLocked(Event{Type: EventTracksAdded, Status: s.status})

	if s.status == StatusWaitingForTracks {
		s.status = StatusPlaying
		s.selectRandomTrackLocked()
	}
}

// EndGame forces the terminal state. Idempotent, valid from any state.
func (s *Session) EndGame() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusGameEnd {
		return
	}

	if s.endTimerCancel != nil {
		s.endTimerCancel()
		s.endTimerCancel = nil
	}

	s.currentTrack = nil
	s.status = StatusGameEnd

	zlog.Info().Str("session_id", s.id).Msg("game: session ended")

	s.sendEventLocked(Event{Type: EventGameEnded, Status: s.status})
}

// Close releases the session's resources.
func (s *Session) Close() {
	s.mu.Lock()
	if s.endTimerCancel != nil {
		s.endTimerCancel()
		s.endTimerCancel = nil
	}
	s.mu.Unlock()
	s.cancel()
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// CurrentPlayer returns a copy of the active player, or nil before
// initialization.
func (s *Session) CurrentPlayer() *player.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.players) == 0 {
		return nil
	}
	cp := *s.players[s.currentPlayerIndex]
	cp.Timeline = append([]track.Track(nil), cp.Timeline...)
	return &cp
}

// Players returns a copy of all players in turn order.
func (s *Session) Players() []player.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]player.Player, 0, len(s.players))
	for _, p := range s.players {
		cp := *p
		cp.Timeline = append([]track.Track(nil), cp.Timeline...)
		out = append(out, cp)
	}
	return out
}

// Winner returns a copy of the first player at or above the win
// threshold, or nil if nobody has won.
func (s *Session) Winner() *player.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.players {
		if p.Score >= s.config.WinThreshold {
			cp := *p
			cp.Timeline = append([]track.Track(nil), cp.Timeline...)
			return &cp
		}
	}
	return nil
}

// CurrentTrack returns a copy of the drawn track, or nil.
func (s *Session) CurrentTrack() *track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentTrack == nil {
		return nil
	}
	cp := *s.currentTrack
	return &cp
}

// TracksRemaining returns the draw pile size.
func (s *Session) TracksRemaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drawPile)
}

// Progress returns turns taken and the total expected turn count.
func (s *Session) Progress() (taken, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turnsTaken, s.initialTurnCount
}

// LastResult returns the previous round's placement outcome, or nil.
func (s *Session) LastResult() *timeline.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastResult == nil {
		return nil
	}
	cp := *s.lastResult
	return &cp
}

func (s *Session) removeFromPileLocked(id string) {
	for i, t := range s.drawPile {
		if t.ID == id {
			s.drawPile = append(s.drawPile[:i], s.drawPile[i+1:]...)
			return
		}
	}
}

// usedTracksLocked collects every track claimed by the session:
// all timelines, the draw pile, and the current draw.
func (s *Session) usedTracksLocked() []track.Track {
	used := make([]track.Track, 0, len(s.drawPile))
	for _, p := range s.players {
		used = append(used, p.Timeline...)
	}
	used = append(used, s.drawPile...)
	if s.currentTrack != nil {
		used = append(used, *s.currentTrack)
	}
	return used
}

// usedTrackSet adapts a track snapshot to the duplicate filter.
type usedTrackSet []track.Track

func (u usedTrackSet) UsedTracks() []track.Track {
	return u
}

func (s *Session) sendEventLocked(e Event) {
	select {
	case s.eventCh <- e:
	case <-s.ctx.Done():
	default:
		// Channel full, drop event
	}
}

// clampPlayerNames enforces the player count bounds and fills in
// default names for blank entries.
func clampPlayerNames(names []string, min, max int) []string {
	out := append([]string(nil), names...)
	if len(out) > max {
		out = out[:max]
	}
	for len(out) < min {
		out = append(out, "")
	}
	for i, name := range out {
		if name == "" {
			out[i] = defaultPlayerName(i)
		}
	}
	return out
}

func defaultPlayerName(i int) string {
	return "Player " + strconv.Itoa(i+1)
}
