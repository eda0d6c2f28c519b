// Package rest exposes the game and resolution queue over a JSON API.
package rest

import (
	"context"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunetap/internal/app/game"
	"github.com/osa030/tunetap/internal/app/resolve"
	"github.com/osa030/tunetap/internal/app/store"
	"github.com/osa030/tunetap/internal/domain/playlist"
	"github.com/osa030/tunetap/internal/domain/track"
)

// TrackSource resolves a shareable playlist URL into candidate tracks.
type TrackSource interface {
	GetPlaylistTracks(ctx context.Context, playlistURL string) ([]track.Track, error)
	CheckPlaylistExists(ctx context.Context, playlistURL string) error
}

// Resolver is the slice of the resolution queue the API exposes.
type Resolver interface {
	Enqueue(ctx context.Context, trackName, artistName string, priority resolve.Priority) (string, bool, error)
	PendingCount() int
}

// Coordinator drives background resolution for a running game.
type Coordinator interface {
	Start(ctx context.Context, candidates []track.Track) error
	Stop()
	Remaining() int
}

// CoordinatorFactory builds a coordinator bound to a session.
type CoordinatorFactory func(g *game.Session) Coordinator

// Deps wires the server's collaborators.
type Deps struct {
	Source         TrackSource
	Resolver       Resolver
	NewCoordinator CoordinatorFactory
	Store          *store.Store
	GameConfig     game.Config
}

// Server hosts a single active game session.
type Server struct {
	mu sync.Mutex

	session     *game.Session
	coordinator Coordinator
	candidates  []track.Track
	ui          store.UIState

	source         TrackSource
	resolver       Resolver
	newCoordinator CoordinatorFactory
	store          *store.Store
	gameConfig     game.Config
}

// NewServer creates the API server.
func NewServer(deps Deps) *Server {
	return &Server{
		source:         deps.Source,
		resolver:       deps.Resolver,
		newCoordinator: deps.NewCoordinator,
		store:          deps.Store,
		gameConfig:     deps.GameConfig,
	}
}

// Router builds the echo router with all routes registered.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/healthz", s.health)

	api := e.Group("/api")
	api.POST("/playlist/load", s.loadPlaylist)
	api.POST("/game", s.createGame)
	api.GET("/game", s.gameState)
	api.POST("/game/place-gap", s.placeGap)
	api.POST("/game/place-year", s.placeYear)
	api.POST("/game/next-turn", s.nextTurn)
	api.POST("/game/end", s.endGame)
	api.GET("/queue/size", s.queueSize)
	api.POST("/lookup", s.lookup)
	api.PUT("/ui", s.updateUI)

	return e
}

// Resume restores a persisted session, if a usable snapshot exists.
func (s *Server) Resume() {
	data, ok := s.store.Load()
	if !ok {
		return
	}

	session, err := game.RestoreSession(data.Game, s.gameConfig)
	if err != nil {
		zlog.Warn().Err(err).Msg("rest: persisted session is unusable, starting fresh")
		s.store.Clear()
		return
	}

	s.mu.Lock()
	s.session = session
	s.ui = data.UI
	s.mu.Unlock()

	zlog.Info().Str("session_id", session.ID()).Msg("rest: session resumed from snapshot")
}

// Shutdown flushes state and stops background work.
func (s *Server) Shutdown() {
	s.mu.Lock()
	session := s.session
	coordinator := s.coordinator
	ui := s.ui
	s.mu.Unlock()

	if coordinator != nil {
		coordinator.Stop()
	}
	if session != nil {
		s.store.SaveImmediate(store.SessionData{Game: session.Snapshot(), UI: ui})
		session.Close()
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (s *Server) loadPlaylist(c echo.Context) error {
	req := struct {
		URL string `json:"url"`
	}{}
	if err := c.Bind(&req); err != nil || req.URL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "playlist url is required"})
	}

	ctx := c.Request().Context()
	if err := s.source.CheckPlaylistExists(ctx, req.URL); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "playlist not found"})
	}

	tracks, err := s.source.GetPlaylistTracks(ctx, req.URL)
	if err != nil {
		zlog.Error().Err(err).Str("url", req.URL).Msg("rest: playlist ingestion failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"message": "failed to load playlist"})
	}

	pl := playlist.Playlist{URL: req.URL, Tracks: tracks}

	s.mu.Lock()
	s.candidates = pl.Tracks
	s.mu.Unlock()

	return c.JSON(http.StatusOK, echo.Map{
		"total":    len(pl.Tracks),
		"playable": len(pl.PlayableTracks()),
		"pending":  len(pl.NeedingResolution()),
	})
}

func (s *Server) createGame(c echo.Context) error {
	req := struct {
		PlayerNames []string `json:"playerNames"`
	}{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.candidates) == 0 {
		return c.JSON(http.StatusConflict, echo.Map{"message": "no playlist loaded"})
	}

	// Replace any previous session.
	if s.coordinator != nil {
		s.coordinator.Stop()
		s.coordinator = nil
	}
	if s.session != nil {
		s.session.Close()
	}

	session := game.NewSession(s.gameConfig)
	session.Initialize(s.candidates, req.PlayerNames)
	s.session = session
	s.ui = store.UIState{}

	if s.newCoordinator != nil {
		s.coordinator = s.newCoordinator(session)
		if err := s.coordinator.Start(context.Background(), s.candidates); err != nil {
			zlog.Warn().Err(err).Msg("rest: background resolution failed to start")
		}
	}

	s.saveLocked()

	return c.JSON(http.StatusCreated, s.stateViewLocked())
}

func (s *Server) gameState(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "no active game"})
	}
	return c.JSON(http.StatusOK, s.stateViewLocked())
}

func (s *Server) placeGap(c echo.Context) error {
	req := struct {
		GapIndex int `json:"gapIndex"`
	}{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}
	return s.mutateGame(c, func(g *game.Session) { g.PlaceTrackFromGap(req.GapIndex) })
}

func (s *Server) placeYear(c echo.Context) error {
	req := struct {
		CardIndex int `json:"cardIndex"`
	}{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}
	return s.mutateGame(c, func(g *game.Session) { g.PlaceTrackSameYear(req.CardIndex) })
}

func (s *Server) nextTurn(c echo.Context) error {
	return s.mutateGame(c, func(g *game.Session) { g.NextTurn() })
}

func (s *Server) endGame(c echo.Context) error {
	return s.mutateGame(c, func(g *game.Session) { g.EndGame() })
}

// mutateGame applies op to the active session and persists the result.
// Ops invalid for the current state are no-ops, so the response is
// always the refreshed state view.
func (s *Server) mutateGame(c echo.Context, op func(*game.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "no active game"})
	}

	op(s.session)
	s.saveLocked()

	return c.JSON(http.StatusOK, s.stateViewLocked())
}

func (s *Server) queueSize(c echo.Context) error {
	size := s.resolver.PendingCount()

	s.mu.Lock()
	remaining := 0
	if s.coordinator != nil {
		remaining = s.coordinator.Remaining()
	}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, echo.Map{
		"pending":    size,
		"unresolved": remaining,
	})
}

func (s *Server) lookup(c echo.Context) error {
	req := struct {
		TrackName  string `json:"trackName"`
		ArtistName string `json:"artistName"`
	}{}
	if err := c.Bind(&req); err != nil || req.TrackName == "" || req.ArtistName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "trackName and artistName are required"})
	}

	date, found, err := s.resolver.Enqueue(c.Request().Context(), req.TrackName, req.ArtistName, resolve.PriorityHigh)
	if err != nil {
		return c.JSON(http.StatusRequestTimeout, echo.Map{"message": "lookup cancelled"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"date":  date,
		"found": found,
	})
}

func (s *Server) updateUI(c echo.Context) error {
	var ui store.UIState
	if err := c.Bind(&ui); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	s.mu.Lock()
	s.ui = ui
	s.saveLocked()
	s.mu.Unlock()

	return c.JSON(http.StatusOK, ui)
}

// saveLocked schedules a debounced snapshot of the active session.
func (s *Server) saveLocked() {
	if s.session == nil {
		return
	}
	s.store.Save(store.SessionData{Game: s.session.Snapshot(), UI: s.ui})
}

// stateViewLocked builds the read model returned by game endpoints.
func (s *Server) stateViewLocked() echo.Map {
	session := s.session
	taken, total := session.Progress()

	view := echo.Map{
		"sessionId":       session.ID(),
		"status":          session.Status(),
		"players":         session.Players(),
		"currentTrack":    session.CurrentTrack(),
		"tracksRemaining": session.TracksRemaining(),
		"turnsTaken":      taken,
		"totalTurns":      total,
		"lastResult":      session.LastResult(),
		"ui":              s.ui,
	}
	if cp := session.CurrentPlayer(); cp != nil {
		view["currentPlayer"] = cp.Name
	}
	if w := session.Winner(); w != nil {
		view["winner"] = w.Name
	}
	return view
}
