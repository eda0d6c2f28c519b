package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunetap/internal/app/game"
	"github.com/osa030/tunetap/internal/app/resolve"
	"github.com/osa030/tunetap/internal/app/store"
	"github.com/osa030/tunetap/internal/domain/track"
)

type fakeSource struct {
	tracks []track.Track
	err    error
}

func (f *fakeSource) GetPlaylistTracks(ctx context.Context, playlistURL string) ([]track.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tracks, nil
}

func (f *fakeSource) CheckPlaylistExists(ctx context.Context, playlistURL string) error {
	return f.err
}

type fakeResolver struct {
	pending int
	date    string
}

func (f *fakeResolver) Enqueue(ctx context.Context, trackName, artistName string, priority resolve.Priority) (string, bool, error) {
	return f.date, f.date != "", nil
}

func (f *fakeResolver) PendingCount() int {
	return f.pending
}

type fakeCoordinator struct {
	started bool
	stopped bool
}

func (f *fakeCoordinator) Start(ctx context.Context, candidates []track.Track) error {
	f.started = true
	return nil
}

func (f *fakeCoordinator) Stop() {
	f.stopped = true
}

func (f *fakeCoordinator) Remaining() int {
	return 0
}

func playableTracks(n int) []track.Track {
	tracks := make([]track.Track, 0, n)
	years := []string{"1980", "1985", "1990", "1995", "2000", "2005", "2010", "2015"}
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		tracks = append(tracks, track.Track{
			ID:               id,
			Name:             "Track " + id,
			Artists:          []string{"Artist " + id},
			AudioURL:         "https://example.com/" + id + ".mp3",
			Status:           track.StatusFound,
			FirstReleaseDate: years[i%len(years)] + "-06-15",
		})
	}
	return tracks
}

func newTestServer(t *testing.T, source *fakeSource, resolver *fakeResolver) (*Server, *fakeCoordinator) {
	t.Helper()

	coordinator := &fakeCoordinator{}
	s := NewServer(Deps{
		Source:   source,
		Resolver: resolver,
		NewCoordinator: func(g *game.Session) Coordinator {
			return coordinator
		},
		Store: store.New(store.Config{
			Path:     filepath.Join(t.TempDir(), "session.json"),
			Debounce: time.Millisecond,
		}),
		GameConfig: game.DefaultConfig(),
	})
	t.Cleanup(s.Shutdown)
	return s, coordinator
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{}, &fakeResolver{})
	rec, body := doJSON(t, s.Router(), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestLoadPlaylist(t *testing.T) {
	tracks := playableTracks(4)
	tracks = append(tracks, track.Track{
		ID:       "p",
		Name:     "Pending",
		Artists:  []string{"Artist"},
		AudioURL: "https://example.com/p.mp3",
		Status:   track.StatusFound,
	})
	s, _ := newTestServer(t, &fakeSource{tracks: tracks}, &fakeResolver{})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/api/playlist/load",
		`{"url":"https://open.spotify.com/playlist/xyz"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), body["total"])
	assert.Equal(t, float64(4), body["playable"])
	assert.Equal(t, float64(1), body["pending"])
}

func TestLoadPlaylist_MissingURL(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{}, &fakeResolver{})

	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/api/playlist/load", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadPlaylist_NotFound(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{err: errors.New("404")}, &fakeResolver{})

	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/api/playlist/load",
		`{"url":"https://open.spotify.com/playlist/missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateGame_RequiresLoadedPlaylist(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{}, &fakeResolver{})

	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/api/game", `{"playerNames":["Alice","Bob"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateGameAndPlay(t *testing.T) {
	s, coordinator := newTestServer(t, &fakeSource{tracks: playableTracks(6)}, &fakeResolver{})
	e := s.Router()

	rec, _ := doJSON(t, e, http.MethodPost, "/api/playlist/load", `{"url":"spotify:playlist:xyz"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, e, http.MethodPost, "/api/game", `{"playerNames":["Alice","Bob"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, string(game.StatusPlaying), body["status"])
	assert.Equal(t, "Alice", body["currentPlayer"])
	assert.NotNil(t, body["currentTrack"])
	assert.True(t, coordinator.started)

	// Game state is readable.
	rec, body = doJSON(t, e, http.MethodGet, "/api/game", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), body["tracksRemaining"])

	// A placement resolves the round; invalid gaps are simply wrong,
	// never errors.
	rec, body = doJSON(t, e, http.MethodPost, "/api/game/place-gap", `{"gapIndex":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(game.StatusRoundEnd), body["status"])
	assert.NotNil(t, body["lastResult"])
	assert.Equal(t, float64(3), body["tracksRemaining"])

	rec, body = doJSON(t, e, http.MethodPost, "/api/game/next-turn", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(game.StatusPlaying), body["status"])
	assert.Equal(t, "Bob", body["currentPlayer"])

	rec, body = doJSON(t, e, http.MethodPost, "/api/game/end", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(game.StatusGameEnd), body["status"])
}

func TestGameState_NoActiveGame(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{}, &fakeResolver{})

	rec, _ := doJSON(t, s.Router(), http.MethodGet, "/api/game", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueSize(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{}, &fakeResolver{pending: 7})

	rec, body := doJSON(t, s.Router(), http.MethodGet, "/api/queue/size", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), body["pending"])
}

func TestLookup(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{}, &fakeResolver{date: "1995-10-02"})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/api/lookup",
		`{"trackName":"Wonderwall","artistName":"Oasis"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1995-10-02", body["date"])
	assert.Equal(t, true, body["found"])
}

func TestLookup_MissingFields(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{}, &fakeResolver{})

	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/api/lookup", `{"trackName":"Wonderwall"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateUI(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{tracks: playableTracks(6)}, &fakeResolver{})
	e := s.Router()

	rec, body := doJSON(t, e, http.MethodPut, "/api/ui",
		`{"showSongName":true,"blurred":true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["showSongName"])
	assert.Equal(t, true, body["blurred"])
}

func TestResume_RoundTrip(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "session.json")
	persisted := store.New(store.Config{Path: snapshotPath, Debounce: time.Millisecond})

	build := func() *Server {
		return NewServer(Deps{
			Source:     &fakeSource{tracks: playableTracks(6)},
			Resolver:   &fakeResolver{},
			Store:      persisted,
			GameConfig: game.DefaultConfig(),
		})
	}

	// First server: create a game, then shut down (immediate save).
	first := build()
	e := first.Router()
	rec, _ := doJSON(t, e, http.MethodPost, "/api/playlist/load", `{"url":"spotify:playlist:xyz"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, created := doJSON(t, e, http.MethodPost, "/api/game", `{"playerNames":["Alice","Bob"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	first.Shutdown()

	// Second server resumes the same session.
	second := build()
	second.Resume()
	defer second.Shutdown()

	rec, resumed := doJSON(t, second.Router(), http.MethodGet, "/api/game", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created["sessionId"], resumed["sessionId"])
	assert.Equal(t, created["status"], resumed["status"])
}

func TestResume_NoSnapshotIsFreshStart(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{}, &fakeResolver{})
	s.Resume()

	rec, _ := doJSON(t, s.Router(), http.MethodGet, "/api/game", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
