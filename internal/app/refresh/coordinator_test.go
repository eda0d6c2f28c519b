package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunetap/internal/app/resolve"
	"github.com/osa030/tunetap/internal/domain/track"
	"github.com/osa030/tunetap/internal/infra/cache"
)

type fakeGame struct {
	mu    sync.Mutex
	added []track.Track
}

func (g *fakeGame) AddPlayableTracks(tracks []track.Track) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.added = append(g.added, tracks...)
}

func (g *fakeGame) addedIDs() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string, len(g.added))
	for _, t := range g.added {
		out[t.ID] = t.FirstReleaseDate
	}
	return out
}

// fakeResolver serves prechecks from an in-memory map and records
// which keys were enqueued on which lane.
type fakeResolver struct {
	mu       sync.Mutex
	cached   map[cache.Key]string
	dates    map[cache.Key]string
	enqueued map[cache.Key]resolve.Priority
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		cached:   make(map[cache.Key]string),
		dates:    make(map[cache.Key]string),
		enqueued: make(map[cache.Key]resolve.Priority),
	}
}

func (r *fakeResolver) BatchPrecheck(ctx context.Context, keys []cache.Key) (map[cache.Key]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hits := make(map[cache.Key]string)
	for _, key := range keys {
		if date, ok := r.cached[key]; ok {
			hits[key] = date
		}
	}
	return hits, nil
}

func (r *fakeResolver) Enqueue(ctx context.Context, trackName, artistName string, priority resolve.Priority) (string, bool, error) {
	key := cache.NewKey(trackName, artistName)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued[key] = priority
	date := r.dates[key]
	r.cached[key] = date
	return date, date != "", nil
}

func (r *fakeResolver) EnsureQueued(ctx context.Context, trackName, artistName string) {
	key := cache.NewKey(trackName, artistName)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cached[key]; ok {
		return
	}
	r.enqueued[key] = resolve.PriorityLow
}

// resolveInBackground simulates the low lane landing a result in the cache.
func (r *fakeResolver) resolveInBackground(key cache.Key, date string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached[key] = date
}

func (r *fakeResolver) priorityOf(key cache.Key) (resolve.Priority, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.enqueued[key]
	return p, ok
}

func undatedTrack(id, name, artist string) track.Track {
	return track.Track{
		ID:       id,
		Name:     name,
		Artists:  []string{artist},
		AudioURL: "https://example.com/" + id + ".mp3",
		Status:   track.StatusFound,
	}
}

func TestCoordinator_AppliesCachedDatesImmediately(t *testing.T) {
	game := &fakeGame{}
	resolver := newFakeResolver()
	resolver.cached[cache.NewKey("Wonderwall", "Oasis")] = "1995-10-02"
	resolver.cached[cache.NewKey("Ghost Song", "Nobody")] = "" // tombstone

	c := NewCoordinator(game, resolver, Config{HighPriorityBatch: 0, PollInterval: time.Hour})
	defer c.Stop()

	err := c.Start(context.Background(), []track.Track{
		undatedTrack("w", "Wonderwall", "Oasis"),
		undatedTrack("g", "Ghost Song", "Nobody"),
	})
	require.NoError(t, err)

	added := game.addedIDs()
	assert.Equal(t, map[string]string{"w": "1995-10-02"}, added,
		"cached dates apply, tombstones do not")
	assert.Equal(t, 0, c.Remaining())
}

func TestCoordinator_SplitsUrgentAndBackground(t *testing.T) {
	game := &fakeGame{}
	resolver := newFakeResolver()
	resolver.dates[cache.NewKey("Song A", "Artist")] = "1991-01-01"
	resolver.dates[cache.NewKey("Song B", "Artist")] = "1992-01-01"

	c := NewCoordinator(game, resolver, Config{HighPriorityBatch: 2, PollInterval: time.Hour})
	defer c.Stop()

	err := c.Start(context.Background(), []track.Track{
		undatedTrack("a", "Song A", "Artist"),
		undatedTrack("b", "Song B", "Artist"),
		undatedTrack("c", "Song C", "Artist"),
		undatedTrack("d", "Song D", "Artist"),
	})
	require.NoError(t, err)

	// The urgent batch resolves through the high lane and gets applied.
	require.Eventually(t, func() bool {
		return len(game.addedIDs()) == 2
	}, time.Second, time.Millisecond)

	prio, ok := resolver.priorityOf(cache.NewKey("Song A", "Artist"))
	require.True(t, ok)
	assert.Equal(t, resolve.PriorityHigh, prio)

	prio, ok = resolver.priorityOf(cache.NewKey("Song C", "Artist"))
	require.True(t, ok)
	assert.Equal(t, resolve.PriorityLow, prio)

	assert.Equal(t, 2, c.Remaining(), "background tracks still pending")
}

func TestCoordinator_PollPicksUpBackgroundResolutions(t *testing.T) {
	game := &fakeGame{}
	resolver := newFakeResolver()

	c := NewCoordinator(game, resolver, Config{HighPriorityBatch: 0, PollInterval: 10 * time.Millisecond})
	defer c.Stop()

	err := c.Start(context.Background(), []track.Track{
		undatedTrack("x", "Slow Burner", "Artist"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Remaining())

	resolver.resolveInBackground(cache.NewKey("Slow Burner", "Artist"), "1988-06-20")

	require.Eventually(t, func() bool {
		return len(game.addedIDs()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "1988-06-20", game.addedIDs()["x"])
	assert.Equal(t, 0, c.Remaining())
}

func TestCoordinator_PollDropsTombstonedTracks(t *testing.T) {
	game := &fakeGame{}
	resolver := newFakeResolver()

	c := NewCoordinator(game, resolver, Config{HighPriorityBatch: 0, PollInterval: 10 * time.Millisecond})
	defer c.Stop()

	err := c.Start(context.Background(), []track.Track{
		undatedTrack("x", "Nowhere Song", "Nobody"),
	})
	require.NoError(t, err)

	resolver.resolveInBackground(cache.NewKey("Nowhere Song", "Nobody"), "")

	require.Eventually(t, func() bool {
		return c.Remaining() == 0
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, game.addedIDs(), "tombstoned tracks never reach the game")
}

func TestCoordinator_IgnoresTracksNotNeedingResolution(t *testing.T) {
	game := &fakeGame{}
	resolver := newFakeResolver()

	c := NewCoordinator(game, resolver, Config{HighPriorityBatch: 5, PollInterval: time.Hour})
	defer c.Stop()

	dated := undatedTrack("d", "Dated", "Artist")
	dated.FirstReleaseDate = "1990-01-01"
	missing := track.Track{ID: "m", Name: "No Audio", Artists: []string{"Artist"}, Status: track.StatusMissing}

	err := c.Start(context.Background(), []track.Track{dated, missing})
	require.NoError(t, err)

	assert.Equal(t, 0, c.Remaining())
	assert.Empty(t, game.addedIDs())
	_, ok := resolver.priorityOf(cache.NewKey("Dated", "Artist"))
	assert.False(t, ok, "already dated tracks are not enqueued")
}
