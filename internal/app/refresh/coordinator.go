// Package refresh keeps a running game supplied with tracks whose
// release dates resolve in the background.
package refresh

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/tunetap/internal/app/resolve"
	"github.com/osa030/tunetap/internal/domain/track"
	"github.com/osa030/tunetap/internal/infra/cache"
)

// Game receives tracks that became playable after their dates resolved.
type Game interface {
	AddPlayableTracks(tracks []track.Track)
}

// Resolver is the slice of the resolution queue the coordinator uses.
type Resolver interface {
	BatchPrecheck(ctx context.Context, keys []cache.Key) (map[cache.Key]string, error)
	Enqueue(ctx context.Context, trackName, artistName string, priority resolve.Priority) (string, bool, error)
	EnsureQueued(ctx context.Context, trackName, artistName string)
}

// Config holds coordinator configuration.
type Config struct {
	// HighPriorityBatch is how many unresolved tracks get an urgent,
	// awaited lookup at startup. The rest resolve lazily.
	HighPriorityBatch int
	// PollInterval is how often the cache is re-checked for dates
	// resolved by the background lane.
	PollInterval time.Duration
}

// Coordinator implements the hybrid resolution strategy: batch
// precheck the cache, fetch the first few misses urgently, queue the
// rest at low priority, then poll the cache and feed newly playable
// tracks into the game.
type Coordinator struct {
	game  Game
	queue Resolver

	config Config

	mu      sync.Mutex
	pending map[cache.Key]track.Track

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates a coordinator.
func NewCoordinator(game Game, queue Resolver, config Config) *Coordinator {
	if config.HighPriorityBatch < 0 {
		config.HighPriorityBatch = 0
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		game:    game,
		queue:   queue,
		config:  config,
		pending: make(map[cache.Key]track.Track),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start primes resolution for every candidate that still lacks a
// release date and launches the cache poll loop. Cached dates are
// applied synchronously before Start returns; everything else arrives
// through AddPlayableTracks as it resolves.
func (c *Coordinator) Start(ctx context.Context, candidates []track.Track) error {
	unresolved := make([]track.Track, 0, len(candidates))
	keys := make([]cache.Key, 0, len(candidates))
	for _, t := range candidates {
		if !t.NeedsReleaseDate() {
			continue
		}
		unresolved = append(unresolved, t)
		keys = append(keys, cache.NewKey(t.Name, t.PrimaryArtist()))
	}

	hits, err := c.queue.BatchPrecheck(ctx, keys)
	if err != nil {
		zlog.Warn().Err(err).Msg("refresh: batch precheck failed, resolving everything through the queue")
		hits = map[cache.Key]string{}
	}

	resolved := make([]track.Track, 0, len(hits))
	misses := make([]track.Track, 0, len(unresolved))
	for i, t := range unresolved {
		date, present := hits[keys[i]]
		switch {
		case present && date != "":
			t.FirstReleaseDate = date
			resolved = append(resolved, t)
		case present:
			// Tombstoned; this track stays unplayable.
		default:
			misses = append(misses, t)
		}
	}

	if len(resolved) > 0 {
		c.game.AddPlayableTracks(resolved)
	}

	urgent := misses
	if len(urgent) > c.config.HighPriorityBatch {
		urgent = urgent[:c.config.HighPriorityBatch]
	}
	background := misses[len(urgent):]

	c.mu.Lock()
	for _, t := range misses {
		c.pending[cache.NewKey(t.Name, t.PrimaryArtist())] = t
	}
	c.mu.Unlock()

	zlog.Info().
		Int("cached", len(resolved)).
		Int("urgent", len(urgent)).
		Int("background", len(background)).
		Msg("refresh: resolution primed")

	for _, t := range background {
		c.queue.EnsureQueued(ctx, t.Name, t.PrimaryArtist())
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.fetchUrgent(urgent)
	}()

	c.wg.Add(1)
	go c.pollLoop()

	return nil
}

// Stop halts background work. Queued lookups keep resolving into the
// cache; they are just no longer applied to the game.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Remaining returns the number of tracks still awaiting a date.
func (c *Coordinator) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// fetchUrgent resolves the urgent batch through the high lane and
// applies each hit as it lands.
func (c *Coordinator) fetchUrgent(urgent []track.Track) {
	g, ctx := errgroup.WithContext(c.ctx)
	for _, t := range urgent {
		t := t
		g.Go(func() error {
			date, found, err := c.queue.Enqueue(ctx, t.Name, t.PrimaryArtist(), resolve.PriorityHigh)
			if err != nil {
				return nil // context cancellation, nothing to apply
			}
			key := cache.NewKey(t.Name, t.PrimaryArtist())
			if !found {
				c.drop(key)
				return nil
			}
			c.apply(key, date)
			return nil
		})
	}
	_ = g.Wait()
}

// pollLoop periodically re-checks the cache for pending keys.
func (c *Coordinator) pollLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce()
		}
	}
}

func (c *Coordinator) pollOnce() {
	c.mu.Lock()
	keys := make([]cache.Key, 0, len(c.pending))
	for key := range c.pending {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	if len(keys) == 0 {
		return
	}

	hits, err := c.queue.BatchPrecheck(c.ctx, keys)
	if err != nil {
		zlog.Warn().Err(err).Msg("refresh: cache poll failed")
		return
	}

	newlyPlayable := make([]track.Track, 0, len(hits))
	c.mu.Lock()
	for key, date := range hits {
		t, ok := c.pending[key]
		if !ok {
			continue
		}
		delete(c.pending, key)
		if date == "" {
			continue
		}
		t.FirstReleaseDate = date
		newlyPlayable = append(newlyPlayable, t)
	}
	c.mu.Unlock()

	if len(newlyPlayable) > 0 {
		zlog.Debug().Int("count", len(newlyPlayable)).Msg("refresh: applying newly resolved tracks")
		c.game.AddPlayableTracks(newlyPlayable)
	}
}

// apply marks a pending track resolved and hands it to the game.
func (c *Coordinator) apply(key cache.Key, date string) {
	c.mu.Lock()
	t, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	t.FirstReleaseDate = date
	c.game.AddPlayableTracks([]track.Track{t})
}

// drop removes a pending track that resolved to nothing.
func (c *Coordinator) drop(key cache.Key) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}
