// Package resolve implements the rate-limited release-date resolution
// queue in front of the external metadata provider.
package resolve

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunetap/internal/infra/cache"
)

// Priority selects the queue lane.
type Priority string

const (
	// PriorityHigh is for interactive, user-facing lookups.
	PriorityHigh Priority = "high"
	// PriorityLow is for speculative background prefetching.
	PriorityLow Priority = "low"
)

// Provider is the external release-date lookup.
// An empty date with a nil error is a confirmed "nothing found".
type Provider interface {
	LookupFirstReleaseDate(ctx context.Context, trackName, artistName string) (string, error)
}

// CacheStore is the durable cache consulted before any provider call.
type CacheStore interface {
	Get(ctx context.Context, key cache.Key) (date string, present bool, err error)
	Put(ctx context.Context, key cache.Key, date string) error
	BatchGet(ctx context.Context, keys []cache.Key) (map[cache.Key]string, error)
}

// Config holds queue configuration.
type Config struct {
	// MinInterval is the minimum gap between the starts of two
	// consecutive provider calls, shared across both lanes.
	MinInterval time.Duration
}

type outcome struct {
	date  string
	found bool
}

type item struct {
	key     cache.Key
	waiters []chan outcome
}

// Queue serializes all provider lookups behind a single drain loop.
// High-priority items strictly preempt low-priority ones; a sustained
// high-priority stream can therefore starve the low lane indefinitely.
// That trade-off is intentional: interactive latency wins over
// background completeness.
type Queue struct {
	mu       sync.Mutex
	high     []*item
	low      []*item
	inflight map[cache.Key]*item

	provider Provider
	cache    CacheStore

	minInterval time.Duration
	lastCall    time.Time // touched only by the drain loop

	wake chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue creates a queue and starts its drain loop.
func NewQueue(provider Provider, cacheStore CacheStore, cfg Config) *Queue {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		inflight:    make(map[cache.Key]*item),
		provider:    provider,
		cache:       cacheStore,
		minInterval: cfg.MinInterval,
		wake:        make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go q.drain()
	return q
}

// Close stops the drain loop. Accepted items that have not yet been
// dispatched are abandoned.
func (q *Queue) Close() {
	q.cancel()
	<-q.done
}

// Enqueue resolves the release date for (trackName, artistName).
// The cache is consulted first; a present entry, tombstone included,
// resolves immediately without touching the provider. Otherwise the
// call joins an existing in-flight item for the same key, or queues a
// new one on the requested lane, and blocks until resolution or ctx
// cancellation. found is false for a confirmed or inferred miss.
func (q *Queue) Enqueue(ctx context.Context, trackName, artistName string, priority Priority) (date string, found bool, err error) {
	key := cache.NewKey(trackName, artistName)

	cached, present, cerr := q.cache.Get(ctx, key)
	if cerr != nil {
		zlog.Warn().Err(cerr).
			Str("track", key.TrackName).
			Str("artist", key.ArtistName).
			Msg("resolve: cache read failed, falling through to queue")
	} else if present {
		return cached, cached != "", nil
	}

	waiter := make(chan outcome, 1)
	q.attach(key, priority, waiter)

	select {
	case o := <-waiter:
		return o.date, o.found, nil
	case <-ctx.Done():
		// The item stays queued and will still resolve into the cache.
		return "", false, ctx.Err()
	case <-q.ctx.Done():
		return "", false, q.ctx.Err()
	}
}

// EnsureQueued queues a low-priority lookup without waiting for the
// result. Cache hits and already-queued keys are left alone.
func (q *Queue) EnsureQueued(ctx context.Context, trackName, artistName string) {
	key := cache.NewKey(trackName, artistName)

	_, present, err := q.cache.Get(ctx, key)
	if err != nil {
		zlog.Warn().Err(err).
			Str("track", key.TrackName).
			Str("artist", key.ArtistName).
			Msg("resolve: cache read failed, queueing anyway")
	} else if present {
		return
	}

	q.attach(key, PriorityLow, nil)
}

// BatchPrecheck returns the cached outcomes for the given keys,
// tombstones included. It never queues anything and never calls the
// provider.
func (q *Queue) BatchPrecheck(ctx context.Context, keys []cache.Key) (map[cache.Key]string, error) {
	return q.cache.BatchGet(ctx, keys)
}

// PendingCount returns the number of queued, not-yet-dispatched items
// across both lanes.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high) + len(q.low)
}

// attach joins an existing in-flight item for key or queues a new one.
// A nil waiter registers interest in the outcome landing in the cache
// without listening for it.
func (q *Queue) attach(key cache.Key, priority Priority, waiter chan outcome) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.inflight[key]; ok {
		if waiter != nil {
			existing.waiters = append(existing.waiters, waiter)
		}
		return
	}

	it := &item{key: key}
	if waiter != nil {
		it.waiters = append(it.waiters, waiter)
	}
	q.inflight[key] = it
	if priority == PriorityHigh {
		q.high = append(q.high, it)
	} else {
		q.low = append(q.low, it)
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// nextItem pops the next item to dispatch, high lane first.
func (q *Queue) nextItem() *item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.high) > 0 {
		it := q.high[0]
		q.high = q.high[1:]
		return it
	}
	if len(q.low) > 0 {
		it := q.low[0]
		q.low = q.low[1:]
		return it
	}
	return nil
}

// drain is the single dispatch loop. It alone calls the provider, so
// at most one lookup is ever in flight, and it alone reads lastCall,
// which enforces the global rate ceiling across both lanes.
func (q *Queue) drain() {
	defer close(q.done)

	for {
		it := q.nextItem()
		if it == nil {
			select {
			case <-q.wake:
				continue
			case <-q.ctx.Done():
				return
			}
		}

		if wait := q.minInterval - time.Since(q.lastCall); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-q.ctx.Done():
				timer.Stop()
				return
			}
		}

		// The gap is measured between call starts, not completions.
		q.lastCall = time.Now()

		date, err := q.provider.LookupFirstReleaseDate(q.ctx, it.key.TrackName, it.key.ArtistName)
		if err != nil {
			// Provider flakiness is cached like a confirmed miss.
			zlog.Warn().Err(err).
				Str("track", it.key.TrackName).
				Str("artist", it.key.ArtistName).
				Msg("resolve: provider lookup failed, caching as not found")
			date = ""
		}

		if perr := q.cache.Put(q.ctx, it.key, date); perr != nil {
			// A failed cache write must not fail the lookup's waiters.
			zlog.Warn().Err(perr).
				Str("track", it.key.TrackName).
				Str("artist", it.key.ArtistName).
				Msg("resolve: cache write failed")
		}

		q.mu.Lock()
		delete(q.inflight, it.key)
		waiters := it.waiters
		it.waiters = nil
		q.mu.Unlock()

		for _, w := range waiters {
			w <- outcome{date: date, found: date != ""}
		}
	}
}
