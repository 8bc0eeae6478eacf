package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-finadmin-client/internal/obs"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	data      any
	storedAt  time.Time
	expiresAt time.Time
}

// RequestCache memoizes read results for a short TTL and collapses concurrent identical
// reads into a single producer call. Failures are never cached.
type RequestCache struct {
	mu      sync.Mutex
	entries map[string]entry
	// epoch is bumped by ClearAll and generations[key] by Clear(key); a producer result
	// is stored only if neither moved while it ran.
	epoch       uint64
	generations map[string]uint64
	group       singleflight.Group
	nowFunc     func() time.Time
	metrics     *obs.Metrics
}

type generation struct {
	epoch uint64
	key   uint64
}

type Option func(*RequestCache)

// WithNowFunc sets the clock used for expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(c *RequestCache) {
		c.nowFunc = now
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(c *RequestCache) {
		c.metrics = m
	}
}

func New(options ...Option) *RequestCache {
	c := &RequestCache{
		entries:     make(map[string]entry),
		generations: make(map[string]uint64),
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Get returns the live entry for key, or joins the in-flight producer for key, or runs
// producer and stores its result for ttl. At most one producer runs per key at a time.
// The producer runs detached from ctx cancellation since other callers may share it.
func Get[T any](ctx context.Context, c *RequestCache, key string, ttl time.Duration, producer func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if data, ok := c.lookup(key); ok {
		c.metrics.CacheResult(obs.CacheHit)
		return typed[T](key, data)
	}

	data, err, shared := c.group.Do(key, func() (any, error) {
		if data, ok := c.lookup(key); ok {
			return data, nil
		}
		gen := c.currentGeneration(key)
		c.metrics.CacheResult(obs.CacheMiss)
		v, err := producer(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(key, v, ttl, gen)
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	if shared {
		c.metrics.CacheResult(obs.CacheShared)
	}
	return typed[T](key, data)
}

func typed[T any](key string, data any) (T, error) {
	v, ok := data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("[cache Get] entry %q holds %T, not %T", key, data, zero)
	}
	return v, nil
}

// Clear invalidates key. A producer already running for key still returns its result to
// the callers that joined it, but the result is not stored. Other keys are unaffected.
func (c *RequestCache) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.generations[key]++
}

// ClearAll invalidates every entry, with the same in-flight rule as Clear.
func (c *RequestCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.epoch++
}

// InvalidateExpired drops entries past their expiry. Get checks expiry itself, so this
// only bounds memory.
func (c *RequestCache) InvalidateExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries every interval until ctx is done.
func (c *RequestCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.InvalidateExpired(); n > 0 {
				log.Debug().Int("removed", n).Msg("Request cache swept")
			}
		}
	}
}

// Len is the number of stored entries, expired or not.
func (c *RequestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *RequestCache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.nowFunc().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.data, true
}

func (c *RequestCache) currentGeneration(key string) generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return generation{epoch: c.epoch, key: c.generations[key]}
}

func (c *RequestCache) store(key string, data any, ttl time.Duration, gen generation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != (generation{epoch: c.epoch, key: c.generations[key]}) {
		return
	}
	now := c.nowFunc()
	c.entries[key] = entry{data: data, storedAt: now, expiresAt: now.Add(ttl)}
}
