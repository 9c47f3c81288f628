// Package cache serves reviews from the store when they are recent enough,
// with progressively relaxed read paths for degraded situations and a
// prefetch entry point for background warming.
//
// Read tiers, strictest first:
//
//	Get         fresh within the freshness window
//	GetRelaxed  unexpired, any age within TTL
//	GetFallback any stored copy for the place within retention
//
// Store failures never fail a read; they are logged and counted, and the
// caller sees a miss.
package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
	"github.com/tranmanhhung/sn111/internal/review"
	"github.com/tranmanhhung/sn111/internal/storage"
)

// Default request dimensions, shared with the API and the prefetch loop.
const (
	DefaultLocale = "en"
	DefaultSort   = "newest"
)

// CollectFunc produces fresh reviews for a place. The cache depends on this
// capability, not on the collector.
type CollectFunc func(ctx context.Context, placeID string) ([]review.Review, error)

// Cache is the freshness-aware review cache.
type Cache struct {
	store    *storage.Store
	cfg      config.CacheConfig
	prefetch config.PrefetchConfig
	log      *logging.Logger
	now      func() time.Time

	hits        atomic.Int64
	misses      atomic.Int64
	prefetches  atomic.Int64
	writes      atomic.Int64
	storeErrors atomic.Int64
}

// New builds a Cache over the store.
func New(store *storage.Store, cfg config.CacheConfig, prefetch config.PrefetchConfig, log *logging.Logger) *Cache {
	return &Cache{
		store:    store,
		cfg:      cfg,
		prefetch: prefetch,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the cache's clock.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Key builds the storage key for one request shape.
func Key(placeID, locale, sort string) string {
	if locale == "" {
		locale = DefaultLocale
	}
	if sort == "" {
		sort = DefaultSort
	}
	return "reviews:" + placeID + ":" + locale + ":" + sort
}

// placePrefix covers every locale and sort for a place.
func placePrefix(placeID string) string {
	return "reviews:" + placeID + ":"
}

// Get returns reviews written within the freshness window.
func (c *Cache) Get(ctx context.Context, placeID, locale, sort string) ([]review.Review, bool) {
	rec, ok := c.read(ctx, Key(placeID, locale, sort))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if c.now().Sub(rec.WrittenAt) > c.cfg.FreshnessWindow() {
		c.misses.Add(1)
		return nil, false
	}
	items, ok := c.decode(rec)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.log.Debug("cache hit", map[string]interface{}{
		"placeId": placeID,
		"items":   len(items),
		"ageMs":   c.now().Sub(rec.WrittenAt).Milliseconds(),
	})
	return items, true
}

// GetRelaxed returns any unexpired entry regardless of the freshness window.
func (c *Cache) GetRelaxed(ctx context.Context, placeID, locale, sort string) ([]review.Review, bool) {
	rec, ok := c.read(ctx, Key(placeID, locale, sort))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	items, ok := c.decode(rec)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return items, true
}

// GetFallback returns up to limit reviews from any stored copy for the
// place, expired or not. The copy matching the requested locale and sort is
// preferred over a newer one under another shape. This is the last read
// before an error response.
func (c *Cache) GetFallback(ctx context.Context, placeID, locale, sort string, limit int) ([]review.Review, bool) {
	if limit <= 0 {
		limit = 100
	}
	items, ok := c.staleFor(ctx, placeID, locale, sort)
	if !ok {
		return nil, false
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, true
}

// staleFor finds the best stored copy within retention: the one matching the
// request shape when it has content, otherwise the newest one under any
// locale and sort.
func (c *Cache) staleFor(ctx context.Context, placeID, locale, sort string) ([]review.Review, bool) {
	rec, ok, err := c.store.GetStale(ctx, Key(placeID, locale, sort))
	if err != nil {
		c.storeErrors.Add(1)
		c.log.Warn("fallback read failed", map[string]interface{}{
			"placeId": placeID,
			"error":   err.Error(),
		})
	} else if ok {
		if items, decoded := c.decode(rec); decoded && len(items) > 0 {
			return items, true
		}
	}

	rec, ok, err = c.store.GetNewestByPrefix(ctx, placePrefix(placeID))
	if err != nil {
		c.storeErrors.Add(1)
		c.log.Warn("fallback read failed", map[string]interface{}{
			"placeId": placeID,
			"error":   err.Error(),
		})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	items, decoded := c.decode(rec)
	if !decoded || len(items) == 0 {
		return nil, false
	}
	return items, true
}

// Put writes the result set with a TTL adapted to how active the place
// looks: fresh reviews expire soon so new activity shows up, dormant places
// are kept long.
func (c *Cache) Put(ctx context.Context, placeID string, items []review.Review, locale, sort string) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}

	newest := review.NewestPostedAt(items)
	ttl := c.ttlFor(newest, len(items))
	if err := c.store.Set(ctx, Key(placeID, locale, sort), payload, len(items), newest, ttl); err != nil {
		c.storeErrors.Add(1)
		return err
	}
	c.writes.Add(1)
	c.log.Debug("cache write", map[string]interface{}{
		"placeId":    placeID,
		"items":      len(items),
		"ttlSeconds": int(ttl.Seconds()),
	})
	return nil
}

// ttlFor selects the TTL tier from the newest item's age. Empty sets and
// sets whose dates never parsed get the short tier: without evidence of
// dormancy, recollect soon.
func (c *Cache) ttlFor(newest time.Time, count int) time.Duration {
	if count == 0 || newest.IsZero() {
		return c.cfg.TTLShort()
	}
	age := c.now().Sub(newest)
	switch {
	case age < time.Duration(c.cfg.FreshContentDays)*24*time.Hour:
		return c.cfg.TTLShort()
	case age < time.Duration(c.cfg.RecentContentDays)*24*time.Hour:
		return c.cfg.TTLDefault()
	default:
		return c.cfg.TTLLong()
	}
}

// IsFresh reports whether an entry exists and is younger than maxAge.
func (c *Cache) IsFresh(ctx context.Context, placeID, locale, sort string, maxAge time.Duration) bool {
	rec, ok := c.read(ctx, Key(placeID, locale, sort))
	if !ok {
		return false
	}
	return c.now().Sub(rec.WrittenAt) <= maxAge
}

// Prefetch refreshes the given places unless they are already fresh within
// the prefetch window. Work proceeds in small batches with pauses so a long
// list cannot monopolize the session pool. One failure skips one place.
// Returns how many places were refreshed.
func (c *Cache) Prefetch(ctx context.Context, placeIDs []string, fn CollectFunc) int {
	refreshed := 0
	inBatch := 0
	for _, placeID := range placeIDs {
		if ctx.Err() != nil {
			break
		}
		if c.IsFresh(ctx, placeID, DefaultLocale, DefaultSort, c.cfg.PrefetchWindow()) {
			continue
		}

		if inBatch == c.prefetch.BatchSize {
			if err := sleep(ctx, c.prefetch.BatchPause()); err != nil {
				break
			}
			inBatch = 0
		}
		inBatch++

		items, err := fn(ctx, placeID)
		if err != nil {
			c.log.Warn("prefetch collection failed", map[string]interface{}{
				"placeId": placeID,
				"error":   err.Error(),
			})
			continue
		}
		if err := c.Put(ctx, placeID, items, DefaultLocale, DefaultSort); err != nil {
			c.log.Warn("prefetch write failed", map[string]interface{}{
				"placeId": placeID,
				"error":   err.Error(),
			})
			continue
		}
		c.prefetches.Add(1)
		refreshed++
	}
	return refreshed
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Prefetches  int64   `json:"prefetches"`
	Writes      int64   `json:"writes"`
	StoreErrors int64   `json:"storeErrors"`
	HitRate     float64 `json:"hitRate"`
}

// Stats returns the counters. HitRate is 0 when nothing was looked up yet.
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Prefetches:  c.prefetches.Load(),
		Writes:      c.writes.Load(),
		StoreErrors: c.storeErrors.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// read is the fail-open store access: errors count and log as misses.
func (c *Cache) read(ctx context.Context, key string) (*storage.Record, bool) {
	rec, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.storeErrors.Add(1)
		c.log.Warn("store read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	return rec, ok
}

func (c *Cache) decode(rec *storage.Record) ([]review.Review, bool) {
	var items []review.Review
	if err := json.Unmarshal(rec.Payload, &items); err != nil {
		c.storeErrors.Add(1)
		c.log.Warn("cache payload corrupt", map[string]interface{}{
			"key":   rec.Key,
			"error": err.Error(),
		})
		return nil, false
	}
	return items, true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
