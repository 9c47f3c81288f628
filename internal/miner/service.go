// Package miner sequences one review request through cache lookup, live
// collection, optimization, and write-back, falling back to any stored copy
// when the pipeline fails. It also hosts the background prefetch loop that
// warms the cache for predicted queries.
package miner

import (
	"context"
	"fmt"
	"time"

	"github.com/tranmanhhung/sn111/internal/cache"
	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/errors"
	"github.com/tranmanhhung/sn111/internal/logging"
	"github.com/tranmanhhung/sn111/internal/optimizer"
	"github.com/tranmanhhung/sn111/internal/review"
)

// Result sources.
const (
	SourceCache    = "cache"
	SourceScrape   = "scrape"
	SourceFallback = "fallback_cache"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Timeout bounds for a single request.
const (
	minTimeout = time.Second
	maxTimeout = 2 * time.Minute
)

// fallbackLimit caps how many reviews the emergency fallback serves.
const fallbackLimit = 100

// ReviewCollector is the collection capability the service sequences.
type ReviewCollector interface {
	Resolve(ctx context.Context, query, locale string) (string, error)
	Collect(ctx context.Context, placeID, locale, sort string, target int) ([]review.Review, error)
}

// Request carries one review lookup.
type Request struct {
	PlaceID string
	Locale  string
	Sort    string
	// Timeout bounds the whole request; zero means the configured default.
	Timeout time.Duration
}

// Result is the response envelope for one request. Degraded results are
// still status success; only total fallback exhaustion yields an error.
type Result struct {
	Status           string           `json:"status"`
	Source           string           `json:"source,omitempty"`
	PlaceID          string           `json:"placeId"`
	ReviewCount      int              `json:"reviewCount"`
	Reviews          []review.Review  `json:"reviews,omitempty"`
	ResponseTimeMs   int64            `json:"responseTimeMs"`
	CollectionTimeMs int64            `json:"collectionTimeMs,omitempty"`
	Timestamp        string           `json:"timestamp"`
	Optimization     *optimizer.Stats `json:"optimization,omitempty"`
	Message          string           `json:"message,omitempty"`

	// Code carries the error taxonomy for status mapping; not serialized.
	Code errors.Code `json:"-"`
}

// Service is the composition root for the request path. Construct one per
// process and share it.
type Service struct {
	collector ReviewCollector
	cache     *cache.Cache
	optimizer *optimizer.Optimizer
	cfg       config.Config
	log       *logging.Logger
	now       func() time.Time
}

// New builds a Service from its collaborators.
func New(col ReviewCollector, c *cache.Cache, opt *optimizer.Optimizer, cfg config.Config, log *logging.Logger) *Service {
	return &Service{
		collector: col,
		cache:     c,
		optimizer: opt,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the service's clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HandleReviewRequest runs the request state machine: cache lookup, live
// collection under the remaining budget, optimization, write-back. Any
// pipeline failure, panics included, degrades to the newest stored copy for
// the place before an error is returned.
func (s *Service) HandleReviewRequest(ctx context.Context, req Request) Result {
	started := s.now()
	if req.Locale == "" {
		req.Locale = cache.DefaultLocale
	}
	if req.Sort == "" {
		req.Sort = cache.DefaultSort
	}
	timeout := clampTimeout(req.Timeout, s.cfg.Request.Deadline())

	if req.PlaceID == "" {
		res := s.errorResult(req.PlaceID, started, "placeId is required")
		res.Code = errors.InvalidArgument
		return res
	}

	res, err := s.tryHandle(ctx, req, started, timeout)
	if err == nil {
		return res
	}

	s.log.Warn("pipeline failed, trying fallback", map[string]interface{}{
		"placeId": req.PlaceID,
		"error":   err.Error(),
	})
	if items, ok := s.cache.GetFallback(ctx, req.PlaceID, req.Locale, req.Sort, fallbackLimit); ok {
		res := s.successResult(SourceFallback, req.PlaceID, items, nil, started, 0)
		s.logServed(res)
		return res
	}

	res = s.errorResult(req.PlaceID, started, err.Error())
	res.Code = errors.CodeOf(err)
	return res
}

// tryHandle is the happy path plus its recoverable failures. A panic in any
// stage comes back as an error so the caller can fall back.
func (s *Service) tryHandle(ctx context.Context, req Request, started time.Time, timeout time.Duration) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("request pipeline panicked", map[string]interface{}{
				"placeId": req.PlaceID,
				"panic":   fmt.Sprintf("%v", r),
			})
			err = errors.Newf(errors.Internal, "pipeline panic: %v", r)
		}
	}()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if items, ok := s.cache.Get(reqCtx, req.PlaceID, req.Locale, req.Sort); ok {
		optimized, stats := s.optimizer.Optimize(items, s.now().Sub(started), timeout)
		res := s.successResult(SourceCache, req.PlaceID, optimized, &stats, started, 0)
		s.logServed(res)
		return res, nil
	}

	// Collection gets what is left of the budget minus a margin for
	// optimization and serialization, but never less than the floor.
	budget := timeout - s.now().Sub(started) - s.cfg.Request.SafetyMargin()
	if floor := s.cfg.Request.CollectFloor(); budget < floor {
		budget = floor
	}
	collectCtx, cancelCollect := context.WithTimeout(reqCtx, budget)
	defer cancelCollect()

	collectStart := s.now()
	items, err := s.collector.Collect(collectCtx, req.PlaceID, req.Locale, req.Sort, s.cfg.Optimizer.TargetVolume)
	collectMs := s.now().Sub(collectStart).Milliseconds()
	if err != nil {
		return Result{}, err
	}

	if len(items) == 0 {
		// Collection legitimately found nothing; a stale copy beats an
		// empty answer.
		if stale, ok := s.cache.GetRelaxed(reqCtx, req.PlaceID, req.Locale, req.Sort); ok {
			optimized, stats := s.optimizer.Optimize(stale, s.now().Sub(started), timeout)
			res := s.successResult(SourceCache, req.PlaceID, optimized, &stats, started, collectMs)
			s.logServed(res)
			return res, nil
		}
	}

	optimized, stats := s.optimizer.Optimize(items, s.now().Sub(started), timeout)
	if len(optimized) > 0 {
		if err := s.cache.Put(reqCtx, req.PlaceID, optimized, req.Locale, req.Sort); err != nil {
			s.log.Warn("write-back failed", map[string]interface{}{
				"placeId": req.PlaceID,
				"error":   err.Error(),
			})
		}
	}
	res = s.successResult(SourceScrape, req.PlaceID, optimized, &stats, started, collectMs)
	s.logServed(res)
	return res, nil
}

// Resolve maps a free-text query to a place id.
func (s *Service) Resolve(ctx context.Context, query, locale string) (string, error) {
	if locale == "" {
		locale = cache.DefaultLocale
	}
	return s.collector.Resolve(ctx, query, locale)
}

// Warm refreshes the cache for the given place ids through the collection
// path. Returns how many places were refreshed.
func (s *Service) Warm(ctx context.Context, placeIDs []string) int {
	return s.cache.Prefetch(ctx, placeIDs, s.collectForCache)
}

// Cache exposes the underlying cache for stats and admin operations.
func (s *Service) Cache() *cache.Cache { return s.cache }

// collectForCache is the CollectFunc handed to the cache: collect with the
// default shape, optimize without deadline pressure, store the result.
func (s *Service) collectForCache(ctx context.Context, placeID string) ([]review.Review, error) {
	items, err := s.collector.Collect(ctx, placeID, cache.DefaultLocale, cache.DefaultSort, s.cfg.Optimizer.TargetVolume)
	if err != nil {
		return nil, err
	}
	optimized, _ := s.optimizer.Optimize(items, 0, s.cfg.Request.Deadline())
	return optimized, nil
}

func (s *Service) successResult(source, placeID string, items []review.Review, stats *optimizer.Stats, started time.Time, collectMs int64) Result {
	return Result{
		Status:           StatusSuccess,
		Source:           source,
		PlaceID:          placeID,
		ReviewCount:      len(items),
		Reviews:          items,
		ResponseTimeMs:   s.now().Sub(started).Milliseconds(),
		CollectionTimeMs: collectMs,
		Timestamp:        s.now().UTC().Format(time.RFC3339),
		Optimization:     stats,
	}
}

func (s *Service) errorResult(placeID string, started time.Time, message string) Result {
	return Result{
		Status:         StatusError,
		PlaceID:        placeID,
		Message:        message,
		ResponseTimeMs: s.now().Sub(started).Milliseconds(),
		Timestamp:      s.now().UTC().Format(time.RFC3339),
	}
}

func (s *Service) logServed(res Result) {
	s.log.Info("request served", map[string]interface{}{
		"placeId":        res.PlaceID,
		"source":         res.Source,
		"reviews":        res.ReviewCount,
		"responseTimeMs": res.ResponseTimeMs,
	})
}

func clampTimeout(timeout, fallback time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = fallback
	}
	if timeout < minTimeout {
		return minTimeout
	}
	if timeout > maxTimeout {
		return maxTimeout
	}
	return timeout
}
