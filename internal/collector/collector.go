// Package collector turns a place identifier into review items by driving
// pooled browser sessions: navigating to the review surface, paginating
// until enough cards are visible, and extracting fields from the rendered
// snapshot.
package collector

import (
	"context"
	gerrors "errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tranmanhhung/sn111/internal/browser"
	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/errors"
	"github.com/tranmanhhung/sn111/internal/logging"
	"github.com/tranmanhhung/sn111/internal/review"
)

// Task is one session's share of a collection: the half-open card range
// [Start, Start+Count) of the rendered review list.
type Task struct {
	PlaceID string
	Start   int
	Count   int
	Locale  string
	Sort    string
}

// Collector coordinates resolution and collection over the session pool.
type Collector struct {
	pool    *Pool
	profile *browser.Profile
	cfg     config.CollectorConfig
	log     *logging.Logger
	now     func() time.Time
}

// New builds a Collector. The clock is injectable for tests.
func New(pool *Pool, profile *browser.Profile, cfg config.CollectorConfig, log *logging.Logger) *Collector {
	return &Collector{
		pool:    pool,
		profile: profile,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the collector's clock.
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Resolve turns a free-text query into a place identifier by loading the
// search page and mining the results. The wait for results is bounded by the
// configured resolve timeout independent of the request deadline; no
// identifier means NOT_FOUND.
func (c *Collector) Resolve(ctx context.Context, query, locale string) (string, error) {
	s, err := c.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	healthy := true
	defer func() {
		if healthy {
			c.pool.Release(s)
		} else {
			c.pool.Discard(context.Background(), s)
		}
	}()

	url := c.profile.SearchURL(query, locale)
	if err := s.Navigate(ctx, url); err != nil {
		healthy = false
		return "", errors.Wrap(errors.Internal, "search navigation failed", err)
	}

	// A single-match query often redirects straight to the place page.
	if loc, err := s.Location(ctx); err == nil {
		if id := placeIDFromURL(loc); id != "" {
			return id, nil
		}
	}

	if err := s.WaitVisible(ctx, c.profile.Search.Results, c.cfg.ResolveTimeout()); err != nil {
		return "", errors.Wrap(errors.NotFound, fmt.Sprintf("no search results for %q", query), err)
	}

	html, err := s.HTML(ctx)
	if err != nil {
		healthy = false
		return "", errors.Wrap(errors.Internal, "search snapshot failed", err)
	}
	id := FindPlaceID(html, c.profile)
	if id == "" {
		return "", errors.New(errors.NotFound, fmt.Sprintf("no place identifier in results for %q", query))
	}
	return id, nil
}

// Collect gathers up to target reviews for a place. The target is split
// evenly into disjoint card ranges, one per session; failed ranges contribute
// nothing and the rest still count. The merged set is deduplicated by ID
// (first occurrence wins) and ordered newest first, unknown dates last.
func (c *Collector) Collect(ctx context.Context, placeID, locale, sort string, target int) ([]review.Review, error) {
	if placeID == "" {
		return nil, errors.New(errors.InvalidArgument, "placeID is required")
	}
	if target < 1 {
		return nil, errors.New(errors.InvalidArgument, "target must be at least 1")
	}

	sessions := c.cfg.MaxSessionsPerTask
	if n := c.pool.Size(); sessions > n {
		sessions = n
	}
	if sessions > target {
		sessions = target
	}
	if sessions < 1 {
		return nil, errors.New(errors.PoolExhausted, "no sessions available for collection")
	}

	per := (target + sessions - 1) / sessions
	tasks := make([]Task, sessions)
	for i := range tasks {
		tasks[i] = Task{
			PlaceID: placeID,
			Start:   i * per,
			Count:   per,
			Locale:  locale,
			Sort:    sort,
		}
	}

	started := c.now()
	c.log.Info("collection started", map[string]interface{}{
		"placeId":  placeID,
		"sessions": sessions,
		"target":   target,
		"sort":     sort,
	})

	results := make([][]review.Review, sessions)
	errs := make([]error, sessions)
	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.runTask(ctx, tasks[i])
		}(i)
	}
	wg.Wait()

	var merged []review.Review
	failed := 0
	var firstErr error
	for i := range tasks {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			c.log.Warn("collection task failed", map[string]interface{}{
				"placeId": placeID,
				"start":   tasks[i].Start,
				"count":   tasks[i].Count,
				"error":   errs[i].Error(),
			})
			continue
		}
		merged = append(merged, results[i]...)
	}

	merged = review.DedupeByID(merged)
	now := c.now()
	for i := range merged {
		if t, ok := review.ParseDate(merged[i].Date, now); ok {
			merged[i].PostedAt = t
		}
	}
	review.SortNewestFirst(merged)

	c.log.Info("collection finished", map[string]interface{}{
		"placeId":    placeID,
		"collected":  len(merged),
		"failed":     failed,
		"durationMs": time.Since(started).Milliseconds(),
	})

	if len(merged) == 0 && failed == sessions && firstErr != nil {
		code := errors.Internal
		if gerrors.Is(firstErr, context.DeadlineExceeded) || gerrors.Is(firstErr, context.Canceled) {
			code = errors.TaskTimeout
		}
		return nil, errors.Wrap(code, "every collection task failed", firstErr)
	}
	return merged, nil
}

// runTask drives one session through its card range.
func (c *Collector) runTask(ctx context.Context, task Task) ([]review.Review, error) {
	taskCtx, cancel := context.WithTimeout(ctx, c.cfg.TaskTimeout())
	defer cancel()

	s, err := c.pool.Acquire(taskCtx)
	if err != nil {
		return nil, err
	}
	healthy := true
	defer func() {
		if healthy {
			c.pool.Release(s)
		} else {
			c.pool.Discard(context.Background(), s)
		}
	}()

	url := c.profile.ReviewsURL(task.PlaceID, task.Locale, task.Sort)
	if err := s.Navigate(taskCtx, url); err != nil {
		healthy = false
		return nil, fmt.Errorf("navigate reviews page: %w", err)
	}

	if err := s.WaitVisible(taskCtx, c.profile.Review.Container, c.cfg.ResolveTimeout()); err != nil {
		// No cards at all usually means the place has no reviews.
		c.log.Debug("no review cards visible", map[string]interface{}{
			"placeId": task.PlaceID,
			"start":   task.Start,
		})
		return nil, nil
	}

	c.applySort(taskCtx, s, task.Sort)
	if err := c.paginate(taskCtx, s, task.Start+task.Count); err != nil {
		return nil, err
	}

	html, err := s.HTML(taskCtx)
	if err != nil {
		healthy = false
		return nil, fmt.Errorf("snapshot reviews page: %w", err)
	}

	items := ExtractReviews(html, c.profile)
	if len(items) <= task.Start {
		return nil, nil
	}
	end := task.Start + task.Count
	if end > len(items) {
		end = len(items)
	}
	return items[task.Start:end], nil
}

// applySort clicks through the sort menu. Failures leave the page in its
// default order, which is still a usable result.
func (c *Collector) applySort(ctx context.Context, s browser.Session, sort string) {
	if sort == "" || c.profile.Place.SortButton == "" {
		return
	}
	if err := s.Click(ctx, c.profile.Place.SortButton); err != nil {
		c.log.Debug("sort menu unavailable", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := pause(ctx, 300*time.Millisecond); err != nil {
		return
	}

	expr := fmt.Sprintf(`(function(){
		var items = document.querySelectorAll(%s);
		for (var i = 0; i < items.length; i++) {
			if (items[i].textContent.toLowerCase().indexOf(%s) >= 0) { items[i].click(); return true; }
		}
		return false;
	})()`, strconv.Quote(c.profile.Place.SortMenuItem), strconv.Quote(sort))
	var clicked bool
	if err := s.Evaluate(ctx, expr, &clicked); err != nil || !clicked {
		c.log.Debug("sort selection not applied", map[string]interface{}{"sort": sort})
		return
	}
	pause(ctx, 300*time.Millisecond)
}

// paginate scrolls the review region until needed cards are visible, growth
// stops, or attempts run out. Collapsed review texts are expanded along the
// way.
func (c *Collector) paginate(ctx context.Context, s browser.Session, needed int) error {
	countExpr := fmt.Sprintf("document.querySelectorAll(%s).length", strconv.Quote(c.profile.Review.Container))
	expandExpr := fmt.Sprintf(`(function(){
		var btns = document.querySelectorAll(%s);
		for (var i = 0; i < btns.length; i++) { btns[i].click(); }
		return btns.length;
	})()`, strconv.Quote(c.profile.Review.MoreButton))
	scrollExpr := fmt.Sprintf(`(function(){
		var r = document.querySelector(%s);
		if (r) { r.scrollTop = r.scrollHeight; return r.scrollHeight; }
		window.scrollTo(0, document.body.scrollHeight);
		return document.body.scrollHeight;
	})()`, strconv.Quote(c.profile.Place.ScrollRegion))

	last := -1
	for attempt := 0; attempt < c.cfg.PaginationAttempts; attempt++ {
		var count int
		if err := s.Evaluate(ctx, countExpr, &count); err != nil {
			return fmt.Errorf("count review cards: %w", err)
		}
		if count >= needed || count == last {
			break
		}
		last = count

		s.Evaluate(ctx, expandExpr, nil)
		s.Evaluate(ctx, scrollExpr, nil)
		if err := pause(ctx, c.cfg.ScrollPause()); err != nil {
			return err
		}
	}

	// Final expansion so truncated texts are complete in the snapshot.
	s.Evaluate(ctx, expandExpr, nil)
	return nil
}

// pause sleeps honoring ctx.
func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
