package miner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tranmanhhung/sn111/internal/cache"
	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/errors"
	"github.com/tranmanhhung/sn111/internal/logging"
	"github.com/tranmanhhung/sn111/internal/optimizer"
	"github.com/tranmanhhung/sn111/internal/predictor"
	"github.com/tranmanhhung/sn111/internal/review"
	"github.com/tranmanhhung/sn111/internal/storage"
)

type fakeCollector struct {
	mu           sync.Mutex
	items        []review.Review
	collectErr   error
	resolveErr   error
	panicMsg     string
	collectCalls int
	resolveCalls int
	lastLocale   string
	lastSort     string
	lastTarget   int
}

func (f *fakeCollector) Resolve(ctx context.Context, query, locale string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	f.lastLocale = locale
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return "pid-" + predictor.HashQuery(query)[:8], nil
}

func (f *fakeCollector) Collect(ctx context.Context, placeID, locale, sort string, target int) ([]review.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collectCalls++
	f.lastLocale, f.lastSort, f.lastTarget = locale, sort, target
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.collectErr != nil {
		return nil, f.collectErr
	}
	out := make([]review.Review, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeCollector) calls() (collect, resolve int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collectCalls, f.resolveCalls
}

func testService(t *testing.T, col *fakeCollector) (*Service, *time.Time) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Prefetch.BatchPauseMs = 1

	store, err := storage.Open("", cfg.Cache, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store.WithClock(clock)

	c := cache.New(store, cfg.Cache, cfg.Prefetch, logging.NewNop()).WithClock(clock)
	opt := optimizer.New(cfg.Optimizer, logging.NewNop()).WithClock(clock)
	svc := New(col, c, opt, *cfg, logging.NewNop()).WithClock(clock)
	return svc, &now
}

func sampleItems(n int, now time.Time) []review.Review {
	items := make([]review.Review, n)
	for i := range items {
		items[i] = review.Review{
			ID:       fmt.Sprintf("r%d", i),
			Author:   fmt.Sprintf("Author %d", i),
			Text:     fmt.Sprintf("review body number %d with plenty of words in it", i),
			Rating:   1 + i%5,
			PostedAt: now.Add(-time.Duration(i+1) * time.Hour),
		}
	}
	return items
}

func TestScrapeOnMissThenCacheHit(t *testing.T) {
	col := &fakeCollector{}
	svc, now := testService(t, col)
	col.items = sampleItems(5, *now)

	first := svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"})
	if first.Status != "success" || first.Source != SourceScrape {
		t.Fatalf("first = %s/%s", first.Status, first.Source)
	}
	if first.ReviewCount != 5 || len(first.Reviews) != 5 {
		t.Errorf("first count = %d", first.ReviewCount)
	}
	if first.Optimization == nil || first.Optimization.OriginalCount != 5 {
		t.Errorf("optimization stats = %+v", first.Optimization)
	}

	second := svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"})
	if second.Source != SourceCache {
		t.Errorf("second source = %s", second.Source)
	}
	if second.ReviewCount != 5 {
		t.Errorf("second count = %d", second.ReviewCount)
	}
	if collect, _ := col.calls(); collect != 1 {
		t.Errorf("collector called %d times, want 1", collect)
	}
}

func TestCollectReceivesShapeAndTarget(t *testing.T) {
	col := &fakeCollector{}
	svc, now := testService(t, col)
	col.items = sampleItems(1, *now)

	svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1", Locale: "fr", Sort: "lowest"})
	if col.lastLocale != "fr" || col.lastSort != "lowest" {
		t.Errorf("shape = %s/%s", col.lastLocale, col.lastSort)
	}
	if col.lastTarget != config.DefaultConfig().Optimizer.TargetVolume {
		t.Errorf("target = %d", col.lastTarget)
	}
}

func TestFallbackOnCollectFailure(t *testing.T) {
	col := &fakeCollector{}
	svc, now := testService(t, col)
	col.items = sampleItems(3, *now)

	if res := svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"}); res.Status != "success" {
		t.Fatalf("seed request failed: %+v", res)
	}

	// Entry expires (short tier) but stays within retention.
	*now = now.Add(2 * time.Hour)
	col.collectErr = errors.New(errors.Internal, "browser crashed")

	res := svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"})
	if res.Status != "success" || res.Source != SourceFallback {
		t.Fatalf("res = %s/%s, want success/fallback_cache", res.Status, res.Source)
	}
	if res.ReviewCount != 3 {
		t.Errorf("count = %d", res.ReviewCount)
	}
}

func TestErrorWhenEveryTierExhausted(t *testing.T) {
	col := &fakeCollector{collectErr: errors.New(errors.TaskTimeout, "every collection task failed")}
	svc, _ := testService(t, col)

	res := svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"})
	if res.Status != "error" {
		t.Fatalf("status = %s", res.Status)
	}
	if res.Code != errors.TaskTimeout {
		t.Errorf("code = %s", res.Code)
	}
	if res.Message == "" || res.Timestamp == "" {
		t.Errorf("incomplete error result: %+v", res)
	}
	if len(res.Reviews) != 0 {
		t.Errorf("error result carries reviews")
	}
}

func TestPanicRecoversToFallback(t *testing.T) {
	col := &fakeCollector{}
	svc, now := testService(t, col)
	col.items = sampleItems(2, *now)

	svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"})
	*now = now.Add(2 * time.Hour)
	col.panicMsg = "selector walked off the page"

	res := svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"})
	if res.Status != "success" || res.Source != SourceFallback {
		t.Fatalf("res = %s/%s, want fallback after panic", res.Status, res.Source)
	}
}

func TestPanicWithoutFallbackIsError(t *testing.T) {
	col := &fakeCollector{panicMsg: "selector walked off the page"}
	svc, _ := testService(t, col)

	res := svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"})
	if res.Status != "error" || res.Code != errors.Internal {
		t.Fatalf("res = %s/%s", res.Status, res.Code)
	}
	if !strings.Contains(res.Message, "panic") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestEmptyCollectionServesStaleCopy(t *testing.T) {
	col := &fakeCollector{}
	svc, now := testService(t, col)
	col.items = sampleItems(4, *now)

	svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"})

	// Past the freshness window, inside the TTL; live collection dries up.
	*now = now.Add(10 * time.Minute)
	col.items = nil

	res := svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"})
	if res.Status != "success" || res.Source != SourceCache {
		t.Fatalf("res = %s/%s", res.Status, res.Source)
	}
	if res.ReviewCount != 4 {
		t.Errorf("count = %d", res.ReviewCount)
	}
	if collect, _ := col.calls(); collect != 2 {
		t.Errorf("collector calls = %d, want 2", collect)
	}
}

func TestEmptyCollectionWithNothingStored(t *testing.T) {
	col := &fakeCollector{}
	svc, _ := testService(t, col)

	res := svc.HandleReviewRequest(context.Background(), Request{PlaceID: "quiet"})
	if res.Status != "success" || res.Source != SourceScrape {
		t.Fatalf("res = %s/%s", res.Status, res.Source)
	}
	if res.ReviewCount != 0 {
		t.Errorf("count = %d", res.ReviewCount)
	}
}

func TestMissingPlaceIDRejected(t *testing.T) {
	col := &fakeCollector{}
	svc, _ := testService(t, col)

	res := svc.HandleReviewRequest(context.Background(), Request{})
	if res.Status != "error" || res.Code != errors.InvalidArgument {
		t.Fatalf("res = %s/%s", res.Status, res.Code)
	}
	if collect, _ := col.calls(); collect != 0 {
		t.Errorf("collector called for an invalid request")
	}
}

func TestWriteThroughPopulatesCache(t *testing.T) {
	col := &fakeCollector{}
	svc, now := testService(t, col)
	col.items = sampleItems(3, *now)

	svc.HandleReviewRequest(context.Background(), Request{PlaceID: "p1"})

	items, ok := svc.Cache().Get(context.Background(), "p1", cache.DefaultLocale, cache.DefaultSort)
	if !ok {
		t.Fatal("cache not populated after scrape")
	}
	if len(items) != 3 {
		t.Errorf("cached %d items", len(items))
	}
}

func TestWarm(t *testing.T) {
	col := &fakeCollector{}
	svc, now := testService(t, col)
	col.items = sampleItems(2, *now)

	if refreshed := svc.Warm(context.Background(), []string{"p1", "p2"}); refreshed != 2 {
		t.Fatalf("refreshed = %d", refreshed)
	}
	for _, id := range []string{"p1", "p2"} {
		if _, ok := svc.Cache().Get(context.Background(), id, cache.DefaultLocale, cache.DefaultSort); !ok {
			t.Errorf("place %s not warmed", id)
		}
	}
}

func TestResolveDefaultsLocale(t *testing.T) {
	col := &fakeCollector{}
	svc, _ := testService(t, col)

	id, err := svc.Resolve(context.Background(), "pizza in Boston, MA", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id == "" {
		t.Error("empty place id")
	}
	if col.lastLocale != cache.DefaultLocale {
		t.Errorf("locale = %q", col.lastLocale)
	}
}

func TestClampTimeout(t *testing.T) {
	def := 30 * time.Second
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, def},
		{-time.Second, def},
		{200 * time.Millisecond, minTimeout},
		{10 * time.Second, 10 * time.Second},
		{10 * time.Minute, maxTimeout},
	}
	for _, tt := range tests {
		if got := clampTimeout(tt.in, def); got != tt.want {
			t.Errorf("clampTimeout(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
