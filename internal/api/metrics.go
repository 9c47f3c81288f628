package api

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tranmanhhung/sn111/internal/version"
)

// Metrics collects and exposes Prometheus metrics for the miner.
type Metrics struct {
	// Counters
	requestsTotal      *Counter
	reviewsServedTotal *Counter

	// Histograms
	requestDuration    *Histogram
	collectionDuration *Histogram

	// Gauges
	cacheHits       *Gauge
	cacheMisses     *Gauge
	cachePrefetches *Gauge
	cacheHitRate    *Gauge
	poolSessions    *Gauge
	prefetchRounds  *Gauge
	goroutines      *Gauge
	memoryAlloc     *Gauge

	startTime time.Time
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels []string
	values sync.Map // map[string]*uint64
}

// Histogram tracks distributions of values.
type Histogram struct {
	name    string
	help    string
	labels  []string
	buckets []float64
	values  sync.Map // map[string]*histogramValue
}

type histogramValue struct {
	mu      sync.Mutex
	sum     float64
	count   uint64
	buckets []uint64
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels []string
	values sync.Map // map[string]*float64
}

// NewMetrics creates the miner's metric set.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
	}

	m.requestsTotal = &Counter{
		name:   "sn111_requests_total",
		help:   "Total number of HTTP requests",
		labels: []string{"endpoint", "status"},
	}

	m.reviewsServedTotal = &Counter{
		name:   "sn111_reviews_served_total",
		help:   "Total number of review responses by source",
		labels: []string{"source"},
	}

	m.requestDuration = &Histogram{
		name:    "sn111_request_duration_seconds",
		help:    "Duration of HTTP requests in seconds",
		labels:  []string{"endpoint"},
		buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}

	m.collectionDuration = &Histogram{
		name:    "sn111_collection_duration_seconds",
		help:    "Duration of live review collection in seconds",
		labels:  []string{},
		buckets: []float64{0.5, 1, 2.5, 5, 10, 15, 30, 60},
	}

	m.cacheHits = &Gauge{
		name:   "sn111_cache_hits_total",
		help:   "Cache lookups served within the freshness window",
		labels: []string{},
	}

	m.cacheMisses = &Gauge{
		name:   "sn111_cache_misses_total",
		help:   "Cache lookups that missed the freshness window",
		labels: []string{},
	}

	m.cachePrefetches = &Gauge{
		name:   "sn111_cache_prefetches_total",
		help:   "Cache entries refreshed by the prefetch loop",
		labels: []string{},
	}

	m.cacheHitRate = &Gauge{
		name:   "sn111_cache_hit_rate",
		help:   "Cache hit rate (0-1)",
		labels: []string{},
	}

	m.poolSessions = &Gauge{
		name:   "sn111_pool_sessions",
		help:   "Browser session pool capacity",
		labels: []string{"state"},
	}

	m.prefetchRounds = &Gauge{
		name:   "sn111_prefetch_rounds_total",
		help:   "Completed prefetch rounds",
		labels: []string{},
	}

	m.goroutines = &Gauge{
		name:   "sn111_goroutines",
		help:   "Number of goroutines",
		labels: []string{},
	}

	m.memoryAlloc = &Gauge{
		name:   "sn111_memory_alloc_bytes",
		help:   "Allocated memory in bytes",
		labels: []string{},
	}

	return m
}

// ObserveRequest records one HTTP request for the counters and the
// latency histogram.
func (m *Metrics) ObserveRequest(endpoint string, status int, duration time.Duration) {
	m.requestsTotal.Inc(endpoint, strconv.Itoa(status))
	m.requestDuration.Observe(duration.Seconds(), endpoint)
}

// ObserveServe records a review response by source. collectionMs is
// zero when no live collection ran.
func (m *Metrics) ObserveServe(source string, collectionMs int64) {
	if source == "" {
		source = "error"
	}
	m.reviewsServedTotal.Inc(source)
	if collectionMs > 0 {
		m.collectionDuration.Observe(float64(collectionMs) / 1000)
	}
}

// SetCacheStats refreshes the cache gauges from a stats snapshot.
func (m *Metrics) SetCacheStats(hits, misses, prefetches int64, hitRate float64) {
	m.cacheHits.Set(float64(hits))
	m.cacheMisses.Set(float64(misses))
	m.cachePrefetches.Set(float64(prefetches))
	m.cacheHitRate.Set(hitRate)
}

// SetPool refreshes the session pool gauges.
func (m *Metrics) SetPool(size, available int) {
	m.poolSessions.Set(float64(size), "total")
	m.poolSessions.Set(float64(available), "available")
}

// SetPrefetchRounds refreshes the prefetch round gauge.
func (m *Metrics) SetPrefetchRounds(rounds int64) {
	m.prefetchRounds.Set(float64(rounds))
}

// WritePrometheus writes all metrics in Prometheus text format.
func (m *Metrics) WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Update runtime metrics
	m.goroutines.Set(float64(runtime.NumGoroutine()))
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.memoryAlloc.Set(float64(memStats.Alloc))

	fmt.Fprintf(w, "# HELP sn111_info Build information\n")
	fmt.Fprintf(w, "# TYPE sn111_info gauge\n")
	fmt.Fprintf(w, "sn111_info{version=\"%s\"} 1\n\n", version.Version)

	fmt.Fprintf(w, "# HELP sn111_uptime_seconds Time since the miner started\n")
	fmt.Fprintf(w, "# TYPE sn111_uptime_seconds counter\n")
	fmt.Fprintf(w, "sn111_uptime_seconds %.3f\n\n", time.Since(m.startTime).Seconds())

	m.writeCounter(w, m.requestsTotal)
	m.writeCounter(w, m.reviewsServedTotal)

	m.writeHistogram(w, m.requestDuration)
	m.writeHistogram(w, m.collectionDuration)

	m.writeGauge(w, m.cacheHits)
	m.writeGauge(w, m.cacheMisses)
	m.writeGauge(w, m.cachePrefetches)
	m.writeGauge(w, m.cacheHitRate)
	m.writeGauge(w, m.poolSessions)
	m.writeGauge(w, m.prefetchRounds)
	m.writeGauge(w, m.goroutines)
	m.writeGauge(w, m.memoryAlloc)
}

func (m *Metrics) writeCounter(w http.ResponseWriter, c *Counter) {
	fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
	fmt.Fprintf(w, "# TYPE %s counter\n", c.name)

	for _, key := range sortedKeys(&c.values) {
		val, _ := c.values.Load(key)
		if ptr, ok := val.(*uint64); ok {
			fmt.Fprintf(w, "%s%s %d\n", c.name, key, atomic.LoadUint64(ptr))
		}
	}
	fmt.Fprintln(w)
}

func (m *Metrics) writeHistogram(w http.ResponseWriter, h *Histogram) {
	fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)

	for _, key := range sortedKeys(&h.values) {
		val, _ := h.values.Load(key)
		hv, ok := val.(*histogramValue)
		if !ok {
			continue
		}
		hv.mu.Lock()
		cumulative := uint64(0)
		for i, bound := range h.buckets {
			cumulative += hv.buckets[i]
			fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, bucketKey(key, fmt.Sprintf("%.3f", bound)), cumulative)
		}
		cumulative += hv.buckets[len(h.buckets)]
		fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, bucketKey(key, "+Inf"), cumulative)
		fmt.Fprintf(w, "%s_sum%s %.6f\n", h.name, key, hv.sum)
		fmt.Fprintf(w, "%s_count%s %d\n", h.name, key, hv.count)
		hv.mu.Unlock()
	}
	fmt.Fprintln(w)
}

func (m *Metrics) writeGauge(w http.ResponseWriter, g *Gauge) {
	fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", g.name)

	for _, key := range sortedKeys(&g.values) {
		val, _ := g.values.Load(key)
		if ptr, ok := val.(*float64); ok {
			fmt.Fprintf(w, "%s%s %.6f\n", g.name, key, *ptr)
		}
	}
	fmt.Fprintln(w)
}

// sortedKeys returns the rendered label keys of a metric in stable order.
func sortedKeys(values *sync.Map) []string {
	var keys []string
	values.Range(func(key, value interface{}) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// bucketKey splices an le label into a rendered label key.
func bucketKey(key, le string) string {
	if key == "" {
		return fmt.Sprintf("{le=%q}", le)
	}
	return key[:len(key)-1] + fmt.Sprintf(",le=%q}", le)
}

// labelsToKey renders label names and values into a stable exposition
// key like {a="x",b="y"}. Empty labels render as "".
func labelsToKey(labels, values []string) string {
	if len(labels) == 0 || len(values) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(labels))
	for i, label := range labels {
		if i < len(values) {
			pairs = append(pairs, fmt.Sprintf("%s=%q", label, values[i]))
		}
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// Inc increments the counter by one.
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add increments the counter by delta.
func (c *Counter) Add(delta uint64, labelValues ...string) {
	key := labelsToKey(c.labels, labelValues)
	val, _ := c.values.LoadOrStore(key, new(uint64))
	atomic.AddUint64(val.(*uint64), delta)
}

// Observe records one value into the histogram.
func (h *Histogram) Observe(value float64, labelValues ...string) {
	key := labelsToKey(h.labels, labelValues)

	val, _ := h.values.LoadOrStore(key, &histogramValue{
		buckets: make([]uint64, len(h.buckets)+1), // +1 for +Inf
	})
	hv := val.(*histogramValue)

	hv.mu.Lock()
	defer hv.mu.Unlock()

	hv.sum += value
	hv.count++

	bucketIdx := len(h.buckets)
	for i, bound := range h.buckets {
		if value <= bound {
			bucketIdx = i
			break
		}
	}
	hv.buckets[bucketIdx]++
}

// Set replaces the gauge value.
func (g *Gauge) Set(value float64, labelValues ...string) {
	key := labelsToKey(g.labels, labelValues)
	ptr := new(float64)
	*ptr = value
	g.values.Store(key, ptr)
}

// handleMetrics handles the /metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.refreshGauges()
	s.metrics.WritePrometheus(w)
}

// refreshGauges pulls current snapshots from the subsystems into the
// scrape-time gauges.
func (s *Server) refreshGauges() {
	if s.svc != nil {
		cs := s.svc.Cache().Stats()
		s.metrics.SetCacheStats(cs.Hits, cs.Misses, cs.Prefetches, cs.HitRate)
	}
	if s.pool != nil {
		s.metrics.SetPool(s.pool.Size(), s.pool.Available())
	}
	if s.prefetcher != nil {
		s.metrics.SetPrefetchRounds(s.prefetcher.Stats().Rounds)
	}
}
