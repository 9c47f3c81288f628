// Package optimizer shapes a raw collected batch into the response set:
// deduplicate, fit to the target volume by score, order by recency,
// normalize fields, and cut the tail when the deadline budget is nearly
// spent. The pipeline is pure apart from its clock and logger.
package optimizer

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
	"github.com/tranmanhhung/sn111/internal/review"
)

// Stats describes one pipeline run.
type Stats struct {
	OriginalCount    int     `json:"originalCount"`
	OptimizedCount   int     `json:"optimizedCount"`
	CompressionRatio float64 `json:"compressionRatio"`
	ProcessingTimeMs int64   `json:"processingTimeMs"`
	VolumeScore      float64 `json:"volumeScore"`
}

// Optimizer runs the shaping pipeline. Safe for concurrent use.
type Optimizer struct {
	cfg config.OptimizerConfig
	log *logging.Logger
	now func() time.Time
}

// New builds an Optimizer with the given tuning.
func New(cfg config.OptimizerConfig, log *logging.Logger) *Optimizer {
	return &Optimizer{cfg: cfg, log: log, now: time.Now}
}

// WithClock overrides the optimizer's clock.
func (o *Optimizer) WithClock(now func() time.Time) *Optimizer {
	o.now = now
	return o
}

// Optimize runs the five stages over items. elapsed is the time already
// spent on the request and deadline its total budget; together they bound
// the truncation stage.
func (o *Optimizer) Optimize(items []review.Review, elapsed, deadline time.Duration) ([]review.Review, Stats) {
	started := o.now()
	original := len(items)

	out := o.dedupe(items)
	out = o.fitVolume(out)
	out = o.order(out)
	out = o.normalize(out)
	out = o.truncateForBudget(out, deadline-elapsed)

	stats := Stats{
		OriginalCount:    original,
		OptimizedCount:   len(out),
		CompressionRatio: 1,
		ProcessingTimeMs: o.now().Sub(started).Milliseconds(),
	}
	if original > 0 {
		stats.CompressionRatio = float64(len(out)) / float64(original)
	}
	if o.cfg.TargetVolume > 0 {
		stats.VolumeScore = math.Min(1, float64(len(out))/float64(o.cfg.TargetVolume))
	}
	return out, stats
}

// dedupe drops duplicates under any of four keys: the id, the author plus
// raw date, the text head plus rating, and the lowercased text head. Every
// key of an admitted item is recorded before the next item is considered,
// so near-copies collapse onto the first one seen. Items without an id are
// rejected outright; text and author keys apply only when those fields are
// non-empty, otherwise unrelated bare-rating reviews would collide.
func (o *Optimizer) dedupe(items []review.Review) []review.Review {
	seen := make(map[string]struct{}, len(items)*4)
	out := make([]review.Review, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		keys := dedupeKeys(it)
		dup := false
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}

func dedupeKeys(r review.Review) []string {
	keys := []string{"id\x00" + r.ID}
	if r.Author != "" {
		keys = append(keys, "ad\x00"+r.Author+"\x00"+r.Date)
	}
	if r.Text != "" {
		keys = append(keys,
			"tr\x00"+firstRunes(r.Text, 50)+"\x00"+strconv.Itoa(r.Rating),
			"tl\x00"+strings.ToLower(firstRunes(r.Text, 100)),
		)
	}
	return keys
}

// fitVolume keeps the highest-scoring target-volume reviews when the set is
// over target. An under-target set passes through unchanged.
func (o *Optimizer) fitVolume(items []review.Review) []review.Review {
	target := o.cfg.TargetVolume
	if target <= 0 || len(items) <= target {
		return items
	}
	now := o.now()
	ranked := make([]scoredReview, len(items))
	for i, it := range items {
		ranked[i] = scoredReview{Review: it, score: o.score(it, now)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	out := make([]review.Review, target)
	for i := range out {
		out[i] = ranked[i].Review
	}
	o.log.Debug("volume fitted", map[string]interface{}{
		"in":  len(items),
		"out": target,
	})
	return out
}

// scoredReview pairs a review with its transient rank; neither the score
// nor the recency tier is ever serialized.
type scoredReview struct {
	review.Review
	score int
}

// score applies the configured rubric weights.
func (o *Optimizer) score(r review.Review, now time.Time) int {
	sc := o.cfg.Scoring
	s := 0
	if !r.PostedAt.IsZero() {
		age := now.Sub(r.PostedAt)
		switch {
		case age < days(sc.FreshDays):
			s += sc.FreshWeight
		case age < days(sc.RecentDays):
			s += sc.RecentWeight
		case age < days(sc.AgingDays):
			s += sc.AgingWeight
		}
	}
	if n := utf8.RuneCountInString(r.Text); n > sc.SubstantiveTextLen {
		s += sc.SubstantiveTextWeight
		if n > sc.DetailedTextLen {
			s += sc.DetailedTextWeight
		}
	}
	s += r.HelpfulCount + r.PhotoCount
	if r.OwnerResponse != "" {
		s += sc.OwnerResponseWeight
	}
	if r.Rating == 3 || r.Rating == 4 {
		s += sc.MidRatingWeight
	}
	return s
}

// order sorts newest first, unparsable dates last. The fresh/recent tier
// counts inform the log line only.
func (o *Optimizer) order(items []review.Review) []review.Review {
	review.SortNewestFirst(items)

	now := o.now()
	fresh, recent := 0, 0
	for _, it := range items {
		if it.PostedAt.IsZero() {
			continue
		}
		switch age := now.Sub(it.PostedAt); {
		case age < days(o.cfg.Scoring.FreshDays):
			fresh++
		case age < days(o.cfg.Scoring.RecentDays):
			recent++
		}
	}
	o.log.Debug("recency profile", map[string]interface{}{
		"items":  len(items),
		"fresh":  fresh,
		"recent": recent,
	})
	return items
}

// truncateForBudget cuts the set when the remaining budget is nearly spent,
// trading volume for a response that arrives at all.
func (o *Optimizer) truncateForBudget(items []review.Review, remaining time.Duration) []review.Review {
	if len(items) == 0 || remaining >= o.cfg.TruncateThreshold() {
		return items
	}
	keep := int(math.Floor(float64(len(items)) * o.cfg.TruncateKeepRatio))
	if keep < o.cfg.TruncateMinKeep {
		keep = o.cfg.TruncateMinKeep
	}
	if keep >= len(items) {
		return items
	}
	o.log.Info("result truncated to fit deadline", map[string]interface{}{
		"kept":        keep,
		"dropped":     len(items) - keep,
		"remainingMs": remaining.Milliseconds(),
	})
	return items[:keep]
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// firstRunes returns the first n runes of s.
func firstRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
