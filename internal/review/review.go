// Package review defines the collected review model shared by the collector,
// cache, and optimizer.
package review

import (
	"sort"
	"time"
)

// CanonicalDateLayout is the normalized calendar-date form used in responses.
const CanonicalDateLayout = "2006-01-02"

// Review is one collected content item.
//
// Date carries the raw page text at collection time (often a relative form
// like "2 weeks ago") and the canonical YYYY-MM-DD string after optimization.
// PostedAt is the parsed moment; it stays zero when the raw date could not be
// interpreted.
type Review struct {
	ID            string    `json:"id"`
	Author        string    `json:"author"`
	Rating        int       `json:"rating"`
	Text          string    `json:"text,omitempty"`
	Date          string    `json:"date,omitempty"`
	PostedAt      time.Time `json:"postedAt"`
	HelpfulCount  int       `json:"helpfulCount,omitempty"`
	PhotoCount    int       `json:"photoCount,omitempty"`
	OwnerResponse string    `json:"ownerResponse,omitempty"`
}

// Valid reports whether the review may be admitted into a result set.
// Reviews without a stable identifier or an author are never served.
func (r Review) Valid() bool {
	return r.ID != "" && r.Author != ""
}

// Age returns the time elapsed since the review was posted, or a negative
// duration when the posting moment is unknown.
func (r Review) Age(now time.Time) time.Duration {
	if r.PostedAt.IsZero() {
		return -1
	}
	return now.Sub(r.PostedAt)
}

// SortNewestFirst orders reviews by posting time descending. Reviews with an
// unknown posting time sort last, keeping their relative order.
func SortNewestFirst(items []Review) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PostedAt, items[j].PostedAt
		if a.IsZero() {
			return false
		}
		if b.IsZero() {
			return true
		}
		return a.After(b)
	})
}

// DedupeByID removes reviews whose ID was already seen, keeping the first
// occurrence. Reviews with an empty ID are dropped.
func DedupeByID(items []Review) []Review {
	if len(items) == 0 {
		return items
	}
	seen := make(map[string]bool, len(items))
	result := make([]Review, 0, len(items))
	for _, item := range items {
		if item.ID == "" || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		result = append(result, item)
	}
	return result
}

// NewestPostedAt returns the most recent known posting time in the set, or
// the zero time when no review carries one.
func NewestPostedAt(items []Review) time.Time {
	var newest time.Time
	for _, item := range items {
		if item.PostedAt.After(newest) {
			newest = item.PostedAt
		}
	}
	return newest
}
