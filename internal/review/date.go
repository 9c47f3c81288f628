package review

import (
	"strconv"
	"strings"
	"time"
)

// absoluteLayouts are tried in order when the raw date is not a relative form.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// ParseDate interprets a raw review date as shown on the page, resolving
// relative forms ("2 weeks ago", "an hour ago") against now. The second
// return value is false when the text could not be interpreted.
func ParseDate(raw string, now time.Time) (time.Time, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return time.Time{}, false
	}

	// Edited reviews keep the edit moment: "Edited 3 weeks ago".
	lower := strings.ToLower(text)
	lower = strings.TrimPrefix(lower, "edited")
	lower = strings.TrimSpace(lower)

	if lower == "just now" || lower == "now" {
		return now, true
	}

	if t, ok := parseRelative(lower, now); ok {
		return t, true
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseRelative handles "<n> <unit> ago" and "a/an <unit> ago".
func parseRelative(text string, now time.Time) (time.Time, bool) {
	fields := strings.Fields(text)
	if len(fields) != 3 || fields[2] != "ago" {
		return time.Time{}, false
	}

	n := 1
	switch fields[0] {
	case "a", "an", "one":
	default:
		parsed, err := strconv.Atoi(fields[0])
		if err != nil || parsed < 0 {
			return time.Time{}, false
		}
		n = parsed
	}

	unit := strings.TrimSuffix(fields[1], "s")
	switch unit {
	case "second", "sec":
		return now.Add(-time.Duration(n) * time.Second), true
	case "minute", "min":
		return now.Add(-time.Duration(n) * time.Minute), true
	case "hour", "hr":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	case "year":
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}

// NormalizeDates resolves each review's raw date into PostedAt and rewrites
// Date to the canonical YYYY-MM-DD form. Unparsable dates keep their raw text
// and a zero PostedAt.
func NormalizeDates(items []Review, now time.Time) {
	for i := range items {
		if !items[i].PostedAt.IsZero() {
			items[i].Date = items[i].PostedAt.Format(CanonicalDateLayout)
			continue
		}
		t, ok := ParseDate(items[i].Date, now)
		if !ok {
			continue
		}
		items[i].PostedAt = t
		items[i].Date = t.Format(CanonicalDateLayout)
	}
}
