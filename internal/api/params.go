package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tranmanhhung/sn111/internal/errors"
)

// validSorts are the review orderings the collector knows how to apply.
var validSorts = map[string]bool{
	"newest":   true,
	"relevant": true,
	"highest":  true,
	"lowest":   true,
}

// reviewParams are the parsed query parameters of the reviews endpoint.
type reviewParams struct {
	PlaceID string
	Locale  string
	Sort    string
	Timeout time.Duration
}

// parseReviewParams validates the reviews query string. Timeout is given
// in milliseconds; zero means the configured default.
func parseReviewParams(r *http.Request) (reviewParams, error) {
	q := r.URL.Query()

	p := reviewParams{
		PlaceID: strings.TrimSpace(q.Get("placeId")),
		Locale:  strings.TrimSpace(q.Get("locale")),
		Sort:    strings.TrimSpace(q.Get("sort")),
	}

	if p.PlaceID == "" {
		return p, errors.New(errors.InvalidArgument, "placeId is required")
	}
	if p.Sort != "" && !validSorts[p.Sort] {
		return p, errors.Newf(errors.InvalidArgument, "unknown sort %q", p.Sort)
	}

	if raw := q.Get("timeout"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil {
			return p, errors.Newf(errors.InvalidArgument, "invalid timeout %q", raw)
		}
		if ms < 0 {
			return p, errors.New(errors.InvalidArgument, "timeout must not be negative")
		}
		p.Timeout = time.Duration(ms) * time.Millisecond
	}

	return p, nil
}
