// Package browser provides the page-render capability behind review
// collection: a Session interface over a rendered page, a chromedp-backed
// implementation for JavaScript-heavy surfaces, and a static HTTP
// implementation for single-shot fetches and tests.
package browser

import (
	"context"
	"time"
)

// Session is one rendered page context. Implementations are not safe for
// concurrent use; the pool hands each session to one task at a time.
type Session interface {
	// Navigate loads a URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// BlockResources suppresses requests matching the given URL patterns for
	// the rest of the session.
	BlockResources(ctx context.Context, patterns []string) error
	// WaitVisible blocks until the selector matches a visible node, the
	// timeout lapses, or ctx is done.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Click dispatches a click on the first node matching the selector.
	Click(ctx context.Context, selector string) error
	// Evaluate runs a JavaScript expression, decoding its result into out
	// when out is non-nil.
	Evaluate(ctx context.Context, expr string, out interface{}) error
	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)
	// Location returns the current page URL after redirects.
	Location(ctx context.Context) (string, error)
	// Close releases the session's resources.
	Close() error
}

// Launcher produces Sessions. Close releases whatever backs them.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
	Close() error
}
