package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
)

// ChromeLauncher produces Sessions backed by tabs of a shared headless
// Chrome process.
type ChromeLauncher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	cfg         config.BrowserConfig
	log         *logging.Logger
}

// NewChromeLauncher starts the exec allocator. The browser process itself
// launches lazily with the first session.
func NewChromeLauncher(ctx context.Context, cfg config.BrowserConfig, log *logging.Logger) *ChromeLauncher {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1280, 1024),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", cfg.Locale))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	return &ChromeLauncher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		cfg:         cfg,
		log:         log,
	}
}

// Launch opens a new tab, verifies the browser is up, and applies the
// configured resource blocks.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(l.allocCtx)

	s := &chromeSession{ctx: tabCtx, cancel: tabCancel}
	if err := s.run(ctx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("launch browser tab: %w", err)
	}
	if len(l.cfg.BlockedURLPatterns) > 0 {
		if err := s.BlockResources(ctx, l.cfg.BlockedURLPatterns); err != nil {
			l.log.Warn("resource blocking unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return s, nil
}

// Close tears down the allocator and every tab it owns.
func (l *ChromeLauncher) Close() error {
	l.allocCancel()
	return nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, aborting early when the caller's ctx is
// done. The tab survives an aborted action set.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromeSession) BlockResources(ctx context.Context, patterns []string) error {
	return s.run(ctx,
		network.Enable(),
		network.SetBlockedURLS(patterns),
	)
}

func (s *chromeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *chromeSession) Evaluate(ctx context.Context, expr string, out interface{}) error {
	return s.run(ctx, chromedp.Evaluate(expr, out))
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}
