package main

import (
	"context"
	"fmt"

	"github.com/tranmanhhung/sn111/internal/browser"
	"github.com/tranmanhhung/sn111/internal/cache"
	"github.com/tranmanhhung/sn111/internal/collector"
	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
	"github.com/tranmanhhung/sn111/internal/miner"
	"github.com/tranmanhhung/sn111/internal/optimizer"
	"github.com/tranmanhhung/sn111/internal/predictor"
	"github.com/tranmanhhung/sn111/internal/storage"
)

// selectorsPath and vocabularyPath are CLI flag values shared by the
// commands that run the collection pipeline or the predictor.
var (
	selectorsPath  string
	vocabularyPath string
)

// stack is the assembled mining pipeline. Close releases everything in
// dependency order.
type stack struct {
	store   *storage.Store
	pool    *collector.Pool
	service *miner.Service
}

// buildStack wires store, browser pool, collector, cache, optimizer, and
// service from the configuration. The context bounds session launches.
func buildStack(ctx context.Context, cfg *config.Config, log *logging.Logger) (*stack, error) {
	store, err := storage.Open(cfg.Cache.Path, cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	profile, err := loadProfile()
	if err != nil {
		store.Close()
		return nil, err
	}

	pool, err := buildPool(ctx, cfg, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	col := collector.New(pool, profile, cfg.Collector, log)
	c := cache.New(store, cfg.Cache, cfg.Prefetch, log)
	opt := optimizer.New(cfg.Optimizer, log)
	svc := miner.New(col, c, opt, *cfg, log)

	return &stack{store: store, pool: pool, service: svc}, nil
}

// buildPool launches the browser session pool, falling back to the static
// fetcher when Chrome cannot start and the fallback is enabled.
func buildPool(ctx context.Context, cfg *config.Config, log *logging.Logger) (*collector.Pool, error) {
	chrome := browser.NewChromeLauncher(ctx, cfg.Browser, log)
	pool, err := collector.NewPool(ctx, chrome, cfg.Pool.Size, log)
	if err == nil {
		return pool, nil
	}
	chrome.Close()

	if !cfg.Browser.StaticFallback {
		return nil, fmt.Errorf("launch session pool: %w", err)
	}

	log.Warn("browser unavailable, using static fetcher", map[string]interface{}{
		"error": err.Error(),
	})
	static := browser.NewStaticLauncher(cfg.Browser, log)
	pool, err = collector.NewPool(ctx, static, cfg.Pool.Size, log)
	if err != nil {
		static.Close()
		return nil, fmt.Errorf("launch static pool: %w", err)
	}
	return pool, nil
}

// loadProfile returns the selector profile, from the --selectors file when
// given, otherwise the embedded one.
func loadProfile() (*browser.Profile, error) {
	if selectorsPath != "" {
		p, err := browser.LoadProfile(selectorsPath)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return browser.DefaultProfile()
}

// newPredictor builds the combination predictor from the --vocabulary file
// or the embedded vocabulary.
func newPredictor() (*predictor.Predictor, error) {
	if vocabularyPath != "" {
		return predictor.NewFromFile(vocabularyPath)
	}
	return predictor.New()
}

// Close releases the pool (which closes its launcher) and the store.
func (s *stack) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}
