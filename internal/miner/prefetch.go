package miner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tranmanhhung/sn111/internal/cache"
	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
	"github.com/tranmanhhung/sn111/internal/predictor"
)

// Prefetcher walks the predicted combination space in the background and
// keeps the cache warm for the top candidates. Combinations are tracked by
// hash so a round never re-resolves what an earlier round already tried;
// once the space is exhausted the tracking resets and coverage starts over.
type Prefetcher struct {
	svc  *Service
	pred *predictor.Predictor
	cfg  config.PrefetchConfig
	log  *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	attempted map[string]struct{}

	rounds   atomic.Int64
	resolved atomic.Int64
	failures atomic.Int64
	running  atomic.Bool
}

// PrefetchStats describes loop progress for /stats.
type PrefetchStats struct {
	Rounds    int64 `json:"rounds"`
	Resolved  int64 `json:"resolved"`
	Failures  int64 `json:"failures"`
	Attempted int   `json:"attempted"`
	Running   bool  `json:"running"`
}

// NewPrefetcher builds the loop. Call Start to run it.
func NewPrefetcher(svc *Service, pred *predictor.Predictor, cfg config.PrefetchConfig, log *logging.Logger) *Prefetcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Prefetcher{
		svc:       svc,
		pred:      pred,
		cfg:       cfg,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		attempted: make(map[string]struct{}),
	}
}

// Start begins the loop. The first round runs immediately.
func (p *Prefetcher) Start() {
	p.log.Info("prefetch loop starting", map[string]interface{}{
		"interval": p.cfg.Interval().String(),
		"topN":     p.cfg.TopN,
	})
	p.running.Store(true)
	p.wg.Add(1)
	go p.run()
}

// Stop cancels the loop and waits for the current round to finish.
func (p *Prefetcher) Stop(timeout time.Duration) error {
	p.cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.running.Store(false)
		p.log.Info("prefetch loop stopped", nil)
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("prefetch shutdown timed out")
	}
}

// Stats returns a snapshot of loop progress.
func (p *Prefetcher) Stats() PrefetchStats {
	p.mu.Lock()
	attempted := len(p.attempted)
	p.mu.Unlock()
	return PrefetchStats{
		Rounds:    p.rounds.Load(),
		Resolved:  p.resolved.Load(),
		Failures:  p.failures.Load(),
		Attempted: attempted,
		Running:   p.running.Load(),
	}
}

func (p *Prefetcher) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval())
	defer ticker.Stop()

	p.round()

	for {
		select {
		case <-ticker.C:
			p.round()
		case <-p.ctx.Done():
			return
		}
	}
}

// round resolves the next batch of unattempted combinations and hands the
// resulting place ids to the cache for warming.
func (p *Prefetcher) round() {
	roundID := uuid.NewString()
	combos := p.nextCombinations()
	if len(combos) == 0 {
		return
	}

	started := time.Now()
	var placeIDs []string
	for _, combo := range combos {
		if p.ctx.Err() != nil {
			return
		}
		placeID, err := p.svc.Resolve(p.ctx, combo.Query, cache.DefaultLocale)
		if err != nil {
			p.failures.Add(1)
			p.log.Debug("prefetch resolve failed", map[string]interface{}{
				"roundId": roundID,
				"query":   combo.Query,
				"error":   err.Error(),
			})
			continue
		}
		p.resolved.Add(1)
		placeIDs = append(placeIDs, placeID)
	}

	warmed := 0
	if len(placeIDs) > 0 {
		warmed = p.svc.Warm(p.ctx, placeIDs)
	}
	p.rounds.Add(1)
	p.log.Info("prefetch round finished", map[string]interface{}{
		"roundId":    roundID,
		"candidates": len(combos),
		"resolved":   len(placeIDs),
		"warmed":     warmed,
		"durationMs": time.Since(started).Milliseconds(),
	})
}

// nextCombinations picks the top unattempted combinations and marks them
// attempted. An exhausted space resets so warming keeps cycling.
func (p *Prefetcher) nextCombinations() []predictor.Combination {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.cfg.TopN
	if n <= 0 {
		return nil
	}
	pick := func() []predictor.Combination {
		var out []predictor.Combination
		for _, combo := range p.pred.Combinations() {
			if len(out) == n {
				break
			}
			if _, seen := p.attempted[combo.Hash]; seen {
				continue
			}
			out = append(out, combo)
		}
		return out
	}

	out := pick()
	if len(out) == 0 && len(p.attempted) > 0 {
		p.attempted = make(map[string]struct{})
		out = pick()
	}
	for _, combo := range out {
		p.attempted[combo.Hash] = struct{}{}
	}
	return out
}
