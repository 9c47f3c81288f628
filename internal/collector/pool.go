package collector

import (
	"context"
	"sync"

	"github.com/tranmanhhung/sn111/internal/browser"
	"github.com/tranmanhhung/sn111/internal/errors"
	"github.com/tranmanhhung/sn111/internal/logging"
)

// Pool is a fixed set of browser sessions behind a counting semaphore. The
// permit channel holds the sessions themselves, so Acquire hands out an idle
// session and blocks while all are in use, bounded by ctx.
type Pool struct {
	sessions chan browser.Session
	launcher browser.Launcher
	log      *logging.Logger

	mu     sync.Mutex
	size   int
	closed bool
}

// NewPool launches size sessions. Individual launch failures shrink capacity;
// a pool with no sessions at all is a hard failure.
func NewPool(ctx context.Context, launcher browser.Launcher, size int, log *logging.Logger) (*Pool, error) {
	if size < 1 {
		return nil, errors.New(errors.InvalidArgument, "pool size must be at least 1")
	}

	p := &Pool{
		sessions: make(chan browser.Session, size),
		launcher: launcher,
		log:      log,
	}

	for i := 0; i < size; i++ {
		s, err := launcher.Launch(ctx)
		if err != nil {
			log.Warn("session launch failed", map[string]interface{}{
				"slot":  i,
				"error": err.Error(),
			})
			continue
		}
		p.sessions <- s
		p.size++
	}

	if p.size == 0 {
		return nil, errors.New(errors.PoolExhausted, "no browser sessions could be launched")
	}
	log.Info("session pool ready", map[string]interface{}{
		"size":      p.size,
		"requested": size,
	})
	return p, nil
}

// Acquire returns an idle session, blocking until one is released or ctx is
// done.
func (p *Pool) Acquire(ctx context.Context) (browser.Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New(errors.PoolExhausted, "session pool is closed")
	}
	p.mu.Unlock()

	// A caller that already lost its deadline never gets a session.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case s, ok := <-p.sessions:
		if !ok {
			return nil, errors.New(errors.PoolExhausted, "session pool is closed")
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool.
func (p *Pool) Release(s browser.Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.Close()
		return
	}
	p.mu.Unlock()

	select {
	case p.sessions <- s:
	default:
		// More releases than acquires; drop the extra session.
		s.Close()
	}
}

// Discard closes a broken session and tries to replace it. When the relaunch
// fails, capacity shrinks instead of blocking future Acquires forever.
func (p *Pool) Discard(ctx context.Context, s browser.Session) {
	if s != nil {
		s.Close()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	replacement, err := p.launcher.Launch(ctx)
	if err != nil {
		p.mu.Lock()
		p.size--
		remaining := p.size
		p.mu.Unlock()
		p.log.Warn("session replacement failed, capacity reduced", map[string]interface{}{
			"remaining": remaining,
			"error":     err.Error(),
		})
		return
	}
	p.Release(replacement)
}

// Size reports live capacity.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Available reports how many sessions are idle right now.
func (p *Pool) Available() int {
	return len(p.sessions)
}

// Close shuts down every idle session and the launcher. Sessions currently
// acquired are closed on Release.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case s := <-p.sessions:
			s.Close()
		default:
			return p.launcher.Close()
		}
	}
}
