package browser

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pool owns at most one live automation context per session key. Contexts are
// created lazily, reused while live, and torn down explicitly; a key closed
// and re-requested gets a distinct fresh context with no residual emulation
// state.
type Pool struct {
	driver Driver
	log    *zap.Logger
	sem    *semaphore.Weighted

	mu       sync.Mutex
	contexts map[string]Context
}

// NewPool creates a pool capped at maxContexts concurrently live contexts
func NewPool(driver Driver, maxContexts int64, log *zap.Logger) *Pool {
	return &Pool{
		driver:   driver,
		log:      log,
		sem:      semaphore.NewWeighted(maxContexts),
		contexts: make(map[string]Context),
	}
}

// Get returns the live context for key, creating one if none exists
func (p *Pool) Get(key string) (Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx, ok := p.contexts[key]; ok {
		return ctx, nil
	}

	if !p.sem.TryAcquire(1) {
		return nil, fmt.Errorf("browser context limit reached; close an idle session first")
	}

	ctx, err := p.driver.NewContext()
	if err != nil {
		p.sem.Release(1)
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	p.contexts[key] = ctx
	p.log.Info("browser context created", zap.String("session_key", key))
	return ctx, nil
}

// Close tears down and removes the context for key. Closing an unknown key is
// a no-op.
func (p *Pool) Close(key string) error {
	p.mu.Lock()
	ctx, ok := p.contexts[key]
	if ok {
		delete(p.contexts, key)
		p.sem.Release(1)
	}
	p.mu.Unlock()

	if !ok {
		return nil
	}
	p.log.Info("browser context closed", zap.String("session_key", key))
	return ctx.Close()
}

// CloseAll tears down every live context; used at shutdown
func (p *Pool) CloseAll() {
	p.mu.Lock()
	contexts := p.contexts
	p.contexts = make(map[string]Context)
	p.mu.Unlock()

	for key, ctx := range contexts {
		if err := ctx.Close(); err != nil {
			p.log.Warn("error closing browser context", zap.String("session_key", key), zap.Error(err))
		}
		p.sem.Release(1)
	}
}

// Keys lists the session keys with a live context
func (p *Pool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.contexts))
	for key := range p.contexts {
		keys = append(keys, key)
	}
	return keys
}
