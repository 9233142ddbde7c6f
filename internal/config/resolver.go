package config

import (
	"context"
	"log/slog"
	"sync"
)

// Resolver provides lazy per-workspace config resolution with caching.
type Resolver struct {
	overrides *Overrides
	logger    *slog.Logger

	mu        sync.Mutex
	providers map[string]*Provider
	watchCtx  context.Context
	onReload  func(workspace string)
}

// NewResolver creates a resolver applying overrides to every workspace.
func NewResolver(overrides *Overrides, logger *slog.Logger) *Resolver {
	return &Resolver{
		overrides: overrides,
		logger:    logger,
		providers: make(map[string]*Provider),
	}
}

// OnReload registers fn to run after a watched workspace config reloads.
// It must be called before EnableWatch.
func (r *Resolver) OnReload(fn func(workspace string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = fn
}

// EnableWatch makes every provider created from now on (and every existing
// one) reload on config file changes until ctx is done. Later calls are
// no-ops.
func (r *Resolver) EnableWatch(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watchCtx != nil {
		return
	}
	r.watchCtx = ctx
	for _, p := range r.providers {
		r.startWatch(p)
	}
}

// For returns the provider for workspace, loading it on first use.
// A workspace whose config fails to load falls back to defaults plus
// overrides; the failure is logged.
func (r *Resolver) For(workspace string) *Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[workspace]; ok {
		return p
	}

	cfg, err := Load(workspace, r.overrides)
	if err != nil {
		r.logger.Warn("Failed to load workspace config, using defaults",
			"workspace", workspace,
			"error", err.Error(),
		)
		cfg = DefaultConfig()
		r.overrides.apply(cfg)
	}

	p := NewProvider(workspace, cfg, r.overrides, r.logger)
	r.providers[workspace] = p
	if r.watchCtx != nil {
		r.startWatch(p)
	}
	return p
}

// Forget drops the cached provider for workspace and stops its watch, so
// the next For re-reads the workspace config.
func (r *Resolver) Forget(workspace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[workspace]
	if !ok {
		return
	}
	if p.stop != nil {
		p.stop()
	}
	delete(r.providers, workspace)
}

// startWatch must be called with r.mu held.
func (r *Resolver) startWatch(p *Provider) {
	ctx, cancel := context.WithCancel(r.watchCtx)
	p.stop = cancel
	p.onReload = r.onReload
	go func() {
		if err := p.Watch(ctx); err != nil {
			r.logger.Warn("Config watch stopped", "workspace", p.workspace, "error", err.Error())
		}
	}()
}
