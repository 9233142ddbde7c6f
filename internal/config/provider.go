package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Provider serves the values the ranking pipeline reads for one workspace.
// The current Config is swapped atomically on reload, so readers never block.
type Provider struct {
	workspace string
	overrides *Overrides
	logger    *slog.Logger
	current   atomic.Pointer[Config]

	// onReload runs after each successful reload from Watch.
	onReload func(workspace string)
	stop     context.CancelFunc
}

// NewProvider creates a provider seeded with cfg.
func NewProvider(workspace string, cfg *Config, overrides *Overrides, logger *slog.Logger) *Provider {
	p := &Provider{workspace: workspace, overrides: overrides, logger: logger}
	p.current.Store(cfg)
	return p
}

// NewStaticProvider returns a provider that never reloads.
func NewStaticProvider(cfg *Config) *Provider {
	return NewProvider("", cfg, nil, slog.New(slog.DiscardHandler))
}

// IgnoreGlobs returns a copy of the configured ignore globs.
func (p *Provider) IgnoreGlobs() []string {
	return append([]string(nil), p.current.Load().RelatedFiles.IgnoreGlobs...)
}

// MaxCount returns the configured result limit; non-positive values mean the default.
func (p *Provider) MaxCount() int {
	if n := p.current.Load().RelatedFiles.MaxCount; n > 0 {
		return n
	}
	return DefaultMaxCount
}

// Config returns the current configuration snapshot. Callers must not mutate it.
func (p *Provider) Config() *Config {
	return p.current.Load()
}

// Reload re-reads every source. On failure the previous snapshot is kept.
func (p *Provider) Reload() error {
	cfg, err := Load(p.workspace, p.overrides)
	if err != nil {
		return err
	}
	p.current.Store(cfg)
	return nil
}

// Watch reloads the provider whenever a file in the workspace config
// directory changes, until ctx is done. A missing directory is not watched.
func (p *Provider) Watch(ctx context.Context) error {
	if p.workspace == "" {
		return nil
	}
	dir := filepath.Join(p.workspace, WorkspaceConfigDir)
	if _, err := os.Stat(dir); err != nil {
		p.logger.Debug("Config directory absent, not watching", "dir", dir)
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&relevant == 0 || !isConfigFile(ev.Name) {
				continue
			}
			if err := p.Reload(); err != nil {
				p.logger.Warn("Config reload failed, keeping previous values",
					"workspace", p.workspace,
					"error", err.Error(),
				)
				continue
			}
			p.logger.Info("Config reloaded", "workspace", p.workspace, "file", ev.Name)
			if p.onReload != nil {
				p.onReload(p.workspace)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("Config watcher error", "dir", dir, "error", err.Error())
		}
	}
}

func isConfigFile(name string) bool {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base)) == WorkspaceConfigName
}
