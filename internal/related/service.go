// Package related answers "which files change together with this one" for
// editor hosts and the CLI, caching one shared computation per file.
package related

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"relfiles/internal/cache"
	"relfiles/internal/coupling"
	"relfiles/internal/errors"
	"relfiles/internal/metrics"
	"relfiles/internal/paths"
)

// Analyzer computes the ranked related files of one file.
type Analyzer interface {
	Analyze(ctx context.Context, root, file string, settings coupling.Settings) ([]coupling.Candidate, error)
}

// SettingsFunc returns the settings in effect for a workspace.
type SettingsFunc func(workspace string) coupling.Settings

// Service is the entry point used by hosts. It never returns errors: a
// failed lookup is logged and reported as an empty result.
type Service struct {
	cache    *cache.Cache
	analyzer Analyzer
	settings SettingsFunc
	logger   *slog.Logger

	onInvalidate []func(workspace string)
}

// NewService wires a service. A nil settings func uses coupling defaults.
func NewService(c *cache.Cache, analyzer Analyzer, settings SettingsFunc, logger *slog.Logger) *Service {
	if settings == nil {
		settings = func(string) coupling.Settings { return coupling.StaticSettings{} }
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{cache: c, analyzer: analyzer, settings: settings, logger: logger}
}

// GetRelatedFiles returns the files most often changed together with file.
// A cached computation is reused, pending or not; otherwise a new one is
// started and cached. If ctx ends first the caller gets an empty result and
// the computation keeps running for later callers.
func (s *Service) GetRelatedFiles(ctx context.Context, workspace, file string) []coupling.Candidate {
	ws, id, err := keys(workspace, file)
	if err != nil {
		s.logger.Warn("Invalid related files request", "workspace", workspace, "file", file, "error", err.Error())
		return []coupling.Candidate{}
	}

	fut, hit := s.cache.GetOrStart(ws, id, func() *cache.Future { return s.start(ctx, ws, id) })
	s.logger.Debug("Related files lookup", "workspace", ws, "file", id, "cacheHit", hit)

	return s.wait(ctx, fut, ws, id)
}

// Preload starts the computation for file if none is cached, without waiting.
func (s *Service) Preload(ctx context.Context, workspace, file string) {
	ws, id, err := keys(workspace, file)
	if err != nil {
		s.logger.Warn("Invalid preload request", "workspace", workspace, "file", file, "error", err.Error())
		return
	}
	_, hit := s.cache.GetOrStart(ws, id, func() *cache.Future { return s.start(ctx, ws, id) })
	s.logger.Debug("Related files preload", "workspace", ws, "file", id, "cacheHit", hit)
}

// Refresh discards whatever is cached for file, starts a fresh computation
// and waits for it. This is how a failed entry is retried.
func (s *Service) Refresh(ctx context.Context, workspace, file string) []coupling.Candidate {
	ws, id, err := keys(workspace, file)
	if err != nil {
		s.logger.Warn("Invalid refresh request", "workspace", workspace, "file", file, "error", err.Error())
		return []coupling.Candidate{}
	}

	fut := s.start(ctx, ws, id)
	s.cache.Set(ws, id, fut)
	return s.wait(ctx, fut, ws, id)
}

// InvalidateAll drops every cached computation and returns how many.
func (s *Service) InvalidateAll() int {
	n := s.cache.Clear()
	s.logger.Debug("Invalidated all related files", "entries", n)
	return n
}

// Invalidate drops the cached computation of one file.
func (s *Service) Invalidate(workspace, file string) bool {
	ws, id, err := keys(workspace, file)
	if err != nil {
		return false
	}
	return s.cache.Delete(ws, id)
}

// OnWorkspaceInvalidated registers fn to run after InvalidateWorkspace.
// Register hooks while wiring, before the service is shared.
func (s *Service) OnWorkspaceInvalidated(fn func(workspace string)) {
	s.onInvalidate = append(s.onInvalidate, fn)
}

// InvalidateWorkspace drops every cached computation of a workspace and
// notifies the registered hooks, e.g. to re-read workspace settings.
func (s *Service) InvalidateWorkspace(workspace string) int {
	ws, err := workspaceKey(workspace)
	if err != nil {
		return 0
	}
	n := s.cache.DeleteWorkspace(ws)
	for _, fn := range s.onInvalidate {
		fn(ws)
	}
	s.logger.Debug("Invalidated workspace", "workspace", ws, "entries", n)
	return n
}

// Sweep evicts expired entries. Calls closer together than the cache sweep
// interval are no-ops.
func (s *Service) Sweep() int {
	return s.cache.ClearExpired()
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = cache.DefaultSweepInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Service) start(ctx context.Context, ws, file string) *cache.Future {
	return cache.Go(ctx, func(ctx context.Context) ([]coupling.Candidate, error) {
		began := time.Now()
		result, err := s.analyzer.Analyze(ctx, ws, file, s.settings(ws))
		metrics.ComputationDuration.Observe(time.Since(began).Seconds())
		metrics.Computations.WithLabelValues(metrics.Outcome(err)).Inc()
		if err != nil {
			s.logger.Warn("Related files computation failed",
				"workspace", ws,
				"file", file,
				"code", string(errors.CodeOf(err)),
				"error", err.Error(),
			)
			return nil, err
		}
		return result, nil
	})
}

func (s *Service) wait(ctx context.Context, fut *cache.Future, ws, file string) []coupling.Candidate {
	result, err := fut.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Warn("Stopped waiting for related files", "workspace", ws, "file", file, "error", err.Error())
		} else {
			s.logger.Debug("Serving failed related files entry", "workspace", ws, "file", file)
		}
		return []coupling.Candidate{}
	}
	if result == nil {
		return []coupling.Candidate{}
	}
	// The cached slice is shared between callers.
	return slices.Clone(result)
}

// keys returns the cache keys: the cleaned absolute workspace and the
// absolute file resolved against it.
func keys(workspace, file string) (string, string, error) {
	ws, err := workspaceKey(workspace)
	if err != nil {
		return "", "", err
	}
	if file == "" {
		return "", "", errors.NewMissingEntryError("file path")
	}
	return ws, paths.ResolveFile(ws, file), nil
}

func workspaceKey(workspace string) (string, error) {
	if workspace == "" {
		return "", errors.NewMissingEntryError("workspace")
	}
	ws, err := paths.ResolveWorkspace(workspace)
	if err != nil {
		return filepath.Clean(workspace), nil
	}
	return ws, nil
}
