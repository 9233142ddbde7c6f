package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"relfiles/internal/backends/git"
	"relfiles/internal/cache"
	"relfiles/internal/config"
	"relfiles/internal/coupling"
	"relfiles/internal/errors"
	"relfiles/internal/paths"
	"relfiles/internal/related"
	"relfiles/internal/slogutil"
)

// cliOverrides collects the persistent flags that map onto config keys.
func cliOverrides() *config.Overrides {
	o := &config.Overrides{LogFormat: logFormat}
	if verbosity > 0 || quiet {
		o.LogLevel = levelName(slogutil.LevelFromVerbosity(verbosity, quiet))
	}
	return o
}

func levelName(l slog.Level) string {
	switch {
	case l > slog.LevelError:
		return "off"
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// newLogger builds the stderr logger for cfg. -q always wins.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if quiet {
		return slogutil.NewDiscardLogger()
	}
	return slogutil.NewLoggerWithFormat(w, slogutil.Format(cfg.Logging.Format), slogutil.LevelFromString(cfg.Logging.Level))
}

// newService wires the related-files pipeline from cfg. Settings are read
// per workspace through resolver.
func newService(cfg *config.Config, resolver *config.Resolver, logger *slog.Logger) (*related.Service, *git.Adapter) {
	adapter := git.NewAdapter(cfg.Git.Path, logger)
	analyzer := coupling.NewAnalyzer(adapter, coupling.OSFileSystem{}, cfg.Git.MaxConcurrency, logger)
	c := cache.New(
		cache.WithMaxAge(cfg.MaxAge()),
		cache.WithSweepInterval(cfg.SweepInterval()),
		cache.WithLogger(logger),
	)
	settings := func(ws string) coupling.Settings { return resolver.For(ws) }
	svc := related.NewService(c, analyzer, settings, logger)

	// Dropping a workspace also drops its settings; a changed config file
	// drops the results computed with the old settings.
	svc.OnWorkspaceInvalidated(resolver.Forget)
	resolver.OnReload(func(ws string) { svc.InvalidateWorkspace(ws) })
	return svc, adapter
}

// resolveTarget returns the absolute workspace root and file for a CLI
// argument. Without an explicit workspace the enclosing git work tree of
// the file is used.
func resolveTarget(ctx context.Context, adapter *git.Adapter, workspace, file string) (string, string, error) {
	if file == "" {
		return "", "", errors.NewMissingEntryError("file")
	}
	if workspace != "" {
		ws, err := paths.ResolveWorkspace(workspace)
		if err != nil {
			return "", "", err
		}
		return ws, paths.ResolveFile(ws, file), nil
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return "", "", err
	}
	root, err := adapter.RepoRoot(ctx, filepath.Dir(abs))
	if err != nil {
		return "", "", err
	}
	// git reports the real path; keep the file on the same side of any symlink.
	resolved := abs
	if rel, err := paths.CanonicalizePath(abs, root); err == nil {
		resolved = paths.ResolveFile(root, rel)
	}
	return root, resolved, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
