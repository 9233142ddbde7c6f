package coupling

import (
	"context"
	"log/slog"
	"regexp"

	"golang.org/x/sync/errgroup"

	"relfiles/internal/backends/git"
	"relfiles/internal/errors"
	"relfiles/internal/paths"
)

// DefaultConcurrency bounds parallel ListChangedPaths calls per fetch.
const DefaultConcurrency = 8

var commitHashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Extractor turns a file's commit history into the flat list of paths
// changed alongside it.
type Extractor struct {
	history     git.HistoryService
	concurrency int
	logger      *slog.Logger
}

// NewExtractor creates an extractor. concurrency <= 0 means DefaultConcurrency.
func NewExtractor(history git.HistoryService, concurrency int, logger *slog.Logger) *Extractor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Extractor{history: history, concurrency: concurrency, logger: logger}
}

// Fetch returns the workspace-relative paths changed by every commit that
// touched file, in commit order (newest first). Duplicates are kept; each
// occurrence is one co-change. Any failure fails the whole fetch.
func (e *Extractor) Fetch(ctx context.Context, root, file string) ([]string, error) {
	if root == "" {
		return nil, errors.NewMissingEntryError("workspace root")
	}
	if file == "" {
		return nil, errors.NewMissingEntryError("file path")
	}

	if err := e.history.IsRepository(ctx, root); err != nil {
		return nil, err
	}

	// git resolves pathspecs against its real work tree, so a relative path
	// survives a symlinked workspace root where an absolute one would not.
	target := file
	if rel, ok := paths.RelativeSlash(root, paths.ResolveFile(root, file)); ok {
		target = rel
	}

	commits, err := e.history.ListCommits(ctx, root, target)
	if err != nil {
		return nil, err
	}
	for _, c := range commits {
		if c == "" {
			return nil, errors.NewMissingEntryError("commit identifier")
		}
		if !commitHashPattern.MatchString(c) {
			return nil, errors.NewValidationError("commit identifier", c)
		}
	}

	e.logger.Debug("Fetching changed paths",
		"root", root,
		"file", target,
		"commits", len(commits),
	)

	perCommit := make([][]string, len(commits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, c := range commits {
		g.Go(func() error {
			changed, err := e.history.ListChangedPaths(gctx, root, c)
			if err != nil {
				return err
			}
			perCommit[i] = changed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, changed := range perCommit {
		total += len(changed)
	}
	raw := make([]string, 0, total)
	for _, changed := range perCommit {
		for _, p := range changed {
			if p != "" {
				raw = append(raw, p)
			}
		}
	}
	return raw, nil
}
