package coupling

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"relfiles/internal/paths"
)

// FileSystem answers whether a path currently exists.
type FileSystem interface {
	Exists(path string) bool
}

// OSFileSystem checks the local disk. Any stat error counts as absent.
type OSFileSystem struct{}

// Exists implements FileSystem.
func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Tally resolves raw workspace-relative paths to absolute paths, drops the
// query file and counts how often each remaining path occurs.
func Tally(raw []string, root, queryFile string) map[string]int {
	query := paths.ResolveFile(root, queryFile)
	counts := make(map[string]int)
	for _, p := range raw {
		abs := paths.ResolveFile(root, p)
		if abs == query {
			continue
		}
		counts[abs]++
	}
	return counts
}

// Filter drops candidates that no longer exist or match an ignore glob.
type Filter struct {
	fs          FileSystem
	concurrency int
}

// NewFilter creates a filter. concurrency <= 0 means DefaultConcurrency.
func NewFilter(fs FileSystem, concurrency int) *Filter {
	if fs == nil {
		fs = OSFileSystem{}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Filter{fs: fs, concurrency: concurrency}
}

// Apply checks every tallied path in parallel and returns the survivors,
// ordered by path. Each check writes only its own slot, so the result does
// not depend on which check finishes first.
func (f *Filter) Apply(ctx context.Context, root string, counts map[string]int, globs []string) ([]Candidate, error) {
	all := make([]Candidate, 0, len(counts))
	for p, n := range counts {
		all = append(all, Candidate{Path: p, Count: n})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Path < all[j].Path })

	m := newIgnoreMatcher(globs)
	keep := make([]bool, len(all))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, c := range all {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			keep[i] = !m.matches(root, c.Path) && f.fs.Exists(c.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]Candidate, 0, len(all))
	for i, c := range all {
		if keep[i] {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// ignoreMatcher matches workspace-relative slash paths against glob patterns.
// Patterns without a "/" also match the base name, so "*.txt" excludes
// "dir/b.txt". Invalid patterns never match.
type ignoreMatcher struct {
	patterns []string
}

func newIgnoreMatcher(globs []string) ignoreMatcher {
	patterns := make([]string, 0, len(globs))
	for _, g := range globs {
		if g = strings.TrimSpace(g); g != "" {
			patterns = append(patterns, g)
		}
	}
	return ignoreMatcher{patterns: patterns}
}

func (m ignoreMatcher) matches(root, abs string) bool {
	if len(m.patterns) == 0 {
		return false
	}
	rel, ok := paths.RelativeSlash(root, abs)
	if !ok {
		rel = filepath.ToSlash(abs)
	}
	base := path.Base(rel)
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if !strings.Contains(p, "/") {
			if ok, _ := doublestar.Match(p, base); ok {
				return true
			}
		}
	}
	return false
}
