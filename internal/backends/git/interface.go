package git

import "context"

// HistoryService is the version-control query service the history
// extractor depends on.
type HistoryService interface {
	// IsRepository returns nil when dir is inside a git work tree.
	IsRepository(ctx context.Context, dir string) error

	// ListCommits returns the identifiers of every commit touching file,
	// following renames, newest first.
	ListCommits(ctx context.Context, root, file string) ([]string, error)

	// ListChangedPaths returns the paths changed by commit, relative to root.
	ListChangedPaths(ctx context.Context, root, commit string) ([]string, error)
}

var _ HistoryService = (*Adapter)(nil)
