package git

import (
	"context"
	"strings"

	"relfiles/internal/errors"
)

// ListCommits returns the commit hashes that touched file, newest first.
// Renames are followed, so commits made under a previous name are included.
func (g *Adapter) ListCommits(ctx context.Context, root, file string) ([]string, error) {
	if file == "" {
		return nil, errors.NewMissingEntryError("file path")
	}

	g.logger.Debug("Listing commits for file",
		"root", root,
		"file", file,
	)

	return g.runLines(ctx, root, "log", "--follow", "--format=%H", "--", file)
}

// ListChangedPaths returns the paths changed by commit, relative to root, in
// the order git reports them. When root is a subdirectory of the work tree,
// changes outside it are left out. Output is NUL separated so paths with
// unusual characters are never quoted.
func (g *Adapter) ListChangedPaths(ctx context.Context, root, commit string) ([]string, error) {
	if commit == "" {
		return nil, errors.NewMissingEntryError("commit identifier")
	}

	out, err := g.run(ctx, root, "show", "--format=", "--name-only", "--relative", "-z", commit)
	if err != nil {
		return nil, err
	}
	return splitNUL(out), nil
}

func splitNUL(out string) []string {
	parts := strings.Split(out, "\x00")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "\n"); p != "" {
			result = append(result, p)
		}
	}
	return result
}
