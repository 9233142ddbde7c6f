package git

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"relfiles/internal/errors"
	"relfiles/internal/metrics"
)

// DefaultGitPath is the git binary used when none is configured.
const DefaultGitPath = "git"

// Adapter runs git commands for one process. It holds no per-repository
// state; every call names the working directory it runs in.
type Adapter struct {
	gitPath string
	logger  *slog.Logger
}

// NewAdapter creates a git adapter. An empty gitPath means "git" from PATH.
func NewAdapter(gitPath string, logger *slog.Logger) *Adapter {
	if gitPath == "" {
		gitPath = DefaultGitPath
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{gitPath: gitPath, logger: logger}
}

// IsRepository returns nil when dir is inside a git work tree, a
// NotARepository error otherwise.
func (g *Adapter) IsRepository(ctx context.Context, dir string) error {
	if dir == "" {
		return errors.NewMissingEntryError("workspace root")
	}
	out, err := g.run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return errors.NewNotARepositoryError(dir, err)
	}
	if strings.TrimSpace(out) != "true" {
		return errors.NewNotARepositoryError(dir, nil)
	}
	return nil
}

// RepoRoot returns the top-level directory of the work tree containing dir.
func (g *Adapter) RepoRoot(ctx context.Context, dir string) (string, error) {
	if dir == "" {
		return "", errors.NewMissingEntryError("directory")
	}
	out, err := g.run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", errors.NewNotARepositoryError(dir, err)
	}
	return strings.TrimSpace(out), nil
}

// run executes git in dir and returns its stdout. A non-zero exit becomes an
// ExecutionError carrying the arguments and stderr.
func (g *Adapter) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	g.logger.Debug("Executing git command",
		"dir", dir,
		"args", args,
	)

	err := cmd.Run()
	metrics.GitCommands.WithLabelValues(args[0], metrics.Outcome(err)).Inc()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.New(errors.ExecutionError, "git command canceled", ctxErr).
				WithDetails(map[string]interface{}{"args": args})
		}
		return "", errors.NewExecutionError(g.gitPath, args, strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// runLines executes git and returns the non-empty output lines.
func (g *Adapter) runLines(ctx context.Context, dir string, args ...string) ([]string, error) {
	out, err := g.run(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func splitLines(out string) []string {
	lines := strings.Split(out, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		// Paths may legitimately carry spaces, only the line ending is stripped.
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
