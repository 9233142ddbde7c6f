package coupling

import (
	"context"
	"log/slog"

	"relfiles/internal/backends/git"
	"relfiles/internal/paths"
)

// Analyzer runs the full pipeline: extract, tally, filter, rank.
type Analyzer struct {
	extractor *Extractor
	filter    *Filter
	logger    *slog.Logger
}

// NewAnalyzer creates a coupling analyzer.
func NewAnalyzer(history git.HistoryService, fs FileSystem, concurrency int, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{
		extractor: NewExtractor(history, concurrency, logger),
		filter:    NewFilter(fs, concurrency),
		logger:    logger,
	}
}

// Analyze returns the files most often changed together with file, which
// may be absolute or relative to root. The query file is never included.
func (a *Analyzer) Analyze(ctx context.Context, root, file string, settings Settings) ([]Candidate, error) {
	query := file
	if file != "" {
		query = paths.ResolveFile(root, file)
	}

	raw, err := a.extractor.Fetch(ctx, root, query)
	if err != nil {
		return nil, err
	}

	counts := Tally(raw, root, query)
	kept, err := a.filter.Apply(ctx, root, counts, settings.IgnoreGlobs())
	if err != nil {
		return nil, err
	}

	ranked := Rank(kept, settings.MaxCount())
	a.logger.Debug("Coupling analysis complete",
		"file", query,
		"changedPaths", len(raw),
		"candidates", len(counts),
		"kept", len(kept),
		"returned", len(ranked),
	)
	return ranked, nil
}
