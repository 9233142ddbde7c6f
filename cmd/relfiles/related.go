package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"relfiles/internal/config"
	"relfiles/internal/errors"
	"relfiles/internal/related"
)

var (
	relatedWorkspace string
	relatedMaxCount  int
	relatedIgnore    []string
	relatedFormat    string
)

var relatedCmd = &cobra.Command{
	Use:   "related <file>",
	Short: "List files that changed together with a file",
	Long: `List the files that were changed in the same commits as <file>, most
frequent first. Files that no longer exist or match an ignore glob are
left out.

Examples:
  relfiles related internal/cache/cache.go
  relfiles related --max-count 5 --ignore '**/*_test.go' main.go
  relfiles related --format json --workspace ~/src/app app/models.py`,
	Args: cobra.ExactArgs(1),
	RunE: runRelated,
}

func init() {
	relatedCmd.Flags().StringVarP(&relatedWorkspace, "workspace", "w", "", "Workspace root (default: the file's git work tree)")
	relatedCmd.Flags().IntVarP(&relatedMaxCount, "max-count", "n", 0, "Maximum number of results (default from config)")
	relatedCmd.Flags().StringSliceVar(&relatedIgnore, "ignore", nil, "Additional ignore glob (repeatable)")
	relatedCmd.Flags().StringVar(&relatedFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(relatedCmd)
}

func runRelated(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	overrides := cliOverrides()
	overrides.IgnoreGlobs = relatedIgnore
	if cmd.Flags().Changed("max-count") {
		overrides.MaxCount = &relatedMaxCount
	}

	bootstrap, err := config.Load("", overrides)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, bootstrap)
	resolver := config.NewResolver(overrides, logger)
	svc, adapter := newService(bootstrap, resolver, logger)

	ws, file, err := resolveTarget(ctx, adapter, relatedWorkspace, args[0])
	if err != nil {
		if errors.Is(err, errors.NotARepository) || errors.Is(err, errors.ExecutionError) {
			return fmt.Errorf("%s is not inside a git work tree; pass --workspace to choose one", args[0])
		}
		return err
	}

	// A workspace file may not parse; fail loudly here rather than silently
	// falling back to defaults like the server does.
	if _, err := config.Load(ws, overrides); err != nil {
		return err
	}

	logger.Debug("Computing related files", "workspace", ws, "file", file)
	files := svc.GetRelatedFiles(ctx, ws, file)

	resp := &RelatedResponse{
		Workspace: ws,
		File:      file,
		Files:     related.Views(ws, files),
	}
	out, err := FormatResponse(resp, OutputFormat(relatedFormat), isTerminal(os.Stdout))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
