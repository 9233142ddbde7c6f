package main

import (
	"github.com/spf13/cobra"

	"relfiles/internal/version"
)

var (
	verbosity int
	quiet     bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "relfiles",
	Short: "relfiles - files that change together",
	Long: `relfiles lists the files that historically changed in the same git commits
as a given file, ranked by how often. It backs an editor side panel through
"relfiles serve" and can be queried directly with "relfiles related".`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("relfiles version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Silence all logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (human, json)")
}
