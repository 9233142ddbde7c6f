package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"relfiles/internal/config"
)

var (
	configWorkspace string
	configFormat    string
	configForce     bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging defaults, the user config.toml,
the workspace .relfiles/config file, RELFILES_* environment variables
and flags. The files that were read are listed on stderr.`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default workspace configuration file",
	RunE:  runConfigInit,
}

func init() {
	configCmd.PersistentFlags().StringVarP(&configWorkspace, "workspace", "w", ".", "Workspace root")
	configCmd.PersistentFlags().StringVar(&configFormat, "format", "yaml", "File format (json, yaml, toml)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, src, err := config.LoadWithSources(configWorkspace, cliOverrides())
	if err != nil {
		return err
	}
	data, err := config.Encode(cfg, configFormat)
	if err != nil {
		return err
	}
	if src.User != "" {
		fmt.Fprintf(os.Stderr, "# user: %s\n", src.User)
	}
	if src.Workspace != "" {
		fmt.Fprintf(os.Stderr, "# workspace: %s\n", src.Workspace)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	_, src, err := config.LoadWithSources(configWorkspace, nil)
	if err != nil {
		return err
	}
	if src.Workspace != "" && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", src.Workspace)
	}
	path, err := config.WriteWorkspaceFile(configWorkspace, config.DefaultConfig(), configFormat)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
