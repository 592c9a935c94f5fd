package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags; defaults to "dev" for a
// plain build.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "autocoder",
	Short: "Dependency-aware parallel feature orchestrator",
	Long: `autocoder drives a pool of worker agents against a catalog of
features, scheduling each one only once its dependencies pass, testing
completed features in the background, and retrying failures up to a fixed
budget before giving up on them.

Available commands:
  run      Run the scheduler loop against a project
  status   Show the current catalog and pool state
  version  Print the version number

Use "autocoder [command] --help" for more information about a command.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
