// Package main provides the entry point for the semantic-code-search-indexer CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kapral18/semantic-code-search-indexer/cmd/indexer/commands"
	"github.com/kapral18/semantic-code-search-indexer/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "indexer",
		Short: "Semantic code search indexer",
		Long: `indexer keeps a search backend's code index in sync with a git repository.

Commands:
  index     Run one or more repositories through the indexing pipeline
  retry     Requeue failed items for redelivery
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "path to config file")
	rootCmd.PersistentFlags().Bool("debug-trace", false, "force trace sampling and verbose span export")

	rootCmd.AddCommand(commands.NewIndexCommand())
	rootCmd.AddCommand(commands.NewRetryCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "indexer %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
