package main

import (
	"github.com/spf13/cobra"

	"github.com/foliolabs/folio/internal/api"
	"github.com/foliolabs/folio/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Web novel reading server with chapter prediction and translation",
	Long: `Folio is a reading server for web novels. It fetches chapters as clean
markdown, predicts next/previous chapter URLs, and translates content
through a configurable LLM fallback chain.

The server provides:
  - Chapter navigation prediction with per-site learned URL patterns
  - Chapter fetching via an extraction proxy with a direct fallback
  - Translation with provider fallback and caching
  - Usage metrics for predictions and translations`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.folio/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "folio home directory (default: ~/.folio)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
