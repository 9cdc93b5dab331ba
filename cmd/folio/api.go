package main

import (
	"github.com/spf13/cobra"

	"github.com/foliolabs/folio/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Folio server via HTTP.

These commands require a running server (folio serve).
Use --server to specify a custom server URL.

Examples:
  folio api health                      # Check server health
  folio api nav predict <url>           # Predict chapter navigation
  folio api fetch <url>                 # Fetch a chapter as markdown
  folio api translate --url <url>       # Translate a chapter
  folio api settings list               # List configuration settings`,
}

var navCmd = &cobra.Command{
	Use:   "nav",
	Short: "Chapter navigation commands",
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Usage metrics commands",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Configuration settings commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8888", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Chapter and translation commands at top level
	apiCmd.AddCommand((&endpoints.ChapterFetchEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.TranslateEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.TranslationsEndpoint{}).Command(getServerURL))

	// Navigation as subcommand group
	for _, ep := range endpoints.NavigationCommands() {
		navCmd.AddCommand(ep.Command(getServerURL))
	}

	// Metrics as subcommand group
	for _, ep := range endpoints.MetricsCommands() {
		metricsCmd.AddCommand(ep.Command(getServerURL))
	}

	// Settings as subcommand group
	for _, ep := range endpoints.SettingsCommands() {
		settingsCmd.AddCommand(ep.Command(getServerURL))
	}

	// Swagger spec fetch
	apiCmd.AddCommand((&endpoints.SwaggerEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(navCmd)
	apiCmd.AddCommand(metricsCmd)
	apiCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(apiCmd)
}
