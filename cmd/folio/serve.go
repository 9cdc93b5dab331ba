package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/foliolabs/folio/internal/config"
	"github.com/foliolabs/folio/internal/defra"
	"github.com/foliolabs/folio/internal/home"
	"github.com/foliolabs/folio/internal/server"
)

var (
	serveHost string
	servePort string
	keepDefra bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Folio server",
	Long: `Start the Folio HTTP server.

This starts both the HTTP API server and the DefraDB container.
When the server shuts down (via Ctrl+C or SIGTERM), DefraDB is also
stopped unless --keep-defra is set.

The server provides:
  - /health and /ready - Health and readiness checks
  - /api/navigation/*  - Chapter URL prediction
  - /api/chapters/*    - Chapter fetching
  - /api/translate     - Translation
  - /api/metrics/*     - Usage metrics

Examples:
  folio serve                    # Start on default port 8888
  folio serve --port 3000        # Start on custom port
  folio serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Load configuration with hot reload
		configFile := cfgFile
		if configFile == "" && h.ConfigExists() {
			configFile = h.ConfigPath()
		}
		mgr, err := config.NewManager(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		mgr.WatchConfig()
		cfg := mgr.Get()

		// Flags override config file values
		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == "" {
			port = strconv.Itoa(cfg.Server.Port)
		}

		// Ensure defradb data directory exists
		defraDataPath := filepath.Join(h.Path(), "defradb")
		if err := os.MkdirAll(defraDataPath, 0755); err != nil {
			return err
		}

		// Create server
		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			DefraDataPath: defraDataPath,
			DefraConfig: defra.DockerConfig{
				ContainerName: cfg.Defra.ContainerName,
				Image:         cfg.Defra.Image,
				HostPort:      cfg.Defra.Port,
			},
			StopDefraOnShutdown: cfg.Defra.StopOnShutdown && !keepDefra,
			ConfigManager:       mgr,
			Logger:              logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")
	serveCmd.Flags().BoolVar(&keepDefra, "keep-defra", false, "Leave the DefraDB container running on shutdown")

	rootCmd.AddCommand(serveCmd)
}
