package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/foliolabs/folio/internal/api"
	"github.com/foliolabs/folio/internal/cache"
	"github.com/foliolabs/folio/internal/config"
	"github.com/foliolabs/folio/internal/defra"
	"github.com/foliolabs/folio/internal/metrics"
	"github.com/foliolabs/folio/internal/nav"
	"github.com/foliolabs/folio/internal/providers"
	"github.com/foliolabs/folio/internal/reader"
	"github.com/foliolabs/folio/internal/schema"
	"github.com/foliolabs/folio/internal/server/endpoints"
	"github.com/foliolabs/folio/internal/svcctx"
	"github.com/foliolabs/folio/internal/translate"
)

// Server is the main Folio HTTP server.
// It manages the DefraDB container lifecycle - starting it on server start
// and, when configured, stopping it on server shutdown.
type Server struct {
	httpServer   *http.Server
	defraManager *defra.DockerManager
	defraClient  *defra.Client
	sink         *defra.Sink
	registry     *providers.Registry
	configMgr    *config.Manager
	logger       *slog.Logger
	stopDefra    bool

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	// limiter guards the API against bursty clients
	limiter *ipLimiter

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8888)
	Port string
	// DefraDataPath is the path to persist DefraDB data
	DefraDataPath string
	// DefraConfig holds DefraDB container settings
	DefraConfig defra.DockerConfig
	// StopDefraOnShutdown stops the DefraDB container when the server exits
	StopDefraOnShutdown bool
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8888"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Set up DefraDB data path
	if cfg.DefraDataPath != "" {
		cfg.DefraConfig.DataPath = cfg.DefraDataPath
	}

	defraManager, err := defra.NewDockerManager(cfg.DefraConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create defra manager: %w", err)
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)

	rateLimitRPM := 60
	if cfg.ConfigManager != nil {
		registry.Reload(cfg.ConfigManager.Get().ToProviderRegistryConfig())
		if rpm := cfg.ConfigManager.Get().Server.RateLimitRPM; rpm > 0 {
			rateLimitRPM = rpm
		}
	}

	s := &Server{
		defraManager: defraManager,
		registry:     registry,
		configMgr:    cfg.ConfigManager,
		logger:       cfg.Logger,
		stopDefra:    cfg.StopDefraOnShutdown,
		limiter:      newIPLimiter(rateLimitRPM),
	}

	// Watch for config changes: reload providers and the fallback chain
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			s.registry.Reload(c.ToProviderRegistryConfig())
			if svcs := s.currentServices(); svcs != nil && svcs.Translator != nil {
				svcs.Translator.SetChain(chainFromConfig(c.Translate.Chain))
			}
			s.logger.Info("configuration reloaded")
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		DefraManager:    defraManager,
		SwaggerSpecPath: endpoints.GetSwaggerSpecPath(),
	}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withCORS(s.withRateLimit(s.withServices(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and DefraDB.
// It blocks until the context is cancelled or an error occurs.
// If an existing DefraDB container exists, it validates the configuration matches.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	// Validate any existing container matches our config
	if err := s.defraManager.ValidateExisting(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("existing DefraDB container incompatible: %w", err)
	}

	// Start DefraDB
	s.logger.Info("starting DefraDB")
	if err := s.defraManager.Start(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to start DefraDB: %w", err)
	}

	// Create client after DefraDB is up
	s.defraClient = defra.NewClient(s.defraManager.URL())

	// Verify DefraDB is healthy
	if err := s.defraClient.HealthCheck(ctx); err != nil {
		_ = s.shutdown() // Clean up DefraDB on failure
		return fmt.Errorf("DefraDB health check failed: %w", err)
	}
	s.logger.Info("DefraDB is ready", "url", s.defraManager.URL())

	// Initialize schemas
	s.logger.Info("initializing schemas")
	if err := schema.Initialize(ctx, s.defraClient, s.logger); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// Build services and start background workers
	if err := s.buildServices(ctx); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("service initialization failed: %w", err)
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Clean up DefraDB on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// buildServices wires the prediction engine, reader, translator, metrics,
// and config store once DefraDB is reachable.
func (s *Server) buildServices(ctx context.Context) error {
	cfg := config.DefaultConfig()
	if s.configMgr != nil {
		cfg = s.configMgr.Get()
	}

	// Async write path for metrics and translation records
	s.sink = defra.NewSink(defra.SinkConfig{
		Client: s.defraClient,
		Logger: s.logger,
	})
	s.sink.Start(ctx)

	// Seed config defaults into DefraDB (existing values win)
	configStore := config.NewStore(s.defraClient)
	if err := config.SeedDefaults(ctx, configStore, s.logger); err != nil {
		return fmt.Errorf("config seeding failed: %w", err)
	}

	// Chapter reader
	rd, err := reader.New(reader.Config{
		ProxyBase:             cfg.Reader.ProxyBase,
		Timeout:               time.Duration(cfg.Reader.TimeoutSeconds) * time.Second,
		UserAgent:             cfg.Reader.UserAgent,
		DisableDirectFallback: !cfg.Reader.DirectFallback,
		CacheLife:             time.Duration(cfg.Reader.CacheLifeMinutes) * time.Minute,
		Logger:                s.logger,
	})
	if err != nil {
		return fmt.Errorf("reader setup failed: %w", err)
	}

	// Prediction engine over the durable pattern store
	patterns := nav.NewDefraStore(s.defraClient)
	probeCache := cache.New(nav.DefaultValidationTTL, 10*time.Minute)
	scrapeCache := cache.New(nav.DefaultScrapeTTL, 10*time.Minute)
	engine := nav.NewEngine(nav.EngineConfig{
		Store: patterns,
		Validator: nav.NewValidator(nav.ValidatorConfig{
			Cache:     probeCache,
			Logger:    s.logger,
			UserAgent: cfg.Reader.UserAgent,
		}),
		Scraper: nav.NewLinkScraper(nav.LinkScraperConfig{
			Fetcher: rd,
			Cache:   scrapeCache,
			Logger:  s.logger,
		}),
		Logger: s.logger,
	})

	// Translation service with its durable record trail
	records := translate.NewRecordStore(s.defraClient, s.sink, s.logger)
	translator := translate.NewService(translate.Config{
		Chain:    chainFromConfig(cfg.Translate.Chain),
		Registry: s.registry,
		Fetcher:  rd,
		Cache:    cache.New(time.Duration(cfg.Translate.CacheTTLHours)*time.Hour, 10*time.Minute),
		CacheTTL: time.Duration(cfg.Translate.CacheTTLHours) * time.Hour,
		Records:  records,
		Logger:   s.logger,
	})

	// Optional pattern eviction
	if cfg.Patterns.EvictAfter != "" {
		age, err := time.ParseDuration(cfg.Patterns.EvictAfter)
		if err != nil {
			return fmt.Errorf("invalid patterns.evict_after %q: %w", cfg.Patterns.EvictAfter, err)
		}
		go nav.NewSweeper(patterns, age, s.logger).Run(ctx)
	}

	services := &svcctx.Services{
		DefraClient:  s.defraClient,
		DefraSink:    s.sink,
		Engine:       engine,
		Patterns:     patterns,
		Reader:       rd,
		Translator:   translator,
		Translations: records,
		Registry:     s.registry,
		ConfigStore:  configStore,
		Logger:       s.logger,
		MetricsQuery: metrics.NewQuery(s.defraClient),
		Recorder:     metrics.NewRecorder(s.sink, s.logger),
	}

	s.mu.Lock()
	s.services = services
	s.mu.Unlock()
	return nil
}

// chainFromConfig converts configured chain entries to the service type.
func chainFromConfig(entries []config.ChainEntryCfg) []translate.ChainEntry {
	chain := make([]translate.ChainEntry, 0, len(entries))
	for _, e := range entries {
		chain = append(chain, translate.ChainEntry{Provider: e.Provider, Model: e.Model})
	}
	return chain
}

// shutdown performs graceful shutdown of the HTTP server, the write sink,
// and optionally DefraDB.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Flush pending writes before the database goes away
	if s.sink != nil {
		s.sink.Stop()
	}

	if s.stopDefra {
		s.logger.Info("stopping DefraDB")
		if err := s.defraManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("DefraDB stop error", "error", err)
		}
	} else {
		s.logger.Info("leaving DefraDB running")
	}

	// Close Docker client
	if err := s.defraManager.Close(); err != nil {
		s.logger.Error("DefraDB manager close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// DefraClient returns the DefraDB client.
// Returns nil if the server hasn't started yet.
func (s *Server) DefraClient() *defra.Client {
	return s.defraClient
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

func (s *Server) currentServices() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svcs := s.currentServices(); svcs != nil {
			ctx = svcctx.WithServices(ctx, svcs)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until DefraDB and services are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.defraClient == nil || s.currentServices() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
