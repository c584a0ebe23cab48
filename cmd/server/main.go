/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the proposal engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize logging
  3. Open the SQLite store and seed the catalog if needed
  4. Build the suggestion provider and its cache
  5. Create API handler, session sweeper and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: PORT or 8080)
  -db       SQLite database path (default: DB_PATH or proposals.db)
            Use ":memory:" for in-memory database
  -catalog  YAML/JSON catalog file; replaces the stored catalog on startup

ENVIRONMENT:
  See config/config.go. The suggestion provider is chosen as:
    SUGGESTION_URL set  -> remote provider endpoint
    otherwise           -> Gemini (GEMINI_API_KEY / API_KEY)
  REDIS_ADDR switches the suggestion cache from memory to Redis.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the session sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -catalog=./catalog.yaml
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/proposal-engine/advisor"
	"github.com/warp/proposal-engine/api"
	"github.com/warp/proposal-engine/catalog"
	"github.com/warp/proposal-engine/config"
	"github.com/warp/proposal-engine/observability"
	"github.com/warp/proposal-engine/session"
	"github.com/warp/proposal-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := observability.InitLogger(observability.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := seedCatalog(ctx, store, cfg.CatalogPath, logger); err != nil {
		return err
	}
	cat, err := catalog.Load(ctx, store)
	if err != nil {
		return err
	}

	// Initialize handler
	handler := api.NewHandler(cat, session.NewMemory(), buildProvider(cfg, logger))
	handler.Logger = logger
	handler.Limiter = api.NewRateLimiter(cfg.RateLimitCapacity, cfg.RateLimitWindow)
	handler.CORSOrigins = cfg.CORSOrigins

	sweeper, err := api.NewSessionSweeper(handler, cfg.SessionSweepSchedule, cfg.SessionTTL)
	if err != nil {
		return err
	}
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AdvisorTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", "http://localhost:"+cfg.Port, "properties", len(cat.Properties()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// seedCatalog replaces the stored catalog with the file at path, or stores the
// built-in demo catalog when the database is empty.
func seedCatalog(ctx context.Context, store *sqlite.Store, path string, logger *slog.Logger) error {
	if path != "" {
		props, err := catalog.ParseFile(path)
		if err != nil {
			return err
		}
		logger.Info("seeding catalog from file", "path", path, "properties", len(props))
		return store.Seed(ctx, props)
	}

	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		logger.Info("database empty, seeding demo catalog")
		return store.Seed(ctx, catalog.Default())
	}
	return nil
}

// buildProvider picks the suggestion provider and wraps it in a cache.
func buildProvider(cfg config.Config, logger *slog.Logger) advisor.Provider {
	var next advisor.Provider
	if cfg.SuggestionURL != "" {
		logger.Info("using remote suggestion provider", "url", cfg.SuggestionURL)
		next = advisor.NewClient(cfg.SuggestionURL, cfg.AdvisorTimeout)
	} else {
		if !cfg.HasGemini() {
			logger.Warn("no Gemini API key configured, analysis requests will fail")
		}
		next = advisor.NewGeminiProvider(advisor.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.AdvisorTimeout,
		})
	}

	var cache advisor.Cache = advisor.NewMemoryCache()
	if cfg.RedisAddr != "" {
		logger.Info("caching suggestions in redis", "addr", cfg.RedisAddr)
		cache = advisor.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}
	return advisor.NewCachedProvider(next, cache, cfg.SuggestionCacheTTL, logger)
}
