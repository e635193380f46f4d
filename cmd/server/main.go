/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Configure the default slog logger
  3. Open the SQLite or Postgres store (Postgres migrates first)
  4. Create API handler and the ledger consistency sweeper
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port, overrides PAYROLL_ADDR
  -db      SQLite database path, overrides PAYROLL_DB_PATH
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run against Postgres
  PAYROLL_DB_DRIVER=postgres DATABASE_URL=postgres://localhost/payroll ./server

ENVIRONMENT:
  See package config for the full list of keys.

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - api/scheduler.go: Consistency sweeper
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Store implementations
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/store/postgres"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides PAYROLL_ADDR)")
	dbPath := flag.String("db", "", "SQLite database path (overrides PAYROLL_DB_PATH)")
	flag.Parse()
	if *port > 0 {
		cfg.Addr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Initialize handler
	handler := api.NewHandler(store, logger)
	handler.DefaultPayoutMonth = cfg.DefaultPayoutMonth

	sweeper := api.NewConsistencySweeper(store, handler.Engine, cfg.SweepInterval, logger)
	sweeper.Start()

	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
		Sweeper:     sweeper,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "driver", cfg.DBDriver, "sweep_interval", cfg.SweepInterval)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	sweeper.Stop()

	logger.Info("server stopped")
}

// openStore returns the configured store and its close function.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (api.Store, func(), error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		if cfg.RunMigrations {
			if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return nil, nil, err
			}
			logger.Info("migrations applied")
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.New(pool)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("close database", "error", err)
			}
		}, nil
	}
}
