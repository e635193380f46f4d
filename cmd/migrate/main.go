/*
main.go - Postgres schema migrations

PURPOSE:
  Applies or inspects the goose migrations embedded in store/postgres
  without starting the server.

USAGE:
  ./migrate          apply pending migrations (same as "up")
  ./migrate up
  ./migrate status   print the current schema version

ENVIRONMENT:
  DATABASE_URL is required; .env is honoured.
*/
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/store/postgres"
)

func main() {
	flag.Parse()
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}

	ctx := context.Background()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	switch command {
	case "up":
		if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied")
	case "status":
		version, err := postgres.MigrationStatus(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to read schema version", "error", err)
			os.Exit(1)
		}
		slog.Info("schema version", "version", version)
	default:
		slog.Error("unknown command", "command", command, "want", "up|status")
		os.Exit(2)
	}
}
