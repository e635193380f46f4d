/*
Package config loads process configuration from the environment.

PURPOSE:
  One place for every tunable of the server and migration commands. An
  optional .env file in the working directory is read first; real
  environment variables win over it.

KEYS:
  PAYROLL_ADDR                  listen address (default ":8080")
  PAYROLL_DB_DRIVER             sqlite | postgres (default sqlite)
  PAYROLL_DB_PATH               SQLite file (default "payroll.db")
  DATABASE_URL                  Postgres DSN, required for postgres
  PAYROLL_DEFAULT_PAYOUT_MONTH  used until the setting is stored (default 4)
  PAYROLL_LOG_LEVEL             debug | info | warn | error (default info)
  PAYROLL_CORS_ORIGINS          comma separated (default "*")
  PAYROLL_RUN_MIGRATIONS        run goose on start for postgres (default true)
  PAYROLL_SWEEP_INTERVAL        ledger consistency sweep, 0 disables (default 1h)

SEE ALSO:
  - cmd/server/main.go: flags override Addr and DBPath
*/
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Addr               string
	DBDriver           string
	DBPath             string
	DatabaseURL        string
	DefaultPayoutMonth int
	LogLevel           string
	CORSOrigins        []string
	RunMigrations      bool
	SweepInterval      time.Duration
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() Config {
	return Config{
		Addr:               getEnv("PAYROLL_ADDR", ":8080"),
		DBDriver:           strings.ToLower(getEnv("PAYROLL_DB_DRIVER", DriverSQLite)),
		DBPath:             getEnv("PAYROLL_DB_PATH", "payroll.db"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DefaultPayoutMonth: getEnvInt("PAYROLL_DEFAULT_PAYOUT_MONTH", 4),
		LogLevel:           getEnv("PAYROLL_LOG_LEVEL", "info"),
		CORSOrigins:        getEnvList("PAYROLL_CORS_ORIGINS", []string{"*"}),
		RunMigrations:      getEnvBool("PAYROLL_RUN_MIGRATIONS", true),
		SweepInterval:      getEnvDuration("PAYROLL_SWEEP_INTERVAL", time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("PAYROLL_DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown PAYROLL_DB_DRIVER %q", c.DBDriver)
	}
	if c.DefaultPayoutMonth < 1 || c.DefaultPayoutMonth > 12 {
		return fmt.Errorf("PAYROLL_DEFAULT_PAYOUT_MONTH must be between 1 and 12, got %d", c.DefaultPayoutMonth)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
