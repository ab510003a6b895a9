// Package config loads service configuration from the environment.
// All os.Getenv calls live here.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the reputation engine.
type Config struct {
	// Server
	Port            string
	Env             string // development, staging, production
	ShutdownTimeout time.Duration

	// Persistence
	DatabaseURL string // empty → in-memory store
	DBMaxConns  int
	RedisURL    string // empty → no cache
	CacheTTL    time.Duration

	// Queries
	LeaderboardLimit int
	HistoryLimit     int

	// Reconciliation
	ReconcileSchedule string // cron expression; empty disables the job
	ReconcileWorkers  int

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", ""),
	}

	var err error
	if cfg.DBMaxConns, err = getEnvAsInt("DB_MAX_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.LeaderboardLimit, err = getEnvAsInt("LEADERBOARD_DEFAULT_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getEnvAsInt("HISTORY_DEFAULT_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.ReconcileWorkers, err = getEnvAsInt("RECONCILE_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvAsDuration("CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvAsDuration("SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validate() error {
	switch c.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if c.LeaderboardLimit < 1 {
		return fmt.Errorf("LEADERBOARD_DEFAULT_LIMIT must be positive")
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("HISTORY_DEFAULT_LIMIT must be positive")
	}
	if c.ReconcileWorkers < 1 {
		return fmt.Errorf("RECONCILE_WORKERS must be positive")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.ReconcileSchedule != "" {
		if _, err := cron.ParseStandard(c.ReconcileSchedule); err != nil {
			return fmt.Errorf("RECONCILE_SCHEDULE: %w", err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
