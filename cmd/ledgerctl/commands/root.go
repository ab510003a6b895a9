package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/atmx/reputation-engine/internal/config"
	"github.com/atmx/reputation-engine/internal/reputation"
	"github.com/atmx/reputation-engine/internal/store"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Administer the trading performance ledger",
	Long: `ledgerctl operates on the ledger and reputation store configured by
DATABASE_URL (and optionally REDIS_URL), the same settings the server uses.

Examples:
  ledgerctl leaderboard --limit 10
  ledgerctl rank user-123
  ledgerctl recompute user-123
  ledgerctl reconcile --workers 8
  ledgerctl delete-entry 5f1c...`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// env bundles what every subcommand needs.
type env struct {
	cfg   *config.Config
	store store.Store
	svc   *reputation.Service
	close func()
}

// openEnv loads configuration and connects to the persistent store.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	st, closeStore, err := store.Open(ctx, store.OpenOptions{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		RedisURL:    cfg.RedisURL,
		CacheTTL:    cfg.CacheTTL,
	})
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:   cfg,
		store: st,
		svc: reputation.NewService(st, reputation.Options{
			LeaderboardLimit: cfg.LeaderboardLimit,
			HistoryLimit:     cfg.HistoryLimit,
		}),
		close: closeStore,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
