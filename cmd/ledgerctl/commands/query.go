package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/atmx/reputation-engine/internal/reputation"
)

var (
	leaderboardLimit int
	historyLimit     int
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the leaderboard ordered by total realized P&L",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		return leaderboard(cmd.Context(), e.svc, cmd.OutOrStdout(), leaderboardLimit)
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank <userID>",
	Short: "Print a user's competition rank (0 = unranked)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		return rank(cmd.Context(), e.svc, cmd.OutOrStdout(), args[0])
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <userID>",
	Short: "Print a user's closed trades, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		return history(cmd.Context(), e.svc, cmd.OutOrStdout(), args[0], historyLimit)
	},
}

func init() {
	leaderboardCmd.Flags().IntVar(&leaderboardLimit, "limit", 0, "rows to print (default LEADERBOARD_DEFAULT_LIMIT)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "trades to print (default HISTORY_DEFAULT_LIMIT)")
	rootCmd.AddCommand(leaderboardCmd, rankCmd, historyCmd)
}

func leaderboard(ctx context.Context, svc *reputation.Service, w io.Writer, limit int) error {
	rows, err := svc.Leaderboard(ctx, limit)
	if err != nil {
		return err
	}
	return printJSON(w, rows)
}

func rank(ctx context.Context, svc *reputation.Service, w io.Writer, userID string) error {
	n, err := svc.UserRank(ctx, userID)
	if err != nil {
		return err
	}
	return printJSON(w, reputation.RankResponse{UserID: userID, Rank: n})
}

func history(ctx context.Context, svc *reputation.Service, w io.Writer, userID string, limit int) error {
	rows, err := svc.TradingHistory(ctx, userID, limit)
	if err != nil {
		return err
	}
	return printJSON(w, rows)
}
