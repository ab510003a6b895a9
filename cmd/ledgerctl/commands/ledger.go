package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/atmx/reputation-engine/internal/reconcile"
	"github.com/atmx/reputation-engine/internal/reputation"
	"github.com/atmx/reputation-engine/internal/store"
)

var reconcileWorkers int

var recomputeCmd = &cobra.Command{
	Use:   "recompute <userID>",
	Short: "Rebuild one user's performance summary from their ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		return recompute(cmd.Context(), e.svc, cmd.OutOrStdout(), args[0])
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute the summary of every user with ledger entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		workers := reconcileWorkers
		if workers < 1 {
			workers = e.cfg.ReconcileWorkers
		}
		return reconcileAll(cmd.Context(), reconcile.New(e.store, e.svc, workers), cmd.OutOrStdout())
	},
}

var deleteEntryCmd = &cobra.Command{
	Use:   "delete-entry <entryID>",
	Short: "Delete a ledger entry and re-aggregate its owner",
	Long: `Removes one ledger entry. This is the only sanctioned mutation of the
ledger outside of closing a position; the owner's summary is recomputed
immediately afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		return deleteEntry(cmd.Context(), e.svc, cmd.OutOrStdout(), args[0])
	},
}

func init() {
	reconcileCmd.Flags().IntVar(&reconcileWorkers, "workers", 0, "parallel recomputes (default RECONCILE_WORKERS)")
	rootCmd.AddCommand(recomputeCmd, reconcileCmd, deleteEntryCmd)
}

func recompute(ctx context.Context, svc *reputation.Service, w io.Writer, userID string) error {
	summary, err := svc.RecomputeSummary(ctx, userID)
	if err != nil {
		return fmt.Errorf("recompute %s: %w", userID, err)
	}
	if summary == nil {
		fmt.Fprintf(w, "user %s has no ledger entries; nothing written\n", userID)
		return nil
	}
	return printJSON(w, summary)
}

func reconcileAll(ctx context.Context, r *reconcile.Reconciler, w io.Writer) error {
	res, err := r.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "recomputed %d users (%d failed) in %s\n", res.Users-res.Failed, res.Failed, res.Duration)
	if res.Failed > 0 {
		return fmt.Errorf("%d users failed to recompute", res.Failed)
	}
	return nil
}

func deleteEntry(ctx context.Context, svc *reputation.Service, w io.Writer, entryID string) error {
	err := svc.DeleteEntry(ctx, entryID)

	var rerr *reputation.SummaryRefreshError
	switch {
	case err == nil:
		fmt.Fprintf(w, "deleted %s\n", entryID)
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("ledger entry %s not found", entryID)
	case errors.As(err, &rerr):
		fmt.Fprintf(w, "deleted %s; summary refresh for %s failed, rerun: ledgerctl recompute %s\n",
			entryID, rerr.UserID, rerr.UserID)
		return err
	default:
		return err
	}
}
