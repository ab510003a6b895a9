// Package reconcile periodically re-runs the full summary recompute for
// every user with ledger entries. It heals summaries that lost an update to
// a concurrent close in another process or whose refresh failed.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/reputation-engine/internal/metrics"
	"github.com/atmx/reputation-engine/internal/model"
)

// UserLister lists users that own ledger entries.
type UserLister interface {
	ListLedgerUsers(ctx context.Context) ([]string, error)
}

// Recomputer rebuilds one user's summary from their ledger.
type Recomputer interface {
	RecomputeSummary(ctx context.Context, userID string) (*model.PerformanceSummary, error)
}

// Result summarizes one sweep.
type Result struct {
	Users    int
	Failed   int
	Duration time.Duration
}

// Reconciler runs sweeps on demand or on a cron schedule.
type Reconciler struct {
	users   UserLister
	rec     Recomputer
	workers int
	cron    *cron.Cron
	running atomic.Bool
}

// New creates a Reconciler that recomputes up to workers users at once.
func New(users UserLister, rec Recomputer, workers int) *Reconciler {
	if workers < 1 {
		workers = 1
	}
	return &Reconciler{users: users, rec: rec, workers: workers}
}

// Sweep recomputes every user once. Per-user failures are logged and
// counted without stopping the sweep; only listing failures and
// cancellation abort it.
func (r *Reconciler) Sweep(ctx context.Context) (Result, error) {
	start := time.Now()

	users, err := r.users.ListLedgerUsers(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: list users: %w", err)
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, userID := range users {
		userID := userID // per-iteration copy; go.mod targets go 1.21 (pre-1.22 loop semantics)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := r.rec.RecomputeSummary(gctx, userID); err != nil {
				failed.Add(1)
				metrics.ReconcileUsersTotal.WithLabelValues("error").Inc()
				slog.Warn("reconcile recompute failed", "user", userID, "err", err)
				return nil
			}
			metrics.ReconcileUsersTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}

	err = g.Wait()
	res := Result{Users: len(users), Failed: int(failed.Load()), Duration: time.Since(start)}
	if err != nil {
		return res, fmt.Errorf("reconcile: %w", err)
	}

	slog.Info("reconcile sweep finished",
		"users", res.Users,
		"failed", res.Failed,
		"duration", res.Duration.String(),
	)
	return res, nil
}

// Start schedules sweeps using a standard 5-field cron expression. A sweep
// that is still running when the next tick fires is skipped.
func (r *Reconciler) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if !r.running.CompareAndSwap(false, true) {
			slog.Warn("reconcile sweep still running, skipping tick")
			return
		}
		defer r.running.Store(false)

		if _, err := r.Sweep(context.Background()); err != nil {
			slog.Error("reconcile sweep failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("reconcile: schedule %q: %w", schedule, err)
	}

	r.cron = c
	c.Start()
	slog.Info("reconciler scheduled", "schedule", schedule, "workers", r.workers)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (r *Reconciler) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}
