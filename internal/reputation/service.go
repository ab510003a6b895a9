// Package reputation is the ledger service: it records closed positions in
// the immutable ledger, keeps each user's performance summary equal to a
// full recompute over their ledger, and answers leaderboard and rank
// queries.
//
// Within one process, writes for the same user are serialized through a
// striped lock. Across processes there is no coordination: two concurrent
// closes for one user may each write a summary missing the other's entry,
// and the last write wins until the next recompute reads the complete
// ledger again. Reads never take the lock and may observe a stale rank.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/atmx/reputation-engine/internal/aggregate"
	"github.com/atmx/reputation-engine/internal/ledger"
	"github.com/atmx/reputation-engine/internal/metrics"
	"github.com/atmx/reputation-engine/internal/model"
	"github.com/atmx/reputation-engine/internal/ranking"
	"github.com/atmx/reputation-engine/internal/store"
)

// ErrLedgerWrite wraps a failed ledger insert. Nothing was recorded.
var ErrLedgerWrite = errors.New("reputation: ledger write failed")

// SummaryRefreshError reports that a ledger change was committed but the
// summary could not be refreshed. Re-running RecomputeSummary heals it.
type SummaryRefreshError struct {
	UserID  string
	EntryID string
	Err     error
}

func (e *SummaryRefreshError) Error() string {
	return fmt.Sprintf("reputation: entry %s recorded but summary refresh for %s failed: %v", e.EntryID, e.UserID, e.Err)
}

func (e *SummaryRefreshError) Unwrap() error { return e.Err }

const lockStripes = 64

// Options tunes default query sizes.
type Options struct {
	LeaderboardLimit int // default 50
	HistoryLimit     int // default 50
	Now              func() time.Time
}

// Service orchestrates ledger writes, summary recomputes and ranking reads.
type Service struct {
	store            store.Store
	leaderboardLimit int
	historyLimit     int
	now              func() time.Time
	locks            [lockStripes]sync.Mutex
}

// NewService creates a ledger service over st.
func NewService(st store.Store, opts Options) *Service {
	s := &Service{
		store:            st,
		leaderboardLimit: ranking.EffectiveLimit(opts.LeaderboardLimit, ranking.DefaultLimit),
		historyLimit:     ranking.EffectiveLimit(opts.HistoryLimit, ranking.DefaultLimit),
		now:              opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) lock(userID string) func() {
	mu := &s.locks[xxhash.Sum64String(userID)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// ClosePosition appends a ledger entry for the closed position and then
// recomputes the owner's summary.
//
// On a validation failure nothing is written and a *ledger.ValidationError
// is returned. If the ledger insert fails the error wraps ErrLedgerWrite.
// If only the summary refresh fails, the committed entry is returned
// together with a *SummaryRefreshError.
func (s *Service) ClosePosition(ctx context.Context, ev model.CloseEvent) (*model.LedgerEntry, error) {
	start := time.Now()
	defer func() { metrics.CloseLatency.Observe(time.Since(start).Seconds()) }()

	entry, err := ledger.NewEntry(uuid.New().String(), ev, s.now())
	if err != nil {
		return nil, err
	}

	unlock := s.lock(entry.UserID)
	defer unlock()

	if err := s.store.InsertLedgerEntry(ctx, entry); err != nil {
		slog.Error("ledger write failed",
			"user", entry.UserID,
			"ticker", entry.Ticker,
			"err", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}
	metrics.LedgerEntriesTotal.WithLabelValues(string(entry.ExitReason), string(entry.PortfolioType)).Inc()

	slog.Info("position closed",
		"entry_id", entry.ID,
		"user", entry.UserID,
		"ticker", entry.Ticker,
		"shares", entry.Shares.String(),
		"realized_pnl", entry.RealizedPnL.String(),
		"exit_reason", entry.ExitReason,
	)

	if _, err := s.recomputeLocked(ctx, entry.UserID); err != nil {
		slog.Warn("summary refresh failed after close",
			"entry_id", entry.ID,
			"user", entry.UserID,
			"err", err,
		)
		return entry, &SummaryRefreshError{UserID: entry.UserID, EntryID: entry.ID, Err: err}
	}
	return entry, nil
}

// RecomputeSummary rebuilds the user's summary from their complete ledger
// and overwrites the stored one. With no ledger entries it writes nothing
// and returns (nil, nil).
func (s *Service) RecomputeSummary(ctx context.Context, userID string) (*model.PerformanceSummary, error) {
	unlock := s.lock(userID)
	defer unlock()
	return s.recomputeLocked(ctx, userID)
}

func (s *Service) recomputeLocked(ctx context.Context, userID string) (*model.PerformanceSummary, error) {
	entries, err := s.store.GetLedgerEntriesByUser(ctx, userID, 0)
	if err != nil {
		metrics.RecomputeTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RecomputeLedgerSize.Observe(float64(len(entries)))

	summary, ok := aggregate.Summarize(entries)
	if !ok {
		metrics.RecomputeTotal.WithLabelValues("empty").Inc()
		return nil, nil
	}

	if err := s.store.SetReputation(ctx, userID, summary); err != nil {
		metrics.RecomputeTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RecomputeTotal.WithLabelValues("ok").Inc()

	slog.Debug("summary recomputed",
		"user", userID,
		"total_realized_pnl", summary.TotalRealizedPnL.String(),
		"positions_closed", summary.TotalPositionsClosed,
		"win_rate", summary.WinRate.String(),
	)
	return &summary, nil
}

// DeleteEntry removes a ledger entry and re-aggregates its owner. When the
// owner has no entries left their summary is reset to zero so they drop
// out of the ranking. Errors after the delete succeeded are returned as
// *SummaryRefreshError.
func (s *Service) DeleteEntry(ctx context.Context, entryID string) error {
	entry, err := s.store.GetLedgerEntry(ctx, entryID)
	if err != nil {
		return err
	}

	unlock := s.lock(entry.UserID)
	defer unlock()

	if err := s.store.DeleteLedgerEntry(ctx, entryID); err != nil {
		return err
	}
	metrics.LedgerEntriesDeleted.Inc()

	slog.Warn("ledger entry deleted",
		"entry_id", entryID,
		"user", entry.UserID,
		"ticker", entry.Ticker,
		"realized_pnl", entry.RealizedPnL.String(),
	)

	summary, err := s.recomputeLocked(ctx, entry.UserID)
	if err == nil && summary == nil {
		err = s.store.SetReputation(ctx, entry.UserID, model.PerformanceSummary{})
	}
	if err != nil {
		return &SummaryRefreshError{UserID: entry.UserID, EntryID: entryID, Err: err}
	}
	return nil
}

// Leaderboard returns the top users by total realized P&L with sequential
// ranks. A non-positive limit uses the configured default.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	metrics.RankQueriesTotal.WithLabelValues("leaderboard").Inc()

	profiles, err := s.store.ListRankedProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return ranking.Leaderboard(profiles, ranking.EffectiveLimit(limit, s.leaderboardLimit)), nil
}

// UserRank returns 1 + the number of other ranked users with a strictly
// greater total realized P&L. Unknown users and users with no closed
// positions get 0.
func (s *Service) UserRank(ctx context.Context, userID string) (int, error) {
	metrics.RankQueriesTotal.WithLabelValues("rank").Inc()

	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.rankOf(ctx, p)
}

func (s *Service) rankOf(ctx context.Context, p *model.Profile) (int, error) {
	if !p.Ranked() {
		return 0, nil
	}
	above, err := s.store.CountProfilesAbove(ctx, p.UserID, p.Summary.TotalRealizedPnL)
	if err != nil {
		return 0, err
	}
	return above + 1, nil
}

// TradingHistory returns the user's most recent closed trades, newest first.
func (s *Service) TradingHistory(ctx context.Context, userID string, limit int) ([]model.HistoryRow, error) {
	entries, err := s.store.GetLedgerEntriesByUser(ctx, userID, ranking.EffectiveLimit(limit, s.historyLimit))
	if err != nil {
		return nil, err
	}

	rows := make([]model.HistoryRow, len(entries))
	for i, e := range entries {
		rows[i] = model.NewHistoryRow(e)
	}
	return rows, nil
}

// ReputationSummary returns the user's stored summary with their
// competition rank. It returns store.ErrNotFound for unknown users.
func (s *Service) ReputationSummary(ctx context.Context, userID string) (*model.Reputation, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	rank, err := s.rankOf(ctx, p)
	if err != nil {
		return nil, err
	}
	return &model.Reputation{
		UserID:             p.UserID,
		Name:               p.Name,
		PerformanceSummary: p.Summary,
		Rank:               rank,
	}, nil
}

// UpsertProfile sets the display name shown on the leaderboard.
func (s *Service) UpsertProfile(ctx context.Context, userID, name string) (*model.Profile, error) {
	if userID == "" {
		return nil, &ledger.ValidationError{Field: "user_id", Reason: "required"}
	}
	return s.store.UpsertProfile(ctx, userID, name)
}
