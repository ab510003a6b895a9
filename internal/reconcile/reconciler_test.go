package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/reputation-engine/internal/model"
	"github.com/atmx/reputation-engine/internal/reputation"
	"github.com/atmx/reputation-engine/internal/store"
)

type staticUsers []string

func (s staticUsers) ListLedgerUsers(context.Context) ([]string, error) { return s, nil }

type failingUsers struct{}

func (failingUsers) ListLedgerUsers(context.Context) ([]string, error) {
	return nil, errors.New("connection reset")
}

type recorder struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (r *recorder) RecomputeSummary(_ context.Context, userID string) (*model.PerformanceSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, userID)
	if r.fail[userID] {
		return nil, errors.New("timeout")
	}
	return &model.PerformanceSummary{}, nil
}

func TestSweep_VisitsEveryUserAndCountsFailures(t *testing.T) {
	rec := &recorder{fail: map[string]bool{"b": true}}
	r := New(staticUsers{"a", "b", "c", "d"}, rec, 2)

	res, err := r.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Users)
	assert.Equal(t, 1, res.Failed)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, rec.seen)
}

func TestSweep_ListFailureAborts(t *testing.T) {
	r := New(failingUsers{}, &recorder{}, 1)

	_, err := r.Sweep(context.Background())
	assert.Error(t, err)
}

func TestSweep_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}

	_, err := New(staticUsers{"a", "b"}, rec, 1).Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.seen)
}

func TestSweep_HealsDriftedSummary(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc := reputation.NewService(ms, reputation.Options{})

	_, err := svc.ClosePosition(ctx, model.CloseEvent{
		UserID: "alice",
		Position: model.PositionSnapshot{
			Ticker:        "TSLA",
			Shares:        decimal.NewFromInt(2),
			EntryPrice:    decimal.NewFromInt(100),
			PortfolioType: model.PortfolioSolid,
			PortfolioID:   "pf",
			OpenDate:      time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		ExitPrice:  decimal.NewFromInt(110),
		ExitReason: model.ExitManualClose,
	})
	require.NoError(t, err)

	// Simulate a lost last-writer-wins update.
	require.NoError(t, ms.SetReputation(ctx, "alice", model.PerformanceSummary{TotalPositionsClosed: 7}))

	res, err := New(ms, svc, 4).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failed)

	p, err := ms.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Summary.TotalPositionsClosed)
	assert.True(t, p.Summary.TotalRealizedPnL.Equal(decimal.NewFromInt(20)))
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	r := New(staticUsers{}, &recorder{}, 1)
	assert.Error(t, r.Start("not a schedule"))
	r.Stop(context.Background())
}
