package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/reputation-engine/internal/model"
	"github.com/atmx/reputation-engine/internal/reconcile"
	"github.com/atmx/reputation-engine/internal/reputation"
	"github.com/atmx/reputation-engine/internal/store"
)

func seeded(t *testing.T) (*store.MemoryStore, *reputation.Service, []*model.LedgerEntry) {
	t.Helper()
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc := reputation.NewService(ms, reputation.Options{})

	var entries []*model.LedgerEntry
	for _, c := range []struct {
		user        string
		entry, exit float64
	}{
		{"alice", 100, 150},
		{"bob", 100, 90},
		{"alice", 50, 40},
	} {
		e, err := svc.ClosePosition(ctx, model.CloseEvent{
			UserID: c.user,
			Position: model.PositionSnapshot{
				Ticker:        "AAPL",
				Shares:        decimal.NewFromInt(1),
				EntryPrice:    decimal.NewFromFloat(c.entry),
				PortfolioType: model.PortfolioSolid,
				PortfolioID:   "p1",
				OpenDate:      time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
			},
			ExitPrice:  decimal.NewFromFloat(c.exit),
			ExitReason: model.ExitManualClose,
		})
		require.NoError(t, err)
		entries = append(entries, e)
	}
	return ms, svc, entries
}

func TestLeaderboard_PrintsRowsInRankOrder(t *testing.T) {
	_, svc, _ := seeded(t)
	var buf bytes.Buffer

	require.NoError(t, leaderboard(context.Background(), svc, &buf, 10))

	var rows []model.LeaderboardRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0].UserID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "bob", rows[1].UserID)
}

func TestRank_UnknownUserIsZero(t *testing.T) {
	_, svc, _ := seeded(t)
	var buf bytes.Buffer

	require.NoError(t, rank(context.Background(), svc, &buf, "nobody"))

	var resp reputation.RankResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, 0, resp.Rank)
}

func TestHistory_RespectsLimit(t *testing.T) {
	_, svc, _ := seeded(t)
	var buf bytes.Buffer

	require.NoError(t, history(context.Background(), svc, &buf, "alice", 1))

	var rows []model.HistoryRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Len(t, rows, 1)
}

func TestRecompute_NoEntries(t *testing.T) {
	_, svc, _ := seeded(t)
	var buf bytes.Buffer

	require.NoError(t, recompute(context.Background(), svc, &buf, "carol"))
	assert.Contains(t, buf.String(), "nothing written")
}

func TestDeleteEntry(t *testing.T) {
	ms, svc, entries := seeded(t)
	ctx := context.Background()
	var buf bytes.Buffer

	require.NoError(t, deleteEntry(ctx, svc, &buf, entries[1].ID))
	assert.Contains(t, buf.String(), "deleted")

	p, err := ms.GetProfile(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, p.Ranked())

	err = deleteEntry(ctx, svc, &buf, entries[1].ID)
	assert.ErrorContains(t, err, "not found")
}

func TestReconcileAll(t *testing.T) {
	ms, svc, _ := seeded(t)
	var buf bytes.Buffer

	require.NoError(t, reconcileAll(context.Background(), reconcile.New(ms, svc, 2), &buf))
	assert.Contains(t, buf.String(), "recomputed 2 users (0 failed)")
}
