package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/reputation-engine/internal/model"
)

func entryAt(id, user string, exit time.Time, pnl int64) *model.LedgerEntry {
	return &model.LedgerEntry{
		ID:          id,
		UserID:      user,
		Ticker:      "MSFT",
		RealizedPnL: decimal.NewFromInt(pnl),
		ExitDate:    exit,
		Action:      model.ActionSell,
	}
}

func TestMemoryStore_LedgerOrderedByExitDateDesc(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	s.InsertLedgerEntry(ctx, entryAt("e1", "u1", base, 1))
	s.InsertLedgerEntry(ctx, entryAt("e2", "u1", base.Add(2*time.Hour), 2))
	s.InsertLedgerEntry(ctx, entryAt("e3", "u2", base.Add(time.Hour), 3))
	s.InsertLedgerEntry(ctx, entryAt("e4", "u1", base.Add(time.Hour), 4))

	got, err := s.GetLedgerEntriesByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"e2", "e4", "e1"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}

	limited, _ := s.GetLedgerEntriesByUser(ctx, "u1", 2)
	if len(limited) != 2 || limited[0].ID != "e2" {
		t.Errorf("limit 2 should return newest two, got %+v", limited)
	}
}

func TestMemoryStore_DuplicateEntryRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	e := entryAt("e1", "u1", time.Now(), 1)

	if err := s.InsertLedgerEntry(ctx, e); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := s.InsertLedgerEntry(ctx, e); err == nil {
		t.Error("expected duplicate insert to fail")
	}
}

func TestMemoryStore_DeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.InsertLedgerEntry(ctx, entryAt("e1", "u1", time.Now(), 1))

	if err := s.DeleteLedgerEntry(ctx, "e1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.GetLedgerEntry(ctx, "e1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteLedgerEntry(ctx, "e1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore_ListLedgerUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.InsertLedgerEntry(ctx, entryAt("e1", "u1", time.Now(), 1))
	s.InsertLedgerEntry(ctx, entryAt("e2", "u2", time.Now(), 1))
	s.InsertLedgerEntry(ctx, entryAt("e3", "u1", time.Now(), 1))

	users, _ := s.ListLedgerUsers(ctx)
	if len(users) != 2 || users[0] != "u1" || users[1] != "u2" {
		t.Errorf("expected [u1 u2], got %v", users)
	}
}

func TestMemoryStore_ProfilesAndRanking(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetProfile(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing profile, got %v", err)
	}

	s.UpsertProfile(ctx, "u1", "Alice")
	s.SetReputation(ctx, "u1", model.PerformanceSummary{TotalRealizedPnL: decimal.NewFromInt(50), TotalPositionsClosed: 1})
	s.SetReputation(ctx, "u2", model.PerformanceSummary{TotalRealizedPnL: decimal.NewFromInt(80), TotalPositionsClosed: 2})
	s.UpsertProfile(ctx, "u3", "Carol") // no trades

	p, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Name != "Alice" || p.Summary.TotalPositionsClosed != 1 {
		t.Errorf("unexpected profile %+v", p)
	}

	ranked, _ := s.ListRankedProfiles(ctx)
	if len(ranked) != 2 || ranked[0].UserID != "u1" || ranked[1].UserID != "u2" {
		t.Errorf("expected ranked [u1 u2] in insertion order, got %+v", ranked)
	}

	n, _ := s.CountProfilesAbove(ctx, "u1", decimal.NewFromInt(50))
	if n != 1 {
		t.Errorf("expected 1 profile above 50, got %d", n)
	}
	n, _ = s.CountProfilesAbove(ctx, "u2", decimal.NewFromInt(80))
	if n != 0 {
		t.Errorf("expected 0 profiles above 80, got %d", n)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.InsertLedgerEntry(ctx, entryAt("e1", "u1", time.Now(), 10))

	e, _ := s.GetLedgerEntry(ctx, "e1")
	e.RealizedPnL = decimal.NewFromInt(-999)

	again, _ := s.GetLedgerEntry(ctx, "e1")
	if !again.RealizedPnL.Equal(decimal.NewFromInt(10)) {
		t.Errorf("stored entry mutated through returned pointer: %s", again.RealizedPnL)
	}
}
