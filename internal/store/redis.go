package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atmx/reputation-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for profiles. Writes go to the primary store and invalidate the
// cache; ledger and ranking reads always hit the primary so recomputes see
// the complete ledger and leaderboards are computed per request.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpsertProfile(ctx context.Context, userID, name string) (*model.Profile, error) {
	p, err := s.primary.UpsertProfile(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return p, nil
}

func (s *CachedStore) SetReputation(ctx context.Context, userID string, summary model.PerformanceSummary) error {
	if err := s.primary.SetReputation(ctx, userID, summary); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	data, err := s.rdb.Get(ctx, profileKey(userID)).Bytes()
	if err == nil {
		var p model.Profile
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	// Cache miss: read from primary. Not-found is not cached.
	p, err := s.primary.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, profileKey(userID), data, s.ttl)
	}
	return p, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return s.primary.InsertLedgerEntry(ctx, entry)
}

func (s *CachedStore) GetLedgerEntry(ctx context.Context, id string) (*model.LedgerEntry, error) {
	return s.primary.GetLedgerEntry(ctx, id)
}

func (s *CachedStore) GetLedgerEntriesByUser(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntriesByUser(ctx, userID, limit)
}

func (s *CachedStore) DeleteLedgerEntry(ctx context.Context, id string) error {
	return s.primary.DeleteLedgerEntry(ctx, id)
}

func (s *CachedStore) ListLedgerUsers(ctx context.Context) ([]string, error) {
	return s.primary.ListLedgerUsers(ctx)
}

func (s *CachedStore) ListRankedProfiles(ctx context.Context) ([]model.Profile, error) {
	return s.primary.ListRankedProfiles(ctx)
}

func (s *CachedStore) CountProfilesAbove(ctx context.Context, userID string, pnl decimal.Decimal) (int, error) {
	return s.primary.CountProfilesAbove(ctx, userID, pnl)
}

// --- Cache helpers ---

func (s *CachedStore) invalidate(ctx context.Context, userID string) {
	if err := s.rdb.Del(ctx, profileKey(userID)).Err(); err != nil {
		slog.Warn("profile cache invalidation failed", "user", userID, "err", err)
	}
}

func profileKey(uid string) string { return fmt.Sprintf("reputation:profile:%s", uid) }
