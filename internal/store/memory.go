package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/reputation-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	ledger   []model.LedgerEntry
	profiles map[string]*model.Profile
	order    []string // profile insertion order, the natural ranking order
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*model.Profile),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.ledger {
		if e.ID == entry.ID {
			return fmt.Errorf("ledger entry %s already exists", entry.ID)
		}
	}
	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *MemoryStore) GetLedgerEntry(_ context.Context, id string) (*model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.ledger {
		if e.ID == id {
			copy := e
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("ledger entry %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) GetLedgerEntriesByUser(_ context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.UserID == userID {
			result = append(result, e)
		}
	}

	// Newest first; equal exit dates keep the most recent insert first.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ExitDate.After(result[j].ExitDate)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) DeleteLedgerEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.ledger {
		if e.ID == id {
			s.ledger = append(s.ledger[:i], s.ledger[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("ledger entry %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ListLedgerUsers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var users []string
	for _, e := range s.ledger {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			users = append(users, e.UserID)
		}
	}
	return users, nil
}

func (s *MemoryStore) UpsertProfile(_ context.Context, userID, name string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.profileLocked(userID)
	p.Name = name
	p.UpdatedAt = s.now()
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) SetReputation(_ context.Context, userID string, summary model.PerformanceSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.profileLocked(userID)
	p.Summary = summary
	p.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) ListRankedProfiles(_ context.Context) ([]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]model.Profile, 0, len(s.order))
	for _, id := range s.order {
		if p := s.profiles[id]; p.Ranked() {
			profiles = append(profiles, *p)
		}
	}
	return profiles, nil
}

func (s *MemoryStore) CountProfilesAbove(_ context.Context, userID string, pnl decimal.Decimal) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for id, p := range s.profiles {
		if id != userID && p.Ranked() && p.Summary.TotalRealizedPnL.GreaterThan(pnl) {
			n++
		}
	}
	return n, nil
}

// profileLocked returns the profile for userID, creating it if needed.
// Caller must hold the write lock.
func (s *MemoryStore) profileLocked(userID string) *model.Profile {
	p, ok := s.profiles[userID]
	if !ok {
		p = &model.Profile{UserID: userID}
		s.profiles[userID] = p
		s.order = append(s.order, userID)
	}
	return p
}
