// Package store defines the persistence interface for the reputation engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/atmx/reputation-engine/internal/model"
)

// ErrNotFound is returned when a ledger entry or profile does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. The ledger half is append-only in
// normal operation; the profile half is a key-value overwrite target for
// derived summaries.
type Store interface {
	// --- Immutable ledger ---

	// InsertLedgerEntry appends a trade-close record.
	InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error

	// GetLedgerEntry retrieves one entry by ID.
	GetLedgerEntry(ctx context.Context, id string) (*model.LedgerEntry, error)

	// GetLedgerEntriesByUser returns a user's entries ordered by exit date
	// descending. A non-positive limit returns the complete ledger.
	GetLedgerEntriesByUser(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error)

	// DeleteLedgerEntry removes an entry. Administrative use only.
	DeleteLedgerEntry(ctx context.Context, id string) error

	// ListLedgerUsers returns every user that owns at least one entry.
	ListLedgerUsers(ctx context.Context) ([]string, error)

	// --- User profiles ---

	// UpsertProfile creates or renames a user's profile.
	UpsertProfile(ctx context.Context, userID, name string) (*model.Profile, error)

	// GetProfile returns the profile with its current summary.
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)

	// SetReputation overwrites the user's summary, creating the profile if
	// it does not exist.
	SetReputation(ctx context.Context, userID string, summary model.PerformanceSummary) error

	// --- Ranking queries ---

	// ListRankedProfiles returns all profiles with at least one closed position.
	ListRankedProfiles(ctx context.Context) ([]model.Profile, error)

	// CountProfilesAbove counts ranked profiles other than userID with a
	// total realized P&L strictly greater than pnl.
	CountProfilesAbove(ctx context.Context, userID string, pnl decimal.Decimal) (int, error)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*CachedStore)(nil)
)
