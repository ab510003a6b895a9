package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/reputation-engine/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded SQL migrations in lexicographic order and
// records each applied file in schema_migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		var applied bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, name).
			Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		sql, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(sql)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// --- Ledger ---

const ledgerColumns = `id, user_id, ticker,
		        shares::TEXT, entry_price::TEXT, exit_price::TEXT,
		        realized_pnl::TEXT, realized_pnl_percent::TEXT,
		        entry_date, exit_date, portfolio_type, portfolio_id,
		        exit_reason, action, notes`

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, user_id, ticker, shares, entry_price, exit_price,
		                             realized_pnl, realized_pnl_percent, entry_date, exit_date,
		                             portfolio_type, portfolio_id, exit_reason, action, notes)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC,
		         $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.UserID, e.Ticker,
		e.Shares.String(), e.EntryPrice.String(), e.ExitPrice.String(),
		e.RealizedPnL.String(), e.RealizedPnLPercent.String(),
		e.EntryDate, e.ExitDate,
		string(e.PortfolioType), e.PortfolioID, string(e.ExitReason), string(e.Action), e.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetLedgerEntry(ctx context.Context, id string) (*model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %s: %w", id, err)
	}
	defer rows.Close()

	entries, err := scanLedgerEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %s: %w", id, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("ledger entry %s: %w", id, ErrNotFound)
	}
	return &entries[0], nil
}

func (s *PostgresStore) GetLedgerEntriesByUser(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		 FROM ledger_entries WHERE user_id = $1
		 ORDER BY exit_date DESC, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries for %s: %w", userID, err)
	}
	defer rows.Close()

	entries, err := scanLedgerEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries for %s: %w", userID, err)
	}
	return entries, nil
}

func (s *PostgresStore) DeleteLedgerEntry(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ledger entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListLedgerUsers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM ledger_entries ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list ledger users: %w", err)
	}
	defer rows.Close()

	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list ledger users: %w", err)
	}
	return users, nil
}

// --- Profiles ---

const profileColumns = `user_id, name,
		        total_realized_pnl::TEXT, total_positions_closed,
		        win_rate::TEXT, average_win::TEXT, average_loss::TEXT,
		        best_trade::TEXT, worst_trade::TEXT, updated_at`

func (s *PostgresStore) UpsertProfile(ctx context.Context, userID, name string) (*model.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`INSERT INTO user_profiles (user_id, name) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		 RETURNING `+profileColumns, userID, name)
	if err != nil {
		return nil, fmt.Errorf("upsert profile %s: %w", userID, err)
	}
	defer rows.Close()

	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, fmt.Errorf("upsert profile %s: %w", userID, err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("upsert profile %s: no row returned", userID)
	}
	return &profiles[0], nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	defer rows.Close()

	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return &profiles[0], nil
}

func (s *PostgresStore) SetReputation(ctx context.Context, userID string, sum model.PerformanceSummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_profiles (user_id, total_realized_pnl, total_positions_closed,
		                            win_rate, average_win, average_loss, best_trade, worst_trade)
		 VALUES ($1, $2::NUMERIC, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC)
		 ON CONFLICT (user_id) DO UPDATE SET
		     total_realized_pnl     = EXCLUDED.total_realized_pnl,
		     total_positions_closed = EXCLUDED.total_positions_closed,
		     win_rate               = EXCLUDED.win_rate,
		     average_win            = EXCLUDED.average_win,
		     average_loss           = EXCLUDED.average_loss,
		     best_trade             = EXCLUDED.best_trade,
		     worst_trade            = EXCLUDED.worst_trade,
		     updated_at             = NOW()`,
		userID,
		sum.TotalRealizedPnL.String(), sum.TotalPositionsClosed,
		sum.WinRate.String(), sum.AverageWin.String(), sum.AverageLoss.String(),
		sum.BestTrade.String(), sum.WorstTrade.String(),
	)
	if err != nil {
		return fmt.Errorf("set reputation %s: %w", userID, err)
	}
	return nil
}

// ListRankedProfiles returns ranked profiles already ordered by P&L; ties
// fall back to profile creation order.
func (s *PostgresStore) ListRankedProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileColumns+`
		 FROM user_profiles WHERE total_positions_closed > 0
		 ORDER BY total_realized_pnl DESC, created_seq`)
	if err != nil {
		return nil, fmt.Errorf("list ranked profiles: %w", err)
	}
	defer rows.Close()

	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, fmt.Errorf("list ranked profiles: %w", err)
	}
	return profiles, nil
}

func (s *PostgresStore) CountProfilesAbove(ctx context.Context, userID string, pnl decimal.Decimal) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_profiles
		 WHERE total_positions_closed > 0
		   AND user_id <> $1
		   AND total_realized_pnl > $2::NUMERIC`, userID, pnl.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count profiles above %s: %w", pnl, err)
	}
	return n, nil
}

// --- Scanning ---

// pgxRows is the subset of pgx.Rows used by the scanners.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanLedgerEntries(rows pgxRows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var sharesS, entryS, exitS, pnlS, pctS, portfolioType, exitReason, action string

		if err := rows.Scan(&e.ID, &e.UserID, &e.Ticker,
			&sharesS, &entryS, &exitS, &pnlS, &pctS,
			&e.EntryDate, &e.ExitDate, &portfolioType, &e.PortfolioID,
			&exitReason, &action, &e.Notes); err != nil {
			return nil, err
		}

		if err := parseDecimals(
			[]string{sharesS, entryS, exitS, pnlS, pctS},
			&e.Shares, &e.EntryPrice, &e.ExitPrice, &e.RealizedPnL, &e.RealizedPnLPercent,
		); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.PortfolioType = model.PortfolioType(portfolioType)
		e.ExitReason = model.ExitReason(exitReason)
		e.Action = model.Action(action)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanProfiles(rows pgxRows) ([]model.Profile, error) {
	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		var totalS, winRateS, avgWinS, avgLossS, bestS, worstS string

		if err := rows.Scan(&p.UserID, &p.Name,
			&totalS, &p.Summary.TotalPositionsClosed,
			&winRateS, &avgWinS, &avgLossS, &bestS, &worstS,
			&p.UpdatedAt); err != nil {
			return nil, err
		}

		sum := &p.Summary
		if err := parseDecimals(
			[]string{totalS, winRateS, avgWinS, avgLossS, bestS, worstS},
			&sum.TotalRealizedPnL, &sum.WinRate, &sum.AverageWin, &sum.AverageLoss, &sum.BestTrade, &sum.WorstTrade,
		); err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.UserID, err)
		}

		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func parseDecimals(src []string, dst ...*decimal.Decimal) error {
	if len(src) != len(dst) {
		return errors.New("parse decimals: length mismatch")
	}
	for i, v := range src {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("parse decimal %q: %w", v, err)
		}
		*dst[i] = d
	}
	return nil
}
