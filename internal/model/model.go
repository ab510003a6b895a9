// Package model defines the core domain types shared across the reputation engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioType classifies the strategy a closed position belonged to.
type PortfolioType string

const (
	PortfolioSolid PortfolioType = "solid"
	PortfolioRisky PortfolioType = "risky"
)

// Valid reports whether p is a known portfolio type.
func (p PortfolioType) Valid() bool {
	return p == PortfolioSolid || p == PortfolioRisky
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitManualDelete ExitReason = "manual_delete"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTakeProfit   ExitReason = "take_profit"
	ExitManualClose  ExitReason = "manual_close"
)

// Valid reports whether r is a known exit reason.
func (r ExitReason) Valid() bool {
	switch r {
	case ExitManualDelete, ExitStopLoss, ExitTakeProfit, ExitManualClose:
		return true
	}
	return false
}

// Action is the trade direction of a ledger entry.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// PositionSnapshot is the open position as supplied by the portfolio store
// at close time. It is trusted as-is; the engine does not verify that it
// matches a real open position.
type PositionSnapshot struct {
	Ticker        string          `json:"ticker"`
	Shares        decimal.Decimal `json:"shares"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	PortfolioType PortfolioType   `json:"portfolio_type"`
	PortfolioID   string          `json:"portfolio_id"`
	OpenDate      time.Time       `json:"open_date"`
}

// CloseEvent is an inbound request to close a position and record its
// realized outcome.
type CloseEvent struct {
	UserID     string           `json:"user_id"`
	Position   PositionSnapshot `json:"position"`
	ExitPrice  decimal.Decimal  `json:"exit_price"`
	ExitReason ExitReason       `json:"exit_reason"`
	Notes      string           `json:"notes,omitempty"`
}

// LedgerEntry is an immutable record of one closed position.
// Financial fields are computed once at creation and never re-derived.
type LedgerEntry struct {
	ID                 string          `json:"id" db:"id"`
	UserID             string          `json:"user_id" db:"user_id"`
	Ticker             string          `json:"ticker" db:"ticker"`
	Shares             decimal.Decimal `json:"shares" db:"shares"`
	EntryPrice         decimal.Decimal `json:"entry_price" db:"entry_price"`
	ExitPrice          decimal.Decimal `json:"exit_price" db:"exit_price"`
	RealizedPnL        decimal.Decimal `json:"realized_pnl" db:"realized_pnl"`                 // USD
	RealizedPnLPercent decimal.Decimal `json:"realized_pnl_percent" db:"realized_pnl_percent"` // 0 when entry price is 0
	EntryDate          time.Time       `json:"entry_date" db:"entry_date"`
	ExitDate           time.Time       `json:"exit_date" db:"exit_date"`
	PortfolioType      PortfolioType   `json:"portfolio_type" db:"portfolio_type"`
	PortfolioID        string          `json:"portfolio_id" db:"portfolio_id"`
	ExitReason         ExitReason      `json:"exit_reason" db:"exit_reason"`
	Action             Action          `json:"action" db:"action"`
	Notes              string          `json:"notes,omitempty" db:"notes"`
}

// IsProfitable reports whether the trade closed with a positive realized P&L.
func (e LedgerEntry) IsProfitable() bool {
	return e.RealizedPnL.IsPositive()
}

// PerformanceSummary is the per-user aggregate derived from the full ledger.
// It is overwritten in full on every recompute and never patched.
type PerformanceSummary struct {
	TotalRealizedPnL     decimal.Decimal `json:"total_realized_pnl"`
	TotalPositionsClosed int             `json:"total_positions_closed"`
	WinRate              decimal.Decimal `json:"win_rate"`     // percent, 2dp
	AverageWin           decimal.Decimal `json:"average_win"`  // 2dp
	AverageLoss          decimal.Decimal `json:"average_loss"` // 2dp, negative or zero
	BestTrade            decimal.Decimal `json:"best_trade"`
	WorstTrade           decimal.Decimal `json:"worst_trade"`
}

// Profile is the slice of a user's profile record the engine reads and writes.
type Profile struct {
	UserID    string             `json:"user_id"`
	Name      string             `json:"name"`
	Summary   PerformanceSummary `json:"summary"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Ranked reports whether the profile is eligible for ranking.
func (p Profile) Ranked() bool {
	return p.Summary.TotalPositionsClosed > 0
}

// LeaderboardRow is computed per leaderboard request and never persisted.
type LeaderboardRow struct {
	Rank                 int             `json:"rank"`
	UserID               string          `json:"user_id"`
	Name                 string          `json:"name"`
	TotalRealizedPnL     decimal.Decimal `json:"total_realized_pnl"`
	TotalPositionsClosed int             `json:"total_positions_closed"`
	WinRate              decimal.Decimal `json:"win_rate"`
	BestTrade            decimal.Decimal `json:"best_trade"`
	IsProfitable         bool            `json:"is_profitable"`
}

// HistoryRow is a ledger entry as shown in a user's trading history.
type HistoryRow struct {
	ID                 string          `json:"id"`
	Ticker             string          `json:"ticker"`
	Shares             decimal.Decimal `json:"shares"`
	EntryPrice         decimal.Decimal `json:"entry_price"`
	ExitPrice          decimal.Decimal `json:"exit_price"`
	RealizedPnL        decimal.Decimal `json:"realized_pnl"`
	RealizedPnLPercent decimal.Decimal `json:"realized_pnl_percent"`
	EntryDate          time.Time       `json:"entry_date"`
	ExitDate           time.Time       `json:"exit_date"`
	PortfolioType      PortfolioType   `json:"portfolio_type"`
	ExitReason         ExitReason      `json:"exit_reason"`
	IsProfitable       bool            `json:"is_profitable"`
}

// NewHistoryRow projects a ledger entry into its history display form.
func NewHistoryRow(e LedgerEntry) HistoryRow {
	return HistoryRow{
		ID:                 e.ID,
		Ticker:             e.Ticker,
		Shares:             e.Shares,
		EntryPrice:         e.EntryPrice,
		ExitPrice:          e.ExitPrice,
		RealizedPnL:        e.RealizedPnL,
		RealizedPnLPercent: e.RealizedPnLPercent,
		EntryDate:          e.EntryDate,
		ExitDate:           e.ExitDate,
		PortfolioType:      e.PortfolioType,
		ExitReason:         e.ExitReason,
		IsProfitable:       e.IsProfitable(),
	}
}

// Reputation is a user's summary together with their competition rank.
// Rank 0 means unranked.
type Reputation struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	PerformanceSummary
	Rank int `json:"rank"`
}
