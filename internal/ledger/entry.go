// Package ledger builds immutable ledger entries from position-close events.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/reputation-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ValidationError describes a malformed close event. Nothing is persisted
// when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Validate checks a close event for missing or out-of-range fields.
func Validate(ev model.CloseEvent) error {
	p := ev.Position
	switch {
	case strings.TrimSpace(ev.UserID) == "":
		return invalid("user_id", "required")
	case strings.TrimSpace(p.Ticker) == "":
		return invalid("ticker", "required")
	case !p.Shares.IsPositive():
		return invalid("shares", "must be positive")
	case p.EntryPrice.IsNegative():
		return invalid("entry_price", "must be non-negative")
	case ev.ExitPrice.IsNegative():
		return invalid("exit_price", "must be non-negative")
	case !p.PortfolioType.Valid():
		return invalid("portfolio_type", fmt.Sprintf("must be %q or %q", model.PortfolioSolid, model.PortfolioRisky))
	case strings.TrimSpace(p.PortfolioID) == "":
		return invalid("portfolio_id", "required")
	case p.OpenDate.IsZero():
		return invalid("open_date", "required")
	case !ev.ExitReason.Valid():
		return invalid("exit_reason", "unknown value "+string(ev.ExitReason))
	}
	return nil
}

// RealizedPnL returns (exit - entry) * shares.
func RealizedPnL(entryPrice, exitPrice, shares decimal.Decimal) decimal.Decimal {
	return exitPrice.Sub(entryPrice).Mul(shares)
}

// RealizedPnLPercent returns ((exit - entry) / entry) * 100, or 0 when the
// entry price is not positive.
func RealizedPnLPercent(entryPrice, exitPrice decimal.Decimal) decimal.Decimal {
	if !entryPrice.IsPositive() {
		return decimal.Zero
	}
	return exitPrice.Sub(entryPrice).Div(entryPrice).Mul(hundred)
}

// NewEntry validates ev and freezes it into a SELL ledger entry closed at
// exitDate.
func NewEntry(id string, ev model.CloseEvent, exitDate time.Time) (*model.LedgerEntry, error) {
	if err := Validate(ev); err != nil {
		return nil, err
	}
	p := ev.Position
	return &model.LedgerEntry{
		ID:                 id,
		UserID:             ev.UserID,
		Ticker:             p.Ticker,
		Shares:             p.Shares,
		EntryPrice:         p.EntryPrice,
		ExitPrice:          ev.ExitPrice,
		RealizedPnL:        RealizedPnL(p.EntryPrice, ev.ExitPrice, p.Shares),
		RealizedPnLPercent: RealizedPnLPercent(p.EntryPrice, ev.ExitPrice),
		EntryDate:          p.OpenDate.UTC(),
		ExitDate:           exitDate.UTC(),
		PortfolioType:      p.PortfolioType,
		PortfolioID:        p.PortfolioID,
		ExitReason:         ev.ExitReason,
		Action:             model.ActionSell,
		Notes:              ev.Notes,
	}, nil
}
