// Package aggregate reduces a user's complete ledger into a performance
// summary. It is a pure function of the entries: the same ledger always
// yields the same summary regardless of entry order.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/reputation-engine/internal/model"
)

// Places is the rounding applied to ratio and extreme fields at persistence.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Summarize computes the summary over all entries. It returns false when
// entries is empty; callers must not write a summary in that case.
func Summarize(entries []model.LedgerEntry) (model.PerformanceSummary, bool) {
	if len(entries) == 0 {
		return model.PerformanceSummary{}, false
	}

	total := decimal.Zero
	winSum, lossSum := decimal.Zero, decimal.Zero
	var wins, losses int
	best, worst := entries[0].RealizedPnL, entries[0].RealizedPnL

	for _, e := range entries {
		pnl := e.RealizedPnL
		total = total.Add(pnl)

		switch {
		case pnl.IsPositive():
			wins++
			winSum = winSum.Add(pnl)
		case pnl.IsNegative():
			losses++
			lossSum = lossSum.Add(pnl)
		}

		if pnl.GreaterThan(best) {
			best = pnl
		}
		if pnl.LessThan(worst) {
			worst = pnl
		}
	}

	n := len(entries)
	return model.PerformanceSummary{
		TotalRealizedPnL:     total,
		TotalPositionsClosed: n,
		WinRate:              decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(n))).Mul(hundred).Round(Places),
		AverageWin:           mean(winSum, wins),
		AverageLoss:          mean(lossSum, losses),
		BestTrade:            best.Round(Places),
		WorstTrade:           worst.Round(Places),
	}, true
}

func mean(sum decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(count))).Round(Places)
}
