// Package ranking orders users by total realized P&L.
//
// Two rank definitions coexist:
// Leaderboard assigns sequential positions (1, 2, 3, ...) even across ties,
// while CompetitionRank gives tied users the same rank (1, 2, 2, 4, ...).
// A user can therefore see a different number on the leaderboard than on
// their own reputation page.
package ranking

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/reputation-engine/internal/model"
)

// DefaultLimit is the leaderboard size used when the caller gives none.
const DefaultLimit = 50

// EffectiveLimit returns limit, or fallback when limit is not positive.
// A non-positive fallback falls back to DefaultLimit.
func EffectiveLimit(limit, fallback int) int {
	if limit > 0 {
		return limit
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultLimit
}

// Leaderboard returns the top limit ranked profiles ordered by descending
// total realized P&L. Ties keep the input order. Ranks are 1..N with no
// tie compression.
func Leaderboard(profiles []model.Profile, limit int) []model.LeaderboardRow {
	limit = EffectiveLimit(limit, DefaultLimit)

	eligible := make([]model.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.Ranked() {
			eligible = append(eligible, p)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Summary.TotalRealizedPnL.GreaterThan(eligible[j].Summary.TotalRealizedPnL)
	})

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	rows := make([]model.LeaderboardRow, len(eligible))
	for i, p := range eligible {
		rows[i] = model.LeaderboardRow{
			Rank:                 i + 1,
			UserID:               p.UserID,
			Name:                 p.Name,
			TotalRealizedPnL:     p.Summary.TotalRealizedPnL,
			TotalPositionsClosed: p.Summary.TotalPositionsClosed,
			WinRate:              p.Summary.WinRate,
			BestTrade:            p.Summary.BestTrade,
			IsProfitable:         p.Summary.TotalRealizedPnL.IsPositive(),
		}
	}
	return rows
}

// CountAbove counts ranked profiles other than userID whose total realized
// P&L is strictly greater than pnl.
func CountAbove(userID string, pnl decimal.Decimal, profiles []model.Profile) int {
	n := 0
	for _, p := range profiles {
		if p.UserID == userID || !p.Ranked() {
			continue
		}
		if p.Summary.TotalRealizedPnL.GreaterThan(pnl) {
			n++
		}
	}
	return n
}

// CompetitionRank returns the rank of userID among profiles, where users
// with equal P&L share a rank. It returns 0 when the user is absent or has
// no closed positions.
func CompetitionRank(userID string, profiles []model.Profile) int {
	for _, p := range profiles {
		if p.UserID != userID {
			continue
		}
		if !p.Ranked() {
			return 0
		}
		return CountAbove(userID, p.Summary.TotalRealizedPnL, profiles) + 1
	}
	return 0
}
