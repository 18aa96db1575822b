package services

import (
	"math"
	"sort"
	"time"

	"github.com/teamtrack/apiserver/types"
)

// Points policy constants. Fixed policy, not user-configurable.
const (
	leadShareRatio   = 0.4
	memberShareRatio = 0.6

	efficiencyBonusRate = 0.5 // half credit for effort saved under estimate
	deadlineBonusCap    = 0.5 // early finish bonus capped at +50%
	deadlinePenaltyMin  = 0.5 // late finish multiplier floored at 0.5
	earlyDaysPerBonus   = 10  // +10% per 10 days early, up to the cap
	lateDaysPerPenalty  = 20  // -5% per day late, down to the floor
)

// EfficiencyMultiplier rewards finishing under the estimated effort and
// penalizes overruns. Savings earn half credit: estimated 100 / actual 80
// yields 1.125, while estimated 100 / actual 120 yields ~0.833 in full.
// Missing hours data yields the neutral 1.
func EfficiencyMultiplier(estimated, actual float64) float64 {
	if estimated <= 0 || actual <= 0 {
		return 1
	}
	efficiency := estimated / actual
	if efficiency >= 1 {
		return 1 + (efficiency-1)*efficiencyBonusRate
	}
	return efficiency
}

// DeadlineMultiplier rewards early completion (capped at +50%) and penalizes
// late completion (floored at 0.5). Completing exactly on deadline is neutral.
func DeadlineMultiplier(deadline, completedAt time.Time) float64 {
	daysDifference := deadline.Sub(completedAt).Hours() / 24
	switch {
	case daysDifference > 0:
		return 1 + math.Min(daysDifference/earlyDaysPerBonus, deadlineBonusCap)
	case daysDifference < 0:
		return math.Max(1+daysDifference/lateDaysPerPenalty, deadlinePenaltyMin)
	default:
		return 1
	}
}

// Award is one recipient's share of a completed project's points.
type Award struct {
	UserID int
	Role   string
	Points int
	Hours  float64
}

// DistributePoints converts a completed project into point awards.
// The lead receives 40% of the adjusted total outright; the remaining 60% is
// split between contributing members proportional to their summed daily-update
// hours across the whole project. Members with zero recorded hours receive
// nothing and do not dilute the split. The lead's own logged hours are credited
// on the lead entry, not counted into the member pool.
func DistributePoints(basePoints int, estimated, actual float64, deadline, completedAt time.Time, leadID int, hoursByUser map[int]float64) []Award {
	total := float64(basePoints) * EfficiencyMultiplier(estimated, actual) * DeadlineMultiplier(deadline, completedAt)

	awards := []Award{{
		UserID: leadID,
		Role:   types.HistoryRoleLead,
		Points: int(math.Round(total * leadShareRatio)),
		Hours:  hoursByUser[leadID],
	}}

	memberPool := total * memberShareRatio

	memberIDs := make([]int, 0, len(hoursByUser))
	var contributingHours float64
	for userID, hours := range hoursByUser {
		if userID == leadID || hours <= 0 {
			continue
		}
		memberIDs = append(memberIDs, userID)
		contributingHours += hours
	}
	if contributingHours == 0 {
		return awards
	}
	sort.Ints(memberIDs)

	for _, userID := range memberIDs {
		hours := hoursByUser[userID]
		awards = append(awards, Award{
			UserID: userID,
			Role:   types.HistoryRoleMember,
			Points: int(math.Round(hours / contributingHours * memberPool)),
			Hours:  hours,
		})
	}
	return awards
}
