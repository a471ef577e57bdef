// Package scoring implements the five component scorers and the weighted
// aggregator that turns them into a final score, a risk tier and a credit decision.
//
// Every scorer is total: degenerate input (zero, negative, missing) yields 0 and
// the result is always an integer in [0,100].
package scoring

import (
	"math"
	"time"
)

// Scoring anchors
const (
	// TreasuryAnchorUSD is the treasury value at which the log scale starts
	TreasuryAnchorUSD = 100_000.0
	// ActivitySaturation is the recent transaction count that scores 100
	ActivitySaturation = 500
	// NativeConcentrationLimit is the native-asset share above which diversification is penalised
	NativeConcentrationLimit = 0.7
	// BalancedNativeFloor is the lower bound of the balanced native-asset share
	BalancedNativeFloor = 0.3

	yearDuration = 365 * 24 * time.Hour
)

// clamp rounds v half away from zero and bounds it to [lo,hi]
func clamp(v float64, lo, hi int) int {
	if math.IsNaN(v) {
		return lo
	}
	r := math.Round(v)
	if r < float64(lo) {
		return lo
	}
	if r > float64(hi) {
		return hi
	}
	return int(r)
}

// Treasury scores the total portfolio value on a log scale: $1M = 25, $10M = 50, $10B = 100.
// Anything at or below the anchor scores 0.
func Treasury(totalValueUSD float64) int {
	if totalValueUSD <= 0 || math.IsNaN(totalValueUSD) {
		return 0
	}
	return clamp(25*math.Log10(totalValueUSD/TreasuryAnchorUSD), 0, 100)
}

// Activity scores the trailing 30-day transaction count linearly, saturating at 500.
func Activity(recentTxCount int64) int {
	if recentTxCount <= 0 {
		return 0
	}
	return clamp(math.Min(100, float64(recentTxCount)/5), 0, 100)
}

// Diversification rewards asset breadth, penalises native-asset concentration
// above 70% and adds a bonus when the native share sits strictly between 30% and 70%.
func Diversification(assetCount int, nativeRatio float64) int {
	if assetCount <= 0 {
		return 0
	}
	if math.IsNaN(nativeRatio) {
		nativeRatio = 1
	}

	base := math.Min(60, float64(assetCount)*15)
	penalty := math.Max(0, (nativeRatio-NativeConcentrationLimit)*100)
	bonus := 0.0
	if nativeRatio > BalancedNativeFloor && nativeRatio < NativeConcentrationLimit {
		bonus = 20
	}

	return clamp(base-penalty+bonus, 0, 100)
}

// Maturity scores wallet age at 30 points per year. Unknown or future first activity scores 0.
func Maturity(firstActivity *time.Time, now time.Time) int {
	if firstActivity == nil || firstActivity.IsZero() {
		return 0
	}
	age := now.Sub(*firstActivity)
	if age < 0 {
		return 0
	}
	years := float64(age) / float64(yearDuration)
	return clamp(math.Min(100, years*30), 0, 100)
}

// History scores the lifetime transaction count on a log scale.
func History(totalTxCount int64) int {
	if totalTxCount <= 0 {
		return 0
	}
	return clamp(25*math.Log10(float64(totalTxCount)), 0, 100)
}
