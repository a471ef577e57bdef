package scoring

import (
	"math"

	"github.com/scor-analyzer/internal/types"
)

// Weights holds the fixed contribution of each component to the final score
type Weights struct {
	Treasury        float64
	Activity        float64
	Diversification float64
	Maturity        float64
	History         float64
}

// DefaultWeights are the authoritative component weights (sum = 1.00)
var DefaultWeights = Weights{
	Treasury:        0.30,
	Activity:        0.25,
	Diversification: 0.20,
	Maturity:        0.15,
	History:         0.10,
}

// Tier thresholds, closed lower bounds checked in descending order
const (
	ThresholdLow       = 80
	ThresholdMediumLow = 65
	ThresholdMedium    = 45

	MinFinalScore = 1
	MaxFinalScore = 100
)

var decisions = map[types.RiskTier]types.CreditDecision{
	types.TierLow: {
		Approved:        true,
		Label:           "Approved for Financing",
		Rationale:       "Strong treasury, consistent activity, and low risk indicators",
		MaxAdvanceRatio: 0.7,
	},
	types.TierMediumLow: {
		Approved:        true,
		Label:           "Approved with Standard Terms",
		Rationale:       "Good financial health with minor risk factors",
		MaxAdvanceRatio: 0.5,
	},
	types.TierMedium: {
		Approved:        false,
		Label:           "Requires Further Review",
		Rationale:       "Mixed risk indicators require additional due diligence",
		MaxAdvanceRatio: 0.3,
	},
	types.TierHigh: {
		Approved:        false,
		Label:           "Not Recommended for Financing",
		Rationale:       "Significant risk factors present",
		MaxAdvanceRatio: 0.1,
	},
}

// Aggregate combines component scores into a final score in [1,100] and its tier.
func Aggregate(scores types.ComponentScores) (int, types.RiskTier) {
	w := DefaultWeights
	sum := float64(scores.Treasury)*w.Treasury +
		float64(scores.Activity)*w.Activity +
		float64(scores.Diversification)*w.Diversification +
		float64(scores.Maturity)*w.Maturity +
		float64(scores.History)*w.History

	final := clamp(math.Round(sum), MinFinalScore, MaxFinalScore)
	return final, TierFor(final)
}

// TierFor maps a final score to its risk tier
func TierFor(finalScore int) types.RiskTier {
	switch {
	case finalScore >= ThresholdLow:
		return types.TierLow
	case finalScore >= ThresholdMediumLow:
		return types.TierMediumLow
	case finalScore >= ThresholdMedium:
		return types.TierMedium
	default:
		return types.TierHigh
	}
}

// DecisionFor returns the credit decision for a tier. Unknown tiers are treated as High.
func DecisionFor(tier types.RiskTier) types.CreditDecision {
	if d, ok := decisions[tier]; ok {
		return d
	}
	return decisions[types.TierHigh]
}
