package holdings

import (
	"github.com/scor-analyzer/internal/types"
)

// activityBand is one row of the threshold table on the recent transaction
// count. Rows are checked top to bottom; a row matches when recent > Above.
type activityBand struct {
	Above        int64
	Level        string
	LastActivity string
	Stability    string
}

var activityBands = []activityBand{
	{Above: 100, Level: "Very High", LastActivity: "2 hours ago", Stability: "Stable"},
	{Above: 50, Level: "High", LastActivity: "1 day ago", Stability: "Stable"},
	{Above: 20, Level: "Medium", LastActivity: "3 days ago", Stability: "Moderate"},
	{Above: 10, Level: "Low", LastActivity: "3 days ago", Stability: "Volatile"},
	{Above: 5, Level: "Low", LastActivity: "1 week ago", Stability: "Volatile"},
	{Above: 0, Level: "Very Low", LastActivity: "1 week ago", Stability: "Volatile"},
}

var quietBand = activityBand{Level: "Very Low", LastActivity: "2+ weeks ago", Stability: "Volatile"}

func bandFor(recent int64) activityBand {
	for _, b := range activityBands {
		if recent > b.Above {
			return b
		}
	}
	return quietBand
}

// Risk factor limits
const (
	highNativeConcentration = 0.8
	lowActivityTxCount      = 10
	newWalletMaturity       = 30
	smallTreasuryUSD        = 100_000
	minPricedTokens         = 2
)

// Profile derives the descriptive activity labels for an account
func Profile(account *types.AccountSnapshot) types.ActivityProfile {
	if account == nil {
		return Profile(&types.AccountSnapshot{})
	}

	band := bandFor(account.TransactionCountRecentWindow)
	p := types.ActivityProfile{
		ActivityLevel:      band.Level,
		LastActivity:       band.LastActivity,
		TreasuryStability:  band.Stability,
		TotalTransactions:  account.TransactionCountTotal,
		RecentTransactions: account.TransactionCountRecentWindow,
	}
	if account.FirstActivityTimestamp != nil {
		p.WalletSince = account.FirstActivityTimestamp.UTC().Format("2006-01-02")
	}
	return p
}

// Factors flags the individual weaknesses behind a score
func Factors(v Valuation, account *types.AccountSnapshot, maturityScore int) types.RiskFactors {
	var recent int64
	if account != nil {
		recent = account.TransactionCountRecentWindow
	}
	return types.RiskFactors{
		HighNativeConcentration: v.NativeRatio > highNativeConcentration,
		LowActivity:             recent < lowActivityTxCount,
		NewWallet:               maturityScore < newWalletMaturity,
		SmallTreasury:           v.TotalValueUSD < smallTreasuryUSD,
		LimitedDiversification:  v.PricedTokens < minPricedTokens,
	}
}

// Compose summarises how value is spread across a ranked holdings list
func Compose(holdings []types.HoldingView) types.PortfolioComposition {
	c := types.PortfolioComposition{
		TotalAssets: len(holdings),
		RiskDistribution: map[types.RiskBucket]int{
			types.BucketLow:    0,
			types.BucketMedium: 0,
			types.BucketHigh:   0,
		},
	}
	if len(holdings) == 0 {
		return c
	}

	var total, stable float64
	for _, h := range holdings {
		total += h.ValueUSD
		if h.IsStable {
			stable += h.ValueUSD
		}
		c.RiskDistribution[h.RiskBucket] += h.PercentageOfPortfolio
	}
	if total > 0 {
		c.StablecoinRatio = round2(stable / total)
	}
	c.TopHoldingConcentration = holdings[0].PercentageOfPortfolio

	return c
}
