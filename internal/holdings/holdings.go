// Package holdings values an account against a price snapshot and derives the
// ranked holdings list and the descriptive portfolio metrics built on it.
package holdings

import (
	"math"
	"sort"

	"github.com/scor-analyzer/internal/types"
)

var stablecoins = map[string]bool{"USDC": true, "USDT": true, "DAI": true, "BUSD": true}

var blueChips = map[string]bool{"WBTC": true, "LINK": true, "UNI": true, "AAVE": true}

// Bucket limits, inclusive
const (
	blueChipLowMaxPct = 30
	otherMediumMaxPct = 20
)

// Valuation is the USD valuation of an account used by scoring and display
type Valuation struct {
	NativeValueUSD float64
	TokenValueUSD  float64
	TotalValueUSD  float64
	// PricedTokens counts token positions with a usable price
	PricedTokens int
	// NativeRatio is the native share of total value, 1 when the total is 0
	NativeRatio float64
}

// AssetCount is the native asset plus every priced token
func (v Valuation) AssetCount() int {
	return 1 + v.PricedTokens
}

// Metrics returns the display metrics for this valuation
func (v Valuation) Metrics() types.PortfolioMetrics {
	m := types.PortfolioMetrics{
		AssetCount:  v.AssetCount(),
		NativeRatio: round2(v.NativeRatio),
	}
	if v.PricedTokens > 0 && v.TotalValueUSD > 0 {
		m.DiversificationRatio = v.TokenValueUSD / v.TotalValueUSD
	}
	return m
}

// Value prices every position. Unpriced tokens are skipped entirely.
func Value(account *types.AccountSnapshot, prices *types.PriceSnapshot) Valuation {
	var v Valuation
	if account == nil {
		v.NativeRatio = 1
		return v
	}

	v.NativeValueUSD = account.NativeBalance.InexactFloat64() * nativePrice(prices)
	for _, tb := range account.TokenBalances {
		price, ok := prices.TokenPrice(tb.Symbol)
		if !ok {
			continue
		}
		v.TokenValueUSD += tb.Amount().InexactFloat64() * price
		v.PricedTokens++
	}

	v.TotalValueUSD = v.NativeValueUSD + v.TokenValueUSD
	v.NativeRatio = 1
	if v.TotalValueUSD > 0 {
		v.NativeRatio = v.NativeValueUSD / v.TotalValueUSD
	}
	return v
}

// BuildHoldings returns the native holding plus every priced token, sorted by
// value descending with ties kept in first-seen order.
func BuildHoldings(account *types.AccountSnapshot, prices *types.PriceSnapshot, totalValueUSD float64) []types.HoldingView {
	if account == nil {
		return []types.HoldingView{}
	}

	nativeAmount := account.NativeBalance.InexactFloat64()
	np := nativePrice(prices)
	holdings := []types.HoldingView{{
		Symbol:   types.NativeSymbol,
		Amount:   nativeAmount,
		PriceUSD: np,
		ValueUSD: nativeAmount * np,
	}}

	for _, tb := range account.TokenBalances {
		price, ok := prices.TokenPrice(tb.Symbol)
		if !ok {
			continue
		}
		amount := tb.Amount().InexactFloat64()
		holdings = append(holdings, types.HoldingView{
			Symbol:          tb.Symbol,
			ContractAddress: tb.ContractAddress,
			Amount:          amount,
			PriceUSD:        price,
			ValueUSD:        amount * price,
			IsStable:        stablecoins[tb.Symbol],
		})
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].ValueUSD > holdings[j].ValueUSD
	})

	assignPercentages(holdings, totalValueUSD)
	for i := range holdings {
		holdings[i].RiskBucket = bucketFor(holdings[i])
	}

	return holdings
}

// assignPercentages rounds each share to the nearest integer. When rounding
// pushes the sum past 100, the entries rounded up the most give back a point.
func assignPercentages(holdings []types.HoldingView, total float64) {
	if total <= 0 || math.IsNaN(total) {
		return
	}

	surplus := make([]float64, len(holdings))
	sum := 0
	for i := range holdings {
		exact := 100 * holdings[i].ValueUSD / total
		pct := int(math.Round(exact))
		holdings[i].PercentageOfPortfolio = pct
		surplus[i] = float64(pct) - exact
		sum += pct
	}

	for sum > 100 {
		worst := -1
		for i := range holdings {
			if holdings[i].PercentageOfPortfolio == 0 {
				continue
			}
			if worst < 0 || surplus[i] > surplus[worst] {
				worst = i
			}
		}
		if worst < 0 {
			return
		}
		holdings[worst].PercentageOfPortfolio--
		surplus[worst]--
		sum--
	}
}

func bucketFor(h types.HoldingView) types.RiskBucket {
	switch {
	case h.Symbol == types.NativeSymbol:
		return types.BucketMedium
	case stablecoins[h.Symbol]:
		return types.BucketLow
	case blueChips[h.Symbol]:
		if h.PercentageOfPortfolio <= blueChipLowMaxPct {
			return types.BucketLow
		}
		return types.BucketMedium
	default:
		if h.PercentageOfPortfolio <= otherMediumMaxPct {
			return types.BucketMedium
		}
		return types.BucketHigh
	}
}

func nativePrice(prices *types.PriceSnapshot) float64 {
	if prices == nil || prices.NativeUnitPriceUSD <= 0 {
		return 0
	}
	return prices.NativeUnitPriceUSD
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
