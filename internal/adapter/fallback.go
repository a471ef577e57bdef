package adapter

import "github.com/scor-analyzer/internal/types"

// fallbackPrices are conservative USD prices used when the price provider is unavailable
var fallbackPrices = map[string]float64{
	"USDC": 1,
	"USDT": 1,
	"DAI":  1,
	"WBTC": 45000,
	"LINK": 15,
	"UNI":  7,
	"AAVE": 90,
	"ENS":  12,
}

// FallbackPrices returns the fixed price table with the given native price
func FallbackPrices(nativeUSD float64) *types.RawPrices {
	usd := make(map[string]float64, len(fallbackPrices)+1)
	for symbol, price := range fallbackPrices {
		usd[symbol] = price
	}
	usd[types.NativeSymbol] = nativeUSD

	return &types.RawPrices{USD: usd, Source: types.PriceSourceFallback}
}
