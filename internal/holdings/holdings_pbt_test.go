package holdings

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/scor-analyzer/internal/types"
)

func TestHoldingsProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	build := func(native int64, amounts []int64) []types.HoldingView {
		account := &types.AccountSnapshot{NativeBalance: decimal.NewFromInt(native)}
		tokens := map[string]float64{}
		for i, a := range amounts {
			sym := string(rune('A'+i%26)) + string(rune('A'+i/26))
			account.TokenBalances = append(account.TokenBalances, token(sym, a))
			tokens[sym] = 1
		}
		p := prices(3, tokens)
		return BuildHoldings(account, p, Value(account, p).TotalValueUSD)
	}

	properties.Property("percentages sum to at most 100", prop.ForAll(
		func(native int64, amounts []int64) bool {
			return sum(percentages(build(native, amounts))) <= 100
		},
		gen.Int64Range(0, 1_000_000),
		gen.SliceOf(gen.Int64Range(0, 1_000_000)),
	))

	properties.Property("holdings are sorted by value descending", prop.ForAll(
		func(native int64, amounts []int64) bool {
			h := build(native, amounts)
			for i := 1; i < len(h); i++ {
				if h[i].ValueUSD > h[i-1].ValueUSD {
					return false
				}
			}
			return true
		},
		gen.Int64Range(0, 1_000_000),
		gen.SliceOf(gen.Int64Range(0, 1_000_000)),
	))

	properties.Property("native holding is always present", prop.ForAll(
		func(native int64, amounts []int64) bool {
			for _, h := range build(native, amounts) {
				if h.Symbol == types.NativeSymbol {
					return true
				}
			}
			return false
		},
		gen.Int64Range(0, 1_000_000),
		gen.SliceOf(gen.Int64Range(0, 1_000_000)),
	))

	properties.TestingRun(t)
}
