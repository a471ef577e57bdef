package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// Scaling by decimals must be exact: shifting the amount back yields the raw balance.
func TestTokenBalanceAmountIsLossless(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("amount shifted back equals raw balance", prop.ForAll(
		func(raw int64, decimals int) bool {
			tb := TokenBalance{RawBalance: decimal.NewFromInt(raw), Decimals: decimals}
			return tb.Amount().Shift(int32(decimals)).Equal(tb.RawBalance)
		},
		gen.Int64Range(0, 1<<62),
		gen.IntRange(0, 36),
	))

	properties.TestingRun(t)
}
