package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTokenBalance_Amount(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals int
		want     string
	}{
		{name: "18 decimals", raw: "1500000000000000000", decimals: 18, want: "1.5"},
		{name: "6 decimals", raw: "2500000", decimals: 6, want: "2.5"},
		{name: "zero decimals", raw: "42", decimals: 0, want: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := TokenBalance{RawBalance: decimal.RequireFromString(tt.raw), Decimals: tt.decimals}
			assert.True(t, decimal.RequireFromString(tt.want).Equal(tb.Amount()), "got %s", tb.Amount())
		})
	}
}

func TestPriceSnapshot_TokenPrice(t *testing.T) {
	p := &PriceSnapshot{TokenUnitPricesUSD: map[string]float64{"USDC": 1, "BAD": 0}}

	price, ok := p.TokenPrice("USDC")
	assert.True(t, ok)
	assert.Equal(t, 1.0, price)

	_, ok = p.TokenPrice("BAD")
	assert.False(t, ok, "non-positive prices are treated as unpriced")

	_, ok = p.TokenPrice("MISSING")
	assert.False(t, ok)

	var nilSnapshot *PriceSnapshot
	_, ok = nilSnapshot.TokenPrice("USDC")
	assert.False(t, ok)
}
