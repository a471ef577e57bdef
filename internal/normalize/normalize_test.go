package normalize

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/types"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func unix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func TestAccount_ScalesNativeBalance(t *testing.T) {
	n := New(2500)

	snap, err := n.Account(&types.RawAccountData{
		Address: "0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD",
		Balance: "10000000000000000000",
	}, now)
	require.NoError(t, err)

	assert.True(t, snap.NativeBalance.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", snap.Address)
	assert.Zero(t, snap.TransactionCountTotal)
	assert.Zero(t, snap.TransactionCountRecentWindow)
	assert.Nil(t, snap.FirstActivityTimestamp)
	assert.Empty(t, snap.TokenBalances)
	assert.Equal(t, now, snap.ObservedAt)
}

func TestAccount_CountsRecentWindowAndFirstActivity(t *testing.T) {
	n := New(2500)
	oldest := now.Add(-400 * 24 * time.Hour)

	snap, err := n.Account(&types.RawAccountData{
		Balance: "0",
		Transactions: []types.RawTransaction{
			{TimeStamp: unix(now.Add(-time.Hour))},
			{TimeStamp: unix(now.Add(-29 * 24 * time.Hour))},
			{TimeStamp: unix(now.Add(-31 * 24 * time.Hour))},
			{TimeStamp: unix(oldest)},
		},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(4), snap.TransactionCountTotal)
	assert.Equal(t, int64(2), snap.TransactionCountRecentWindow)
	require.NotNil(t, snap.FirstActivityTimestamp)
	assert.Equal(t, oldest.Unix(), snap.FirstActivityTimestamp.Unix())
}

func TestAccount_AccumulatesTokensPerSymbol(t *testing.T) {
	n := New(2500)

	snap, err := n.Account(&types.RawAccountData{
		Balance: "0",
		TokenTransfers: []types.RawTokenTransfer{
			{ContractAddress: "0xA0B8", TokenSymbol: "usdc", TokenDecimal: "6", Value: "1500000"},
			{ContractAddress: "0xDEAD", TokenSymbol: "USDC", TokenDecimal: "6", Value: "500000"},
			{ContractAddress: "0x1F98", TokenSymbol: "UNI", Value: "2000000000000000000"},
			{ContractAddress: "0xBEEF", TokenSymbol: "", TokenDecimal: "18", Value: "1"},
		},
	}, now)
	require.NoError(t, err)
	require.Len(t, snap.TokenBalances, 2)

	usdc := snap.TokenBalances[0]
	assert.Equal(t, "USDC", usdc.Symbol)
	assert.Equal(t, "0xa0b8", usdc.ContractAddress)
	assert.True(t, usdc.Amount().Equal(decimal.NewFromInt(2)))

	uni := snap.TokenBalances[1]
	assert.Equal(t, types.DefaultTokenDecimals, uni.Decimals)
	assert.True(t, uni.Amount().Equal(decimal.NewFromInt(2)))
}

func TestAccount_MixedDecimalsOnSameSymbol(t *testing.T) {
	n := New(2500)

	snap, err := n.Account(&types.RawAccountData{
		Balance: "0",
		TokenTransfers: []types.RawTokenTransfer{
			{TokenSymbol: "FOO", TokenDecimal: "6", Value: "1000000"},
			{TokenSymbol: "FOO", TokenDecimal: "18", Value: "3000000000000000000"},
		},
	}, now)
	require.NoError(t, err)
	require.Len(t, snap.TokenBalances, 1)
	assert.True(t, snap.TokenBalances[0].Amount().Equal(decimal.NewFromInt(4)))
}

func TestAccount_DataFormatErrors(t *testing.T) {
	n := New(2500)

	tests := []struct {
		name string
		raw  *types.RawAccountData
	}{
		{name: "nil payload", raw: nil},
		{name: "missing balance", raw: &types.RawAccountData{}},
		{name: "non-numeric balance", raw: &types.RawAccountData{Balance: "lots"}},
		{name: "negative balance", raw: &types.RawAccountData{Balance: "-1"}},
		{name: "fractional balance", raw: &types.RawAccountData{Balance: "1.5"}},
		{name: "bad timestamp", raw: &types.RawAccountData{
			Balance:      "0",
			Transactions: []types.RawTransaction{{TimeStamp: "yesterday"}},
		}},
		{name: "missing timestamp", raw: &types.RawAccountData{
			Balance:      "0",
			Transactions: []types.RawTransaction{{}},
		}},
		{name: "bad token value", raw: &types.RawAccountData{
			Balance:        "0",
			TokenTransfers: []types.RawTokenTransfer{{TokenSymbol: "DAI", Value: "x"}},
		}},
		{name: "bad token decimals", raw: &types.RawAccountData{
			Balance:        "0",
			TokenTransfers: []types.RawTokenTransfer{{TokenSymbol: "DAI", TokenDecimal: "eighteen", Value: "1"}},
		}},
		{name: "absurd token decimals", raw: &types.RawAccountData{
			Balance:        "0",
			TokenTransfers: []types.RawTokenTransfer{{TokenSymbol: "DAI", TokenDecimal: "400", Value: "1"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Account(tt.raw, now)
			require.Error(t, err)
			assert.True(t, errors.IsDataFormat(err), "got %v", err)
		})
	}
}

func TestAccount_CountsOnlyTheFetchedPage(t *testing.T) {
	n := New(2500)

	// a full page of daily transactions, newest first
	page := make([]types.RawTransaction, 100)
	for i := range page {
		page[i] = types.RawTransaction{TimeStamp: unix(now.Add(-time.Duration(i) * 24 * time.Hour))}
	}

	snap, err := n.Account(&types.RawAccountData{Balance: "0", Transactions: page}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(100), snap.TransactionCountTotal)
	require.NotNil(t, snap.FirstActivityTimestamp)
	assert.Equal(t, now.Add(-99*24*time.Hour).Unix(), snap.FirstActivityTimestamp.Unix())
}

func TestPrices_LiveSnapshot(t *testing.T) {
	n := New(2500)

	snap, err := n.Prices(&types.RawPrices{
		USD:    map[string]float64{"ETH": 3000, "usdc": 1, "LINK": 0, "UNI": -2},
		Source: types.PriceSourceLive,
	})
	require.NoError(t, err)

	assert.Equal(t, 3000.0, snap.NativeUnitPriceUSD)
	assert.Equal(t, types.PriceSourceLive, snap.Source)
	assert.Equal(t, map[string]float64{"USDC": 1}, snap.TokenUnitPricesUSD)
}

func TestPrices_MissingNativeUsesFallback(t *testing.T) {
	n := New(2500)

	snap, err := n.Prices(&types.RawPrices{USD: map[string]float64{"DAI": 1}, Source: types.PriceSourceLive})
	require.NoError(t, err)
	assert.Equal(t, 2500.0, snap.NativeUnitPriceUSD)
	assert.Equal(t, types.PriceSourceFallback, snap.Source, "native price came from the fixed table")
	assert.Equal(t, map[string]float64{"DAI": 1}, snap.TokenUnitPricesUSD)

	zero, err := n.Prices(&types.RawPrices{USD: map[string]float64{"ETH": 0, "DAI": 1}, Source: types.PriceSourceLive})
	require.NoError(t, err)
	assert.Equal(t, types.PriceSourceFallback, zero.Source)

	empty, err := n.Prices(nil)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, empty.NativeUnitPriceUSD)
	assert.Equal(t, types.PriceSourceFallback, empty.Source)
	assert.Empty(t, empty.TokenUnitPricesUSD)
}

func TestPrices_NonFiniteIsDataFormatError(t *testing.T) {
	n := New(2500)

	_, err := n.Prices(&types.RawPrices{USD: map[string]float64{"ETH": math.NaN()}})
	assert.True(t, errors.IsDataFormat(err))

	_, err = n.Prices(&types.RawPrices{USD: map[string]float64{"WBTC": math.Inf(1)}})
	assert.True(t, errors.IsDataFormat(err))
}

func TestNormalize_StopsAtAccountError(t *testing.T) {
	n := New(2500)

	account, prices, err := n.Normalize(&types.RawAccountData{}, nil, now)
	assert.Nil(t, account)
	assert.Nil(t, prices)
	assert.True(t, errors.IsDataFormat(err))
}
