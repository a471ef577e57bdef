// Package normalize turns raw provider payloads into validated account and
// price snapshots. It performs no I/O.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/types"
)

// maxTokenDecimals bounds declared decimals; anything above is not a real ERC-20
const maxTokenDecimals = 77

// Normalizer builds snapshots from raw provider data
type Normalizer struct {
	// FallbackNativeUSD is used when the price payload has no usable native price
	FallbackNativeUSD float64
	// Window is the trailing window for recent transaction counts
	Window time.Duration
}

// New creates a normalizer with the standard 30-day recent window
func New(fallbackNativeUSD float64) *Normalizer {
	return &Normalizer{
		FallbackNativeUSD: fallbackNativeUSD,
		Window:            types.RecentActivityWindow,
	}
}

// Normalize validates both payloads and returns the account and price snapshots observed at now
func (n *Normalizer) Normalize(raw *types.RawAccountData, prices *types.RawPrices, now time.Time) (*types.AccountSnapshot, *types.PriceSnapshot, error) {
	account, err := n.Account(raw, now)
	if err != nil {
		return nil, nil, err
	}
	priceSnap, err := n.Prices(prices)
	if err != nil {
		return nil, nil, err
	}
	return account, priceSnap, nil
}

// Account validates raw account data.
// Token transfers are accumulated per upper-cased symbol; the first-seen contract wins.
func (n *Normalizer) Account(raw *types.RawAccountData, now time.Time) (*types.AccountSnapshot, error) {
	if raw == nil {
		return nil, errors.NewDataFormatError("account", "missing payload")
	}

	native, err := parseWei(raw.Balance)
	if err != nil {
		return nil, err
	}

	snap := &types.AccountSnapshot{
		Address:               strings.ToLower(raw.Address),
		NativeBalance:         native,
		TokenBalances:         []types.TokenBalance{},
		TransactionCountTotal: int64(len(raw.Transactions)),
		ObservedAt:            now,
	}

	cutoff := now.Add(-n.window())
	var first *time.Time
	for i, tx := range raw.Transactions {
		ts, err := parseUnix(tx.TimeStamp)
		if err != nil {
			return nil, errors.NewDataFormatError("transactions["+strconv.Itoa(i)+"].timeStamp", err.Error())
		}
		if ts.After(cutoff) {
			snap.TransactionCountRecentWindow++
		}
		if first == nil || ts.Before(*first) {
			t := ts
			first = &t
		}
	}
	snap.FirstActivityTimestamp = first

	balances, err := accumulateTokens(raw.TokenTransfers)
	if err != nil {
		return nil, err
	}
	snap.TokenBalances = balances

	return snap, nil
}

// Prices validates a raw price payload. A nil payload yields an empty fallback
// snapshot. A payload without a usable native price is reported as fallback
// too, since the native price then comes from the fixed table.
func (n *Normalizer) Prices(raw *types.RawPrices) (*types.PriceSnapshot, error) {
	snap := &types.PriceSnapshot{
		NativeUnitPriceUSD: n.FallbackNativeUSD,
		TokenUnitPricesUSD: map[string]float64{},
		Source:             types.PriceSourceFallback,
	}
	if raw == nil {
		return snap, nil
	}
	if raw.Source != "" {
		snap.Source = raw.Source
	}

	nativePriced := false
	for symbol, price := range raw.USD {
		if math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, errors.NewDataFormatError("prices."+symbol, "not a finite number")
		}
		if price <= 0 {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(symbol))
		if sym == types.NativeSymbol {
			snap.NativeUnitPriceUSD = price
			nativePriced = true
			continue
		}
		snap.TokenUnitPricesUSD[sym] = price
	}
	if !nativePriced {
		snap.Source = types.PriceSourceFallback
	}

	return snap, nil
}

func (n *Normalizer) window() time.Duration {
	if n.Window <= 0 {
		return types.RecentActivityWindow
	}
	return n.Window
}

func accumulateTokens(transfers []types.RawTokenTransfer) ([]types.TokenBalance, error) {
	balances := []types.TokenBalance{}
	index := map[string]int{}

	for i, tr := range transfers {
		symbol := strings.ToUpper(strings.TrimSpace(tr.TokenSymbol))
		if symbol == "" {
			// unidentifiable tokens cannot be priced
			continue
		}

		field := "tokenTransfers[" + strconv.Itoa(i) + "]"
		value, err := parseInteger(tr.Value)
		if err != nil {
			return nil, errors.NewDataFormatError(field+".value", err.Error())
		}
		decimals, err := parseDecimals(tr.TokenDecimal)
		if err != nil {
			return nil, errors.NewDataFormatError(field+".tokenDecimal", err.Error())
		}

		pos, seen := index[symbol]
		if !seen {
			index[symbol] = len(balances)
			balances = append(balances, types.TokenBalance{
				Symbol:          symbol,
				ContractAddress: strings.ToLower(tr.ContractAddress),
				RawBalance:      value,
				Decimals:        decimals,
			})
			continue
		}

		// express the new amount in the first-seen token's units
		existing := &balances[pos]
		amount := value.Shift(int32(existing.Decimals - decimals)) // #nosec G115 - both bounded by maxTokenDecimals
		existing.RawBalance = existing.RawBalance.Add(amount)
	}

	return balances, nil
}

func parseWei(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, errors.NewDataFormatError("balance", "missing")
	}
	wei, err := parseInteger(s)
	if err != nil {
		return decimal.Zero, errors.NewDataFormatError("balance", err.Error())
	}
	return wei.Shift(-types.DefaultTokenDecimals), nil
}

// parseInteger parses a non-negative base-10 integer of arbitrary size
func parseInteger(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errMissing
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return decimal.Zero, errNotNumeric
	}
	if d.IsNegative() {
		return decimal.Zero, errNegative
	}
	return d, nil
}

func parseDecimals(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.DefaultTokenDecimals, nil
	}
	d, err := strconv.Atoi(s)
	if err != nil {
		return 0, errNotNumeric
	}
	if d < 0 || d > maxTokenDecimals {
		return 0, errOutOfRange
	}
	return d, nil
}

func parseUnix(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errMissing
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, errNotNumeric
	}
	if sec < 0 {
		return time.Time{}, errNegative
	}
	return time.Unix(sec, 0).UTC(), nil
}
