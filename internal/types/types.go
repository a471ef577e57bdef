// Package types provides common type definitions for the DAO credit scanner.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// NativeSymbol is the symbol of the chain's base currency
const NativeSymbol = "ETH"

// DefaultTokenDecimals is used when a token transfer does not declare its decimals
const DefaultTokenDecimals = 18

// RecentActivityWindow is the trailing window used for recent transaction counts
const RecentActivityWindow = 30 * 24 * time.Hour

// RiskTier represents one of the four discrete risk buckets
type RiskTier string

const (
	// TierLow represents scores of 80 and above
	TierLow RiskTier = "Low"
	// TierMediumLow represents scores from 65 to 79
	TierMediumLow RiskTier = "Medium-Low"
	// TierMedium represents scores from 45 to 64
	TierMedium RiskTier = "Medium"
	// TierHigh represents scores below 45
	TierHigh RiskTier = "High"
)

// RiskBucket represents the per-holding risk classification
type RiskBucket string

const (
	BucketLow    RiskBucket = "low"
	BucketMedium RiskBucket = "medium"
	BucketHigh   RiskBucket = "high"
)

// PriceSource records whether prices came from the market-data service or the fallback table
type PriceSource string

const (
	// PriceSourceLive means prices were fetched from the price provider
	PriceSourceLive PriceSource = "live"
	// PriceSourceFallback means the fixed fallback table was used
	PriceSourceFallback PriceSource = "fallback"
)

// RawTransaction is one entry of the provider's normal transaction list.
// Numeric fields arrive as decimal strings.
type RawTransaction struct {
	Hash      string `json:"hash"`
	TimeStamp string `json:"timeStamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
}

// RawTokenTransfer is one ERC-20 transfer event as reported by the provider
type RawTokenTransfer struct {
	ContractAddress string `json:"contractAddress"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	Value           string `json:"value"`
	TimeStamp       string `json:"timeStamp"`
}

// RawAccountData is the unvalidated account payload returned by a chain-data provider
type RawAccountData struct {
	Address        string             `json:"address"`
	Balance        string             `json:"balance"` // wei
	Transactions   []RawTransaction   `json:"transactions"`
	TokenTransfers []RawTokenTransfer `json:"tokenTransfers"`
}

// RawPrices is the unvalidated price payload, USD prices keyed by upper-case symbol.
// Symbols the provider does not support are absent.
type RawPrices struct {
	USD    map[string]float64 `json:"usd"`
	Source PriceSource        `json:"source"`
}

// TokenBalance is one token position of an account, keyed by symbol
type TokenBalance struct {
	Symbol          string          `json:"symbol"`
	ContractAddress string          `json:"contractAddress"`
	RawBalance      decimal.Decimal `json:"rawBalance"` // integer amount in the token's smallest unit
	Decimals        int             `json:"decimals"`
}

// Amount returns the balance scaled by the token's decimals
func (t TokenBalance) Amount() decimal.Decimal {
	return t.RawBalance.Shift(int32(-t.Decimals)) // #nosec G115 - decimals are validated by the normalizer
}

// AccountSnapshot is the normalized view of an account at one point in time.
//
// The transaction counts and FirstActivityTimestamp are derived from one page of
// the provider's newest-first transaction list (ETHERSCAN_PAGE_SIZE, 100 by
// default). For busier accounts TransactionCountTotal saturates at the page size
// and FirstActivityTimestamp is the oldest transaction on that page, so History
// and Maturity are lower bounds.
type AccountSnapshot struct {
	Address                      string          `json:"address"`
	NativeBalance                decimal.Decimal `json:"nativeBalance"`
	TokenBalances                []TokenBalance  `json:"tokenBalances"`
	TransactionCountTotal        int64           `json:"transactionCountTotal"`
	TransactionCountRecentWindow int64           `json:"transactionCountRecentWindow"`
	FirstActivityTimestamp       *time.Time      `json:"firstActivityTimestamp,omitempty"`
	ObservedAt                   time.Time       `json:"observedAt"`
}

// PriceSnapshot is the normalized view of market prices
type PriceSnapshot struct {
	NativeUnitPriceUSD float64            `json:"nativeUnitPriceUsd"`
	TokenUnitPricesUSD map[string]float64 `json:"tokenUnitPricesUsd"`
	Source             PriceSource        `json:"source"`
}

// TokenPrice returns the USD price for a symbol and whether the symbol is priced
func (p *PriceSnapshot) TokenPrice(symbol string) (float64, bool) {
	if p == nil || p.TokenUnitPricesUSD == nil {
		return 0, false
	}
	price, ok := p.TokenUnitPricesUSD[symbol]
	if !ok || price <= 0 {
		return 0, false
	}
	return price, true
}

// ComponentScores holds the five independent score dimensions, each in [0,100]
type ComponentScores struct {
	Treasury        int `json:"treasury"`
	Activity        int `json:"activity"`
	Diversification int `json:"diversification"`
	Maturity        int `json:"maturity"`
	History         int `json:"history"`
}

// CreditDecision is the financing recommendation derived from the risk tier
type CreditDecision struct {
	Approved        bool    `json:"approved"`
	Label           string  `json:"label"`
	Rationale       string  `json:"rationale"`
	MaxAdvanceRatio float64 `json:"maxAdvanceRatio"`
}

// HoldingView is one valued, ranked position of the holdings list
type HoldingView struct {
	Symbol                string     `json:"symbol"`
	ContractAddress       string     `json:"contractAddress,omitempty"`
	Amount                float64    `json:"amount"`
	PriceUSD              float64    `json:"priceUsd"`
	ValueUSD              float64    `json:"valueUsd"`
	PercentageOfPortfolio int        `json:"percentageOfPortfolio"`
	IsStable              bool       `json:"isStable"`
	RiskBucket            RiskBucket `json:"riskBucket"`
}

// PortfolioMetrics summarises the valuation used by the scorers
type PortfolioMetrics struct {
	AssetCount           int     `json:"assetCount"`
	NativeRatio          float64 `json:"nativeRatio"`
	DiversificationRatio float64 `json:"diversificationRatio"`
}

// RiskFactors flags individual weaknesses behind the score
type RiskFactors struct {
	HighNativeConcentration bool `json:"highNativeConcentration"`
	LowActivity             bool `json:"lowActivity"`
	NewWallet               bool `json:"newWallet"`
	SmallTreasury           bool `json:"smallTreasury"`
	LimitedDiversification  bool `json:"limitedDiversification"`
}

// ActivityProfile holds the descriptive labels derived from transaction activity
type ActivityProfile struct {
	ActivityLevel      string `json:"activityLevel"`
	LastActivity       string `json:"lastActivity"`
	TreasuryStability  string `json:"treasuryStability"`
	TotalTransactions  int64  `json:"totalTransactions"`
	RecentTransactions int64  `json:"recentTransactions"`
	WalletSince        string `json:"walletSince,omitempty"` // YYYY-MM-DD, empty when unknown
}

// PortfolioComposition describes how value is spread across holdings
type PortfolioComposition struct {
	TotalAssets             int                `json:"totalAssets"`
	StablecoinRatio         float64            `json:"stablecoinRatio"`
	TopHoldingConcentration int                `json:"topHoldingConcentration"`
	RiskDistribution        map[RiskBucket]int `json:"riskDistribution"`
}

// RiskResult is the derived, cacheable outcome of one analysis
type RiskResult struct {
	Subject           string               `json:"subject"`
	FinalScore        int                  `json:"finalScore"`
	RiskTier          RiskTier             `json:"riskTier"`
	Breakdown         ComponentScores      `json:"breakdown"`
	PortfolioValueUSD float64              `json:"portfolioValueUsd"`
	NativeValueUSD    float64              `json:"nativeValueUsd"`
	TokenValueUSD     float64              `json:"tokenValueUsd"`
	NativeBalance     float64              `json:"nativeBalance"`
	Holdings          []HoldingView        `json:"holdings"`
	CreditDecision    CreditDecision       `json:"creditDecision"`
	Metrics           PortfolioMetrics     `json:"metrics"`
	RiskFactors       RiskFactors          `json:"riskFactors"`
	Activity          ActivityProfile      `json:"activity"`
	Composition       PortfolioComposition `json:"composition"`
	PriceSource       PriceSource          `json:"priceSource"`
	ComputedAt        time.Time            `json:"computedAt"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
