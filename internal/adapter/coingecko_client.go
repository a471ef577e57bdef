package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/scor-analyzer/internal/circuitbreaker"
	"github.com/scor-analyzer/internal/config"
	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/types"
)

const coingeckoProvider = "coingecko"

// coinIDs maps supported symbols to CoinGecko coin ids
var coinIDs = map[string]string{
	"ETH":  "ethereum",
	"USDC": "usd-coin",
	"USDT": "tether",
	"DAI":  "dai",
	"WBTC": "wrapped-bitcoin",
	"LINK": "chainlink",
	"UNI":  "uniswap",
	"AAVE": "aave",
	"ENS":  "ethereum-name-service",
}

// SupportedSymbols returns the symbols the price provider can quote, sorted
func SupportedSymbols() []string {
	symbols := make([]string, 0, len(coinIDs))
	for symbol := range coinIDs {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// CoinGeckoClient fetches USD prices from the CoinGecko simple price endpoint
type CoinGeckoClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *logging.Logger
	health  *healthTracker
}

// NewCoinGeckoClient creates a price client guarded by a circuit breaker
func NewCoinGeckoClient(cfg config.PricesConfig, logger *logging.Logger) *CoinGeckoClient {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger = logger.WithComponent(coingeckoProvider)

	return &CoinGeckoClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig(coingeckoProvider), logger),
		logger:  logger,
		health:  newHealthTracker(coingeckoProvider),
	}
}

// Name identifies the provider
func (c *CoinGeckoClient) Name() string { return coingeckoProvider }

// GetHealth returns the request history of this client
func (c *CoinGeckoClient) GetHealth() *ProviderHealth { return c.health.GetHealth() }

// BreakerStats returns the state of the circuit breaker guarding this client
func (c *CoinGeckoClient) BreakerStats() *circuitbreaker.Stats { return c.breaker.GetStats() }

// FetchPrices returns USD prices keyed by upper-case symbol. Unsupported symbols are absent.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, symbols []string) (*types.RawPrices, error) {
	idToSymbol := map[string]string{}
	for _, s := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if id, ok := coinIDs[sym]; ok {
			idToSymbol[id] = sym
		}
	}

	prices := &types.RawPrices{USD: map[string]float64{}, Source: types.PriceSourceLive}
	if len(idToSymbol) == 0 {
		return prices, nil
	}

	ids := make([]string, 0, len(idToSymbol))
	for id := range idToSymbol {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")

	start := time.Now()
	var payload map[string]map[string]float64
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		body, err := c.get(ctx, "/simple/price", params)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return errors.NewDataFormatError("prices", "expected an object of coin prices")
		}
		return nil
	})
	c.health.record(start, err)
	if err != nil {
		if !errors.IsDataFormat(err) {
			err = asUpstream(err)
		}
		return nil, err
	}

	for id, quote := range payload {
		sym, ok := idToSymbol[id]
		if !ok {
			continue
		}
		if usd, ok := quote["usd"]; ok {
			prices.USD[sym] = usd
		}
	}

	c.logger.WithField("priced", len(prices.USD)).Debug("Fetched prices")
	return prices, nil
}

// Ping checks the CoinGecko ping endpoint
func (c *CoinGeckoClient) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/ping", nil)
	return err
}

func (c *CoinGeckoClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewInternalError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewUpstreamUnavailableError(coingeckoProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError(coingeckoProvider, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewUpstreamStatusError(coingeckoProvider, resp.StatusCode)
	}
	return body, nil
}

func asUpstream(err error) error {
	if errors.IsUpstreamUnavailable(err) {
		return err
	}
	return errors.NewUpstreamUnavailableError(coingeckoProvider, err)
}
