package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scor-analyzer/internal/circuitbreaker"
	"github.com/scor-analyzer/internal/config"
	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/types"
)

func newTestCoinGecko(t *testing.T, handler http.HandlerFunc) *CoinGeckoClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewCoinGeckoClient(config.PricesConfig{
		BaseURL: server.URL,
		APIKey:  "demo",
		Timeout: 5 * time.Second,
	}, logging.Nop())
}

func TestCoinGeckoClient_FetchPrices(t *testing.T) {
	client := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "demo", r.Header.Get("x-cg-demo-api-key"))

		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		assert.ElementsMatch(t, []string{"ethereum", "usd-coin", "chainlink"}, ids)

		writeJSON(w, map[string]map[string]float64{
			"ethereum":  {"usd": 3100.5},
			"usd-coin":  {"usd": 0.999},
			"chainlink": {"eur": 14},
		})
	})

	prices, err := client.FetchPrices(context.Background(), []string{"eth", "USDC", "LINK", "MEME"})
	require.NoError(t, err)

	assert.Equal(t, types.PriceSourceLive, prices.Source)
	assert.Equal(t, map[string]float64{"ETH": 3100.5, "USDC": 0.999}, prices.USD)
}

func TestCoinGeckoClient_NoSupportedSymbolsSkipsRequest(t *testing.T) {
	client := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	prices, err := client.FetchPrices(context.Background(), []string{"MEME"})
	require.NoError(t, err)
	assert.Empty(t, prices.USD)
}

func TestCoinGeckoClient_Failures(t *testing.T) {
	client := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchPrices(context.Background(), []string{"ETH"})
	assert.True(t, errors.IsUpstreamUnavailable(err))
	assert.Equal(t, int64(1), client.GetHealth().FailedReqs)
}

func TestCoinGeckoClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	client := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 10; i++ {
		_, err := client.FetchPrices(context.Background(), []string{"ETH"})
		assert.True(t, errors.IsUpstreamUnavailable(err))
	}

	assert.Equal(t, circuitbreaker.StateOpen, client.BreakerStats().State)
	assert.Equal(t, int(circuitbreaker.DefaultConfig("x").MaxFailures), calls)
}

func TestCoinGeckoClient_MalformedBody(t *testing.T) {
	client := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["not","an","object"]`))
	})

	_, err := client.FetchPrices(context.Background(), []string{"ETH"})
	assert.True(t, errors.IsDataFormat(err))
}

func TestFallbackPrices(t *testing.T) {
	prices := FallbackPrices(2500)
	assert.Equal(t, types.PriceSourceFallback, prices.Source)
	assert.Equal(t, 2500.0, prices.USD["ETH"])
	assert.Equal(t, 1.0, prices.USD["USDC"])
	assert.Equal(t, 45000.0, prices.USD["WBTC"])

	// callers get their own copy
	prices.USD["USDC"] = 0
	assert.Equal(t, 1.0, FallbackPrices(2500).USD["USDC"])
}

func TestSupportedSymbols(t *testing.T) {
	symbols := SupportedSymbols()
	assert.Contains(t, symbols, "ETH")
	assert.Contains(t, symbols, "ENS")
	assert.Len(t, symbols, 9)
}
