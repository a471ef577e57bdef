package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/scor-analyzer/internal/config"
	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/ratelimit"
	"github.com/scor-analyzer/internal/retry"
	"github.com/scor-analyzer/internal/types"
)

const etherscanProvider = "etherscan"

// Messages Etherscan uses for a valid, empty result
var etherscanEmptyMessages = []string{"No transactions found", "No records found"}

// EtherscanClient fetches balances, transaction lists and token transfers from the Etherscan API
type EtherscanClient struct {
	apiKey   string
	baseURL  string
	chainID  int
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter // free tier allows 3 req/sec
	retry    *retry.RetryConfig
	logger   *logging.Logger
	health   *healthTracker
	budget   CallBudget
}

// CallBudget is a call allowance shared with other processes using the same API key
type CallBudget interface {
	Wait(ctx context.Context, priority ratelimit.Priority) error
}

// etherscanResponse is the envelope shared by every account endpoint
type etherscanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// EtherscanTransaction represents a normal transaction from the txlist endpoint
type EtherscanTransaction struct {
	Hash      string `json:"hash"`
	TimeStamp string `json:"timeStamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	IsError   string `json:"isError"`
}

// EtherscanTokenTransfer represents an ERC20 token transfer from the tokentx endpoint
type EtherscanTokenTransfer struct {
	Hash            string `json:"hash"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	ContractAddress string `json:"contractAddress"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
}

// NewEtherscanClient creates a new Etherscan API client
func NewEtherscanClient(cfg config.EtherscanConfig, logger *logging.Logger) *EtherscanClient {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retryCfg := retry.DefaultRetryConfig()
	// an exhausted call budget has already waited its maximum
	retryCfg.Retryable = func(err error) bool {
		return errors.IsRetryable(err) && !errors.IsRateLimited(err)
	}

	return &EtherscanClient{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		chainID:  cfg.ChainID,
		pageSize: pageSize,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retry:    retryCfg,
		logger:   logger.WithComponent(etherscanProvider),
		health:   newHealthTracker(etherscanProvider),
	}
}

// SetRetryConfig replaces the retry policy. Retryable is kept when the new config has none.
func (c *EtherscanClient) SetRetryConfig(cfg *retry.RetryConfig) {
	if cfg.Retryable == nil {
		cfg.Retryable = c.retry.Retryable
	}
	c.retry = cfg
}

// SetBudget makes every request draw on b in addition to the local limiter
func (c *EtherscanClient) SetBudget(b CallBudget) {
	c.budget = b
}

// Name identifies the provider
func (c *EtherscanClient) Name() string { return etherscanProvider }

// GetHealth returns the request history of this client
func (c *EtherscanClient) GetHealth() *ProviderHealth { return c.health.GetHealth() }

// FetchAccountData fetches the native balance, the most recent transactions and
// the most recent token transfers concurrently.
func (c *EtherscanClient) FetchAccountData(ctx context.Context, address string) (*types.RawAccountData, error) {
	start := time.Now()
	data := &types.RawAccountData{Address: address}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balance, err := c.fetchBalance(gctx, address)
		data.Balance = balance
		return err
	})
	g.Go(func() error {
		txs, err := c.fetchTransactions(gctx, address)
		data.Transactions = txs
		return err
	})
	g.Go(func() error {
		transfers, err := c.fetchTokenTransfers(gctx, address)
		data.TokenTransfers = transfers
		return err
	})

	err := g.Wait()
	c.health.record(start, err)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"address":        address,
		"transactions":   len(data.Transactions),
		"tokenTransfers": len(data.TokenTransfers),
		"duration":       time.Since(start).String(),
	}).Debug("Fetched account data")

	return data, nil
}

// Ping checks that the API answers with a current block number
func (c *EtherscanClient) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_blockNumber")

	body, err := c.get(ratelimit.WithPriority(ctx, ratelimit.PriorityLow), params)
	if errors.IsRateLimited(err) {
		// an exhausted shared budget says nothing about reachability
		c.logger.Debug("Skipping ping, call budget exhausted")
		return nil
	}
	if err != nil {
		return err
	}
	var resp struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || !strings.HasPrefix(resp.Result, "0x") {
		return errors.NewUpstreamUnavailableError(etherscanProvider, fmt.Errorf("unexpected block number response"))
	}
	return nil
}

func (c *EtherscanClient) fetchBalance(ctx context.Context, address string) (string, error) {
	params := c.accountParams("balance", address)
	params.Set("tag", "latest")

	resp, err := c.call(ctx, params)
	if err != nil {
		return "", err
	}
	if resp.Status != "1" {
		return "", c.statusError("balance", resp)
	}

	var balance string
	if err := json.Unmarshal(resp.Result, &balance); err != nil {
		return "", errors.NewDataFormatError("balance", "expected a decimal string")
	}
	return balance, nil
}

// fetchTransactions returns the newest page of the account's transactions only
func (c *EtherscanClient) fetchTransactions(ctx context.Context, address string) ([]types.RawTransaction, error) {
	params := c.listParams("txlist", address)
	params.Set("startblock", "0")
	params.Set("endblock", "99999999")

	var list []EtherscanTransaction
	if err := c.fetchList(ctx, "txlist", params, &list); err != nil {
		return nil, err
	}

	txs := make([]types.RawTransaction, 0, len(list))
	for _, tx := range list {
		txs = append(txs, types.RawTransaction{
			Hash:      tx.Hash,
			TimeStamp: tx.TimeStamp,
			From:      tx.From,
			To:        tx.To,
			Value:     tx.Value,
		})
	}
	return txs, nil
}

func (c *EtherscanClient) fetchTokenTransfers(ctx context.Context, address string) ([]types.RawTokenTransfer, error) {
	var list []EtherscanTokenTransfer
	if err := c.fetchList(ctx, "tokentx", c.listParams("tokentx", address), &list); err != nil {
		return nil, err
	}

	transfers := make([]types.RawTokenTransfer, 0, len(list))
	for _, tr := range list {
		transfers = append(transfers, types.RawTokenTransfer{
			ContractAddress: tr.ContractAddress,
			TokenSymbol:     tr.TokenSymbol,
			TokenDecimal:    tr.TokenDecimal,
			Value:           tr.Value,
			TimeStamp:       tr.TimeStamp,
		})
	}
	return transfers, nil
}

// fetchList decodes a list endpoint into out. "No transactions found" leaves out empty.
func (c *EtherscanClient) fetchList(ctx context.Context, action string, params url.Values, out interface{}) error {
	resp, err := c.call(ctx, params)
	if err != nil {
		return err
	}

	if resp.Status != "1" {
		if isEmptyMessage(resp.Message) {
			return nil
		}
		return c.statusError(action, resp)
	}

	// some endpoints return a string result on empty
	if len(resp.Result) > 0 && resp.Result[0] == '"' {
		return nil
	}

	if err := json.Unmarshal(resp.Result, out); err != nil {
		return errors.NewDataFormatError(action, "expected a list of records")
	}
	return nil
}

func (c *EtherscanClient) accountParams(action, address string) url.Values {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", action)
	params.Set("address", address)
	return params
}

func (c *EtherscanClient) listParams(action, address string) url.Values {
	params := c.accountParams(action, address)
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(c.pageSize))
	params.Set("sort", "desc")
	return params
}

// call performs a throttled, retried request and decodes the response envelope
func (c *EtherscanClient) call(ctx context.Context, params url.Values) (*etherscanResponse, error) {
	var resp *etherscanResponse

	result := retry.WithExponentialBackoff(ctx, c.retry, func(ctx context.Context, attempt int) error {
		body, err := c.get(ctx, params)
		if err != nil {
			return err
		}

		var envelope etherscanResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return errors.NewDataFormatError(params.Get("action"), "response is not JSON")
		}

		// NOTOK covers throttling and transient backend errors
		if envelope.Status != "1" && envelope.Message == "NOTOK" && isRateLimited(envelope.Result) {
			return errors.NewUpstreamUnavailableError(etherscanProvider, fmt.Errorf("rate limited: %s", resultText(envelope.Result)))
		}

		resp = &envelope
		return nil
	})

	if err := result.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// get performs one throttled GET and returns the body of a 200 response
func (c *EtherscanClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if c.budget != nil {
		if err := c.budget.Wait(ctx, ratelimit.PriorityFrom(ctx)); err != nil {
			return nil, err
		}
	}

	params.Set("chainid", strconv.Itoa(c.chainID))
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.NewInternalError("failed to create request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewUpstreamUnavailableError(etherscanProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError(etherscanProvider, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewUpstreamStatusError(etherscanProvider, resp.StatusCode)
	}

	return body, nil
}

func (c *EtherscanClient) statusError(action string, resp *etherscanResponse) error {
	c.logger.WithFields(map[string]interface{}{
		"action":  action,
		"status":  resp.Status,
		"message": resp.Message,
	}).Warn("Etherscan returned a non-success status")

	err := errors.NewUpstreamUnavailableError(etherscanProvider, fmt.Errorf("%s: %s", action, resp.Message))
	err.Details["action"] = action
	return err
}

func isEmptyMessage(message string) bool {
	for _, m := range etherscanEmptyMessages {
		if message == m {
			return true
		}
	}
	return false
}

func isRateLimited(result json.RawMessage) bool {
	text := strings.ToLower(resultText(result))
	return strings.Contains(text, "rate limit") || strings.Contains(text, "free api access")
}

func resultText(result json.RawMessage) string {
	var s string
	if err := json.Unmarshal(result, &s); err == nil {
		return s
	}
	return string(result)
}
