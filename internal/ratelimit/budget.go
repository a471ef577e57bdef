// Package ratelimit coordinates the chain-data provider's call budget across
// processes that share one API key.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scor-analyzer/internal/config"
	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/logging"
)

// Default budget configuration values.
const (
	DefaultTotalBudget    = 3 // calls per window, the Etherscan free tier
	DefaultReservedBudget = 2
	DefaultWindowSize     = time.Second
	DefaultMaxWait        = 5 * time.Second
	DefaultKeyPrefix      = "scor_budget"
)

// Priority selects the pool a call is charged to.
type Priority int

const (
	// PriorityHigh is for analysis fetches (reserved pool).
	PriorityHigh Priority = iota
	// PriorityLow is for health probes and other best-effort calls (shared pool).
	PriorityLow
)

// String returns a string representation of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

type priorityKey struct{}

// WithPriority tags outgoing provider calls made under ctx with p
func WithPriority(ctx context.Context, p Priority) context.Context {
	return context.WithValue(ctx, priorityKey{}, p)
}

// PriorityFrom returns the priority carried by ctx, PriorityHigh when none is set
func PriorityFrom(ctx context.Context) Priority {
	if p, ok := ctx.Value(priorityKey{}).(Priority); ok {
		return p
	}
	return PriorityHigh
}

// consumeScript checks the total and pool counters of one window and
// increments both only when neither would exceed its budget.
var consumeScript = redis.NewScript(`
	local totalUsed = tonumber(redis.call('GET', KEYS[1]) or '0')
	local poolUsed = tonumber(redis.call('GET', KEYS[2]) or '0')
	local n = tonumber(ARGV[1])

	if totalUsed + n > tonumber(ARGV[2]) or poolUsed + n > tonumber(ARGV[3]) then
		return {0, totalUsed, poolUsed}
	end

	redis.call('INCRBY', KEYS[1], n)
	redis.call('EXPIRE', KEYS[1], ARGV[4])
	redis.call('INCRBY', KEYS[2], n)
	redis.call('EXPIRE', KEYS[2], ARGV[4])
	return {1, totalUsed + n, poolUsed + n}
`)

// BudgetConfig holds configuration for the call budget.
type BudgetConfig struct {
	// Redis is shared by every process drawing on the budget. Required.
	Redis redis.Cmdable

	// KeyPrefix namespaces the window counters. Default: scor_budget.
	KeyPrefix string

	// TotalBudget is the number of calls allowed per window. Default: 3.
	TotalBudget int

	// ReservedBudget is the part of TotalBudget only high priority calls may use. Default: 2.
	ReservedBudget int

	// WindowSize is the fixed window duration. Default: 1s.
	WindowSize time.Duration

	// MaxWait bounds how long Wait blocks before giving up. Default: 5s.
	MaxWait time.Duration
}

// Validate checks if the configuration is valid.
func (c *BudgetConfig) Validate() error {
	if c.Redis == nil {
		return fmt.Errorf("redis client is required")
	}
	if c.TotalBudget < 0 || c.ReservedBudget < 0 {
		return fmt.Errorf("budgets cannot be negative")
	}
	total, reserved := c.budgets()
	if reserved > total {
		return fmt.Errorf("reserved budget (%d) cannot exceed total budget (%d)", reserved, total)
	}
	return nil
}

func (c *BudgetConfig) budgets() (total, reserved int) {
	total, reserved = c.TotalBudget, c.ReservedBudget
	if total == 0 {
		total = DefaultTotalBudget
	}
	if reserved == 0 {
		reserved = DefaultReservedBudget
		if reserved > total {
			reserved = total
		}
	}
	return total, reserved
}

// EtherscanBudgetConfig derives the shared budget of an Etherscan API key
func EtherscanBudgetConfig(cfg config.EtherscanConfig, rdb redis.Cmdable) *BudgetConfig {
	total := int(math.Ceil(cfg.RequestsPerSecond))
	if total < 1 {
		total = DefaultTotalBudget
	}
	// keep one call per window for best-effort traffic
	reserved := cfg.BudgetReserved
	if reserved >= total && total > 1 {
		reserved = total - 1
	}
	return &BudgetConfig{
		Redis:          rdb,
		KeyPrefix:      DefaultKeyPrefix + ":etherscan",
		TotalBudget:    total,
		ReservedBudget: reserved,
		MaxWait:        cfg.BudgetMaxWait,
	}
}

// Usage is the consumption of the current window
type Usage struct {
	TotalUsed      int       `json:"totalUsed"`
	ReservedUsed   int       `json:"reservedUsed"`
	SharedUsed     int       `json:"sharedUsed"`
	TotalBudget    int       `json:"totalBudget"`
	ReservedBudget int       `json:"reservedBudget"`
	SharedBudget   int       `json:"sharedBudget"`
	WindowStart    time.Time `json:"windowStart"`
}

// Budget is a fixed-window call budget kept in Redis, split into a reserved
// pool for high priority calls and a shared pool for everything else.
type Budget struct {
	redis          redis.Cmdable
	prefix         string
	totalBudget    int
	reservedBudget int
	sharedBudget   int
	windowSize     time.Duration
	maxWait        time.Duration
	logger         *logging.Logger
	now            func() time.Time
}

// NewBudget creates a budget from cfg
func NewBudget(cfg *BudgetConfig, logger *logging.Logger) (*Budget, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	total, reserved := cfg.budgets()
	b := &Budget{
		redis:          cfg.Redis,
		prefix:         cfg.KeyPrefix,
		totalBudget:    total,
		reservedBudget: reserved,
		sharedBudget:   total - reserved,
		windowSize:     cfg.WindowSize,
		maxWait:        cfg.MaxWait,
		logger:         logger.WithComponent("call_budget"),
		now:            time.Now,
	}
	if b.prefix == "" {
		b.prefix = DefaultKeyPrefix
	}
	if b.windowSize <= 0 {
		b.windowSize = DefaultWindowSize
	}
	if b.maxWait <= 0 {
		b.maxWait = DefaultMaxWait
	}
	return b, nil
}

func (b *Budget) window() time.Time {
	return b.now().Truncate(b.windowSize)
}

func (b *Budget) keys(window time.Time) (total, reserved, shared string) {
	ts := strconv.FormatInt(window.UnixMilli(), 10)
	return b.prefix + ":total:" + ts, b.prefix + ":reserved:" + ts, b.prefix + ":shared:" + ts
}

// TryConsume charges n calls to the pool of the given priority. When the
// window is exhausted it returns false and the time until the next window.
func (b *Budget) TryConsume(ctx context.Context, n int, priority Priority) (bool, time.Duration, error) {
	if n <= 0 {
		return true, 0, nil
	}

	window := b.window()
	totalKey, reservedKey, sharedKey := b.keys(window)
	poolKey, poolBudget := reservedKey, b.reservedBudget
	if priority != PriorityHigh {
		poolKey, poolBudget = sharedKey, b.sharedBudget
	}

	ttl := int(2 * b.windowSize / time.Second)
	if ttl < 1 {
		ttl = 1
	}

	result, err := consumeScript.Run(ctx, b.redis, []string{totalKey, poolKey}, n, b.totalBudget, poolBudget, ttl).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if result[0] == 1 {
		return true, 0, nil
	}
	return false, b.untilNextWindow(window), nil
}

func (b *Budget) untilNextWindow(window time.Time) time.Duration {
	wait := window.Add(b.windowSize).Sub(b.now())
	if wait < 0 {
		wait = 0
	}
	return wait + time.Millisecond
}

// Wait blocks until one call is granted to the priority's pool. A Redis
// failure lets the call through; the caller's local limiter still applies.
// It gives up with a rate limit error once MaxWait has passed.
func (b *Budget) Wait(ctx context.Context, priority Priority) error {
	deadline := b.now().Add(b.maxWait)

	for {
		allowed, wait, err := b.TryConsume(ctx, 1, priority)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WithError(err).Warn("Call budget unavailable, proceeding without it")
			return nil
		}
		if allowed {
			return nil
		}

		if b.now().Add(wait).After(deadline) {
			b.logger.WithFields(map[string]interface{}{
				"priority": priority.String(),
				"maxWait":  b.maxWait.String(),
			}).Warn("Call budget exhausted")
			return errors.NewRateLimitError(float64(b.totalBudget))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// GetUsage returns the counters of the current window. Missing keys count as zero.
func (b *Budget) GetUsage(ctx context.Context) (*Usage, error) {
	window := b.window()
	totalKey, reservedKey, sharedKey := b.keys(window)

	pipe := b.redis.Pipeline()
	totalCmd := pipe.Get(ctx, totalKey)
	reservedCmd := pipe.Get(ctx, reservedKey)
	sharedCmd := pipe.Get(ctx, sharedKey)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	return &Usage{
		TotalUsed:      intOrZero(totalCmd),
		ReservedUsed:   intOrZero(reservedCmd),
		SharedUsed:     intOrZero(sharedCmd),
		TotalBudget:    b.totalBudget,
		ReservedBudget: b.reservedBudget,
		SharedBudget:   b.sharedBudget,
		WindowStart:    window,
	}, nil
}

func intOrZero(cmd *redis.StringCmd) int {
	val, err := cmd.Int()
	if err != nil {
		return 0
	}
	return val
}
