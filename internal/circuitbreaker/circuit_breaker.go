// Package circuitbreaker guards calls to flaky upstreams. It wraps
// sony/gobreaker with the state names and logging used across the service.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/scor-analyzer/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the circuit is testing if the service has recovered
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when too many requests are made in half-open state
var ErrTooManyRequests = errors.New("too many requests in half-open state")

// Config configures a circuit breaker
type Config struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures uint32
	// FailureThreshold opens the circuit once the failure ratio exceeds it over at least MinRequests
	FailureThreshold float64
	MinRequests      uint32
	// Interval is the cyclic period of the closed state after which counts reset
	Interval time.Duration
	// Timeout is how long the circuit stays open before going half-open
	Timeout          time.Duration
	HalfOpenMaxCalls uint32
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		MaxFailures:      5,
		FailureThreshold: 0.5,
		MinRequests:      20,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a new circuit breaker. State transitions are logged on logger.
func NewCircuitBreaker(config *Config, logger *logging.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.HalfOpenMaxCalls,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if config.MaxFailures > 0 && counts.ConsecutiveFailures >= config.MaxFailures {
				return true
			}
			if counts.Requests < config.MinRequests || config.FailureThreshold <= 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]interface{}{
				"circuitBreaker": name,
				"from":           toState(from),
				"to":             toState(to),
			}).Warn("Circuit breaker state changed")
		},
		// a caller giving up is not an upstream failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute executes fn with circuit breaker protection
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return ErrCircuitOpen
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrTooManyRequests
	default:
		return err
	}
}

// Name returns the breaker name
func (c *CircuitBreaker) Name() string {
	return c.cb.Name()
}

// GetState returns the current state
func (c *CircuitBreaker) GetState() State {
	return toState(c.cb.State())
}

// Stats is a point-in-time view of a breaker
type Stats struct {
	Name                string `json:"name"`
	State               State  `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"totalFailures"`
	ConsecutiveFailures uint32 `json:"consecutiveFailures"`
}

// GetStats returns the breaker's current counters
func (c *CircuitBreaker) GetStats() *Stats {
	counts := c.cb.Counts()
	return &Stats{
		Name:                c.cb.Name(),
		State:               c.GetState(),
		Requests:            counts.Requests,
		TotalFailures:       counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
	}
}

func toState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
