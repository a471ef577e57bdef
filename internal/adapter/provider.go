package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/scor-analyzer/internal/types"
)

// ChainDataProvider fetches raw account data for a subject address.
// Network or HTTP failure is reported as an UpstreamUnavailable error; an
// account with no history is a successful, empty response.
type ChainDataProvider interface {
	FetchAccountData(ctx context.Context, address string) (*types.RawAccountData, error)
	Name() string
}

// PriceProvider fetches USD prices for a list of upper-case symbols.
// Unsupported symbols are absent from the result, not an error.
type PriceProvider interface {
	FetchPrices(ctx context.Context, symbols []string) (*types.RawPrices, error)
	Name() string
}

// Pinger is implemented by providers that can run a cheap reachability probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter is implemented by providers that track their request history
type HealthReporter interface {
	GetHealth() *ProviderHealth
}

// ProviderHealth represents the health status of a data provider
type ProviderHealth struct {
	Name             string        `json:"name"`
	TotalRequests    int64         `json:"totalRequests"`
	SuccessfulReqs   int64         `json:"successfulRequests"`
	FailedReqs       int64         `json:"failedRequests"`
	SuccessRate      float64       `json:"successRate"`
	AverageLatency   time.Duration `json:"averageLatency"`
	LastSuccess      time.Time     `json:"lastSuccess"`
	LastFailure      time.Time     `json:"lastFailure"`
	ConsecutiveFails int           `json:"consecutiveFails"`
	IsHealthy        bool          `json:"isHealthy"`
}

// healthTracker records request outcomes for a provider
type healthTracker struct {
	mu sync.RWMutex

	name             string
	totalRequests    int64
	successfulReqs   int64
	failedReqs       int64
	totalLatency     time.Duration
	lastSuccess      time.Time
	lastFailure      time.Time
	consecutiveFails int

	maxConsecutiveFails int     // Max consecutive failures before marking unhealthy
	minSuccessRate      float64 // Minimum success rate to be considered healthy
}

func newHealthTracker(name string) *healthTracker {
	return &healthTracker{
		name:                name,
		maxConsecutiveFails: 5,
		minSuccessRate:      0.5,
	}
}

// RecordSuccess records a successful request for health tracking
func (h *healthTracker) RecordSuccess(duration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.successfulReqs++
	h.totalLatency += duration
	h.lastSuccess = time.Now()
	h.consecutiveFails = 0
}

// RecordFailure records a failed request for health tracking
func (h *healthTracker) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.failedReqs++
	h.lastFailure = time.Now()
	h.consecutiveFails++
}

func (h *healthTracker) record(start time.Time, err error) {
	if err != nil {
		h.RecordFailure()
		return
	}
	h.RecordSuccess(time.Since(start))
}

// GetHealth returns the current health status of the provider
func (h *healthTracker) GetHealth() *ProviderHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var successRate float64
	if h.totalRequests > 0 {
		successRate = float64(h.successfulReqs) / float64(h.totalRequests)
	}

	var avgLatency time.Duration
	if h.successfulReqs > 0 {
		avgLatency = h.totalLatency / time.Duration(h.successfulReqs)
	}

	return &ProviderHealth{
		Name:             h.name,
		TotalRequests:    h.totalRequests,
		SuccessfulReqs:   h.successfulReqs,
		FailedReqs:       h.failedReqs,
		SuccessRate:      successRate,
		AverageLatency:   avgLatency,
		LastSuccess:      h.lastSuccess,
		LastFailure:      h.lastFailure,
		ConsecutiveFails: h.consecutiveFails,
		IsHealthy:        h.isHealthyLocked(),
	}
}

// isHealthyLocked checks health status (must be called with lock held)
func (h *healthTracker) isHealthyLocked() bool {
	if h.consecutiveFails >= h.maxConsecutiveFails {
		return false
	}

	// only judge the success rate once there is enough data
	if h.totalRequests >= 10 {
		successRate := float64(h.successfulReqs) / float64(h.totalRequests)
		if successRate < h.minSuccessRate {
			return false
		}
	}

	return true
}
