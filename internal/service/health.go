package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scor-analyzer/internal/adapter"
	"github.com/scor-analyzer/internal/circuitbreaker"
)

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Probe is one named reachability check
type Probe struct {
	Name string
	// Critical probes make the whole report unhealthy when they fail
	Critical bool
	Check    func(ctx context.Context) error
}

// CheckResult is the outcome of one probe
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// HealthReport is the aggregated health view
type HealthReport struct {
	Status    string                             `json:"status"`
	Checks    map[string]CheckResult             `json:"checks"`
	Providers map[string]*adapter.ProviderHealth `json:"providers,omitempty"`
	Breakers  []*circuitbreaker.Stats            `json:"breakers,omitempty"`
	Timestamp time.Time                          `json:"timestamp"`
}

// BreakerReporter is implemented by providers guarded by a circuit breaker
type BreakerReporter interface {
	BreakerStats() *circuitbreaker.Stats
}

// HealthService probes providers and the cache
type HealthService struct {
	probes    []Probe
	providers []interface{}
	timeout   time.Duration
	now       func() time.Time
}

// NewHealthService builds probes for every provider that can be pinged, plus the cache
func NewHealthService(cache ResultCache, timeout time.Duration, providers ...interface{}) *HealthService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	h := &HealthService{providers: providers, timeout: timeout, now: time.Now}

	if cache != nil {
		// the analysis path treats cache failures as misses
		h.probes = append(h.probes, Probe{Name: "cache", Check: cache.Ping})
	}
	for _, p := range providers {
		pinger, ok := p.(adapter.Pinger)
		if !ok {
			continue
		}
		name := "provider"
		if named, ok := p.(interface{ Name() string }); ok {
			name = named.Name()
		}
		_, isChain := p.(adapter.ChainDataProvider)
		h.probes = append(h.probes, Probe{Name: name, Critical: isChain, Check: pinger.Ping})
	}
	return h
}

// AddProbe registers an extra check
func (h *HealthService) AddProbe(p Probe) {
	h.probes = append(h.probes, p)
}

// Check runs every probe concurrently
func (h *HealthService) Check(ctx context.Context) *HealthReport {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	report := &HealthReport{
		Status:    StatusHealthy,
		Checks:    make(map[string]CheckResult, len(h.probes)),
		Timestamp: h.now().UTC(),
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, probe := range h.probes {
		g.Go(func() error {
			start := time.Now()
			err := probe.Check(ctx)
			result := CheckResult{Status: StatusHealthy, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				result.Status = StatusUnhealthy
				result.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			report.Checks[probe.Name] = result
			if err != nil {
				if probe.Critical {
					report.Status = StatusUnhealthy
				} else if report.Status == StatusHealthy {
					report.Status = StatusDegraded
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range h.providers {
		if hr, ok := p.(adapter.HealthReporter); ok {
			if report.Providers == nil {
				report.Providers = make(map[string]*adapter.ProviderHealth)
			}
			health := hr.GetHealth()
			report.Providers[health.Name] = health
		}
		if br, ok := p.(BreakerReporter); ok {
			report.Breakers = append(report.Breakers, br.BreakerStats())
		}
	}

	return report
}
