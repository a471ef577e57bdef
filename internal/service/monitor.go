package service

import (
	"sort"
	"sync"
	"time"

	"github.com/scor-analyzer/internal/types"
)

// SlowAnalysisThreshold marks computed analyses worth a closer look
const SlowAnalysisThreshold = 10 * time.Second

const maxLatencySamples = 1000

// AnalysisMonitor keeps running counters and recent latencies of analyses
type AnalysisMonitor struct {
	mu             sync.RWMutex
	cachedTimes    []time.Duration
	computedTimes  []time.Duration
	cacheHits      int64
	cacheMisses    int64
	failures       int64
	priceFallbacks int64
	slowAnalyses   int64
}

// AnalysisStats is a snapshot of the monitor
type AnalysisStats struct {
	TotalAnalyses  int64   `json:"totalAnalyses"`
	CacheHits      int64   `json:"cacheHits"`
	CacheMisses    int64   `json:"cacheMisses"`
	Failures       int64   `json:"failures"`
	PriceFallbacks int64   `json:"priceFallbacks"`
	SlowAnalyses   int64   `json:"slowAnalyses"`
	CacheHitRate   float64 `json:"cacheHitRate"` // percent of successful analyses
	AvgCachedMs    float64 `json:"avgCachedMs"`
	AvgComputedMs  float64 `json:"avgComputedMs"`
	P95ComputedMs  float64 `json:"p95ComputedMs"`
	P99ComputedMs  float64 `json:"p99ComputedMs"`
}

// NewAnalysisMonitor creates an empty monitor
func NewAnalysisMonitor() *AnalysisMonitor {
	return &AnalysisMonitor{
		cachedTimes:   make([]time.Duration, 0, maxLatencySamples),
		computedTimes: make([]time.Duration, 0, maxLatencySamples),
	}
}

// Record adds one finished analysis. A nil analysis counts as a failure.
func (m *AnalysisMonitor) Record(duration time.Duration, analysis *Analysis) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if analysis == nil {
		m.failures++
		return
	}

	if analysis.Cached {
		m.cacheHits++
		m.cachedTimes = appendSample(m.cachedTimes, duration)
		return
	}

	m.cacheMisses++
	m.computedTimes = appendSample(m.computedTimes, duration)
	if analysis.PriceSource == types.PriceSourceFallback {
		m.priceFallbacks++
	}
	if duration > SlowAnalysisThreshold {
		m.slowAnalyses++
	}
}

func appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	samples = append(samples, d)
	if len(samples) > maxLatencySamples {
		samples = samples[len(samples)-maxLatencySamples:]
	}
	return samples
}

// Stats returns current counters and latency figures
func (m *AnalysisMonitor) Stats() *AnalysisStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &AnalysisStats{
		TotalAnalyses:  m.cacheHits + m.cacheMisses + m.failures,
		CacheHits:      m.cacheHits,
		CacheMisses:    m.cacheMisses,
		Failures:       m.failures,
		PriceFallbacks: m.priceFallbacks,
		SlowAnalyses:   m.slowAnalyses,
		AvgCachedMs:    averageMs(m.cachedTimes),
		AvgComputedMs:  averageMs(m.computedTimes),
	}
	if served := m.cacheHits + m.cacheMisses; served > 0 {
		stats.CacheHitRate = float64(m.cacheHits) / float64(served) * 100
	}

	if len(m.computedTimes) > 0 {
		sorted := make([]time.Duration, len(m.computedTimes))
		copy(sorted, m.computedTimes)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		stats.P95ComputedMs = percentileMs(sorted, 0.95)
		stats.P99ComputedMs = percentileMs(sorted, 0.99)
	}

	return stats
}

// Reset clears all counters
func (m *AnalysisMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cachedTimes = m.cachedTimes[:0]
	m.computedTimes = m.computedTimes[:0]
	m.cacheHits, m.cacheMisses, m.failures = 0, 0, 0
	m.priceFallbacks, m.slowAnalyses = 0, 0
}

func averageMs(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return float64(total.Milliseconds()) / float64(len(samples))
}

// percentileMs expects sorted samples
func percentileMs(sorted []time.Duration, p float64) float64 {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx].Milliseconds())
}
