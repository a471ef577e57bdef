// Package service orchestrates the analysis pipeline, the result cache and the
// contact signup flow behind the HTTP API and the CLI.
package service

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/scor-analyzer/internal/adapter"
	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/holdings"
	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/normalize"
	"github.com/scor-analyzer/internal/scoring"
	"github.com/scor-analyzer/internal/storage"
	"github.com/scor-analyzer/internal/types"
)

var subjectPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// DefaultComputeTimeout bounds one shared computation, independent of the callers waiting on it
const DefaultComputeTimeout = 2 * time.Minute

// ResultCache is the cache surface used by the analysis service
type ResultCache interface {
	Get(ctx context.Context, subject string) (*storage.CacheEntry, error)
	Put(ctx context.Context, subject string, result *types.RiskResult) (*storage.CacheEntry, error)
	InvalidateAll(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*storage.CacheStats, error)
	Ping(ctx context.Context) error
}

// Analysis is a risk result together with its cache provenance
type Analysis struct {
	types.RiskResult
	Cached   bool       `json:"cached"`
	CachedAt *time.Time `json:"cachedAt,omitempty"`
}

// AnalysisService runs the scoring pipeline for one subject at a time
type AnalysisService struct {
	chain      adapter.ChainDataProvider
	prices     adapter.PriceProvider
	cache      ResultCache
	normalizer *normalize.Normalizer
	now        func() time.Time
	logger     *logging.Logger
	monitor    *AnalysisMonitor

	computeTimeout time.Duration
	inflight       singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight tracks the callers waiting on one subject's computation. The
// computation is cancelled only when every waiter has left.
type flight struct {
	waiters int
	cancel  context.CancelFunc
}

// NewAnalysisService creates a new analysis service. A nil clock means time.Now.
func NewAnalysisService(
	chain adapter.ChainDataProvider,
	prices adapter.PriceProvider,
	cache ResultCache,
	normalizer *normalize.Normalizer,
	now func() time.Time,
	logger *logging.Logger,
) *AnalysisService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &AnalysisService{
		chain:      chain,
		prices:     prices,
		cache:      cache,
		normalizer: normalizer,
		now:        now,
		logger:     logger.WithComponent("analysis"),
		monitor:    NewAnalysisMonitor(),

		computeTimeout: DefaultComputeTimeout,
		flights:        make(map[string]*flight),
	}
}

// SetComputeTimeout changes the bound on one shared computation
func (s *AnalysisService) SetComputeTimeout(d time.Duration) {
	if d > 0 {
		s.computeTimeout = d
	}
}

// ValidateSubject checks the subject identifier format
func ValidateSubject(subject string) error {
	if !subjectPattern.MatchString(subject) {
		return errors.NewInvalidSubjectError(subject)
	}
	return nil
}

// Analyze returns the risk analysis for subject, from cache when a fresh entry
// exists. Concurrent misses for the same subject share one computation.
func (s *AnalysisService) Analyze(ctx context.Context, subject string) (*Analysis, error) {
	subject = strings.TrimSpace(subject)
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}

	start := time.Now()
	analysis, err := s.analyze(ctx, subject)
	if ctx.Err() == nil {
		s.monitor.Record(time.Since(start), analysis)
	}
	return analysis, err
}

func (s *AnalysisService) analyze(ctx context.Context, subject string) (*Analysis, error) {
	key := storage.SubjectKey(subject)
	logger := s.logger.WithField("subject", key)

	if analysis := s.lookup(ctx, key, logger); analysis != nil {
		return analysis, nil
	}

	for {
		analysis, err := s.await(ctx, key, logger)
		// the computation was abandoned by the callers before this one joined
		if stderrors.Is(err, context.Canceled) && ctx.Err() == nil {
			logger.Debug("Shared analysis was cancelled, starting a new one")
			continue
		}
		return analysis, err
	}
}

// await joins the computation for key, starting it when none is running. The
// computation runs detached from ctx so one caller leaving does not fail the
// others; it is cancelled once no caller is waiting.
func (s *AnalysisService) await(ctx context.Context, key string, logger *logging.Logger) (*Analysis, error) {
	s.join(key)

	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.computeTimeout)
		defer cancel()
		if !s.bind(key, cancel) {
			return nil, context.Canceled
		}
		return s.compute(cctx, key, logger)
	})

	select {
	case <-ctx.Done():
		s.leave(key, true)
		return nil, ctx.Err()
	case res := <-ch:
		s.leave(key, false)
		if res.Err != nil {
			return nil, res.Err
		}
		analysis := *res.Val.(*Analysis)
		return &analysis, nil
	}
}

func (s *AnalysisService) join(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flights[key]
	if f == nil {
		f = &flight{}
		s.flights[key] = f
	}
	f.waiters++
}

// bind attaches the computation's cancel func to the waiters of key. It
// reports false when they have all left already.
func (s *AnalysisService) bind(key string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flights[key]
	if f == nil {
		return false
	}
	f.cancel = cancel
	return true
}

// leave drops one waiter. When the last waiter gives up the computation is cancelled.
func (s *AnalysisService) leave(key string, abandoned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flights[key]
	if f == nil {
		return
	}
	f.waiters--
	if f.waiters > 0 {
		return
	}
	if abandoned && f.cancel != nil {
		f.cancel()
	}
	delete(s.flights, key)
}

// lookup returns the cached analysis or nil. Cache failures are a miss.
func (s *AnalysisService) lookup(ctx context.Context, key string, logger *logging.Logger) *Analysis {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.WithError(err).Warn("Result cache unavailable, recomputing")
		return nil
	}
	if entry == nil {
		logger.Debug("Result cache miss")
		return nil
	}

	logger.Debug("Result cache hit")
	storedAt := entry.StoredAt
	return &Analysis{RiskResult: entry.Result, Cached: true, CachedAt: &storedAt}
}

func (s *AnalysisService) compute(ctx context.Context, key string, logger *logging.Logger) (*Analysis, error) {
	// another caller may have filled the cache while this one waited
	if analysis := s.lookup(ctx, key, logger); analysis != nil {
		return analysis, nil
	}

	rawAccount, rawPrices, err := s.fetch(ctx, key, logger)
	if err != nil {
		return nil, err
	}

	result, err := s.Evaluate(key, rawAccount, rawPrices)
	if err != nil {
		logger.WithError(err).Error("Analysis failed")
		return nil, err
	}

	if _, err := s.cache.Put(ctx, key, result); err != nil {
		logger.WithError(err).Warn("Failed to store analysis in result cache")
	}

	logger.WithFields(map[string]interface{}{
		"final_score": result.FinalScore,
		"risk_tier":   result.RiskTier,
		"price_src":   result.PriceSource,
	}).Info("Analysis completed")

	return &Analysis{RiskResult: *result}, nil
}

// fetch issues the account and price requests concurrently. A price failure
// falls back to the fixed table; an account failure is fatal.
func (s *AnalysisService) fetch(ctx context.Context, key string, logger *logging.Logger) (*types.RawAccountData, *types.RawPrices, error) {
	var (
		rawAccount *types.RawAccountData
		rawPrices  *types.RawPrices
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := s.chain.FetchAccountData(gctx, key)
		if err != nil {
			if errors.IsUpstreamUnavailable(err) || errors.IsDataFormat(err) {
				return err
			}
			return errors.NewUpstreamUnavailableError(s.chain.Name(), err)
		}
		rawAccount = data
		return nil
	})
	g.Go(func() error {
		prices, err := s.prices.FetchPrices(gctx, adapter.SupportedSymbols())
		if err != nil {
			if ctx.Err() == nil {
				logger.WithError(err).Warn("Price fetch failed, using fallback prices")
			}
			prices = nil
		}
		rawPrices = prices
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		logger.WithError(err).Error("Account data fetch failed")
		return nil, nil, err
	}

	if rawPrices == nil {
		rawPrices = adapter.FallbackPrices(s.normalizer.FallbackNativeUSD)
	}
	return rawAccount, rawPrices, nil
}

// Evaluate runs the pure part of the pipeline on already fetched data
func (s *AnalysisService) Evaluate(subject string, rawAccount *types.RawAccountData, rawPrices *types.RawPrices) (*types.RiskResult, error) {
	now := s.now()

	account, prices, err := s.normalizer.Normalize(rawAccount, rawPrices, now)
	if err != nil {
		return nil, err
	}

	valuation := holdings.Value(account, prices)
	breakdown := types.ComponentScores{
		Treasury:        scoring.Treasury(valuation.TotalValueUSD),
		Activity:        scoring.Activity(account.TransactionCountRecentWindow),
		Diversification: scoring.Diversification(valuation.AssetCount(), valuation.NativeRatio),
		Maturity:        scoring.Maturity(account.FirstActivityTimestamp, now),
		History:         scoring.History(account.TransactionCountTotal),
	}
	s.logger.WithFields(map[string]interface{}{
		"subject":   subject,
		"breakdown": breakdown,
	}).Debug("Component scores computed")

	final, tier := scoring.Aggregate(breakdown)
	positions := holdings.BuildHoldings(account, prices, valuation.TotalValueUSD)

	return &types.RiskResult{
		Subject:           subject,
		FinalScore:        final,
		RiskTier:          tier,
		Breakdown:         breakdown,
		PortfolioValueUSD: valuation.TotalValueUSD,
		NativeValueUSD:    valuation.NativeValueUSD,
		TokenValueUSD:     valuation.TokenValueUSD,
		NativeBalance:     account.NativeBalance.InexactFloat64(),
		Holdings:          positions,
		CreditDecision:    scoring.DecisionFor(tier),
		Metrics:           valuation.Metrics(),
		RiskFactors:       holdings.Factors(valuation, account, breakdown.Maturity),
		Activity:          holdings.Profile(account),
		Composition:       holdings.Compose(positions),
		PriceSource:       prices.Source,
		ComputedAt:        now.UTC(),
	}, nil
}

// CacheStats returns the result cache contents
func (s *AnalysisService) CacheStats(ctx context.Context) (*storage.CacheStats, error) {
	return s.cache.Stats(ctx)
}

// Stats returns counters and latencies of analyses served by this process
func (s *AnalysisService) Stats() *AnalysisStats {
	return s.monitor.Stats()
}

// ClearCache drops every cached analysis and returns how many were removed
func (s *AnalysisService) ClearCache(ctx context.Context) (int, error) {
	return s.cache.InvalidateAll(ctx)
}
