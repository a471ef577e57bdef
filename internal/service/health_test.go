package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/storage"
)

type pingingChain struct {
	fakeChain
	pingErr error
}

func (p *pingingChain) Ping(context.Context) error { return p.pingErr }

type pingingPrices struct {
	fakePrices
	pingErr error
}

func (p *pingingPrices) Ping(context.Context) error { return p.pingErr }

func memoryCache() ResultCache {
	return storage.NewResultCache(storage.NewMemoryStore(nil), "memory", time.Hour, nil, logging.Nop())
}

func TestHealthService_AllHealthy(t *testing.T) {
	h := NewHealthService(memoryCache(), time.Second, &pingingChain{}, &pingingPrices{})

	report := h.Check(testContext(t))

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Checks, 3)
	assert.Equal(t, StatusHealthy, report.Checks["cache"].Status)
	assert.Equal(t, StatusHealthy, report.Checks["fake-chain"].Status)
	assert.Equal(t, StatusHealthy, report.Checks["fake-prices"].Status)
}

func TestHealthService_PriceProviderDownIsDegraded(t *testing.T) {
	h := NewHealthService(memoryCache(), time.Second, &pingingChain{}, &pingingPrices{pingErr: stderrors.New("timeout")})

	report := h.Check(testContext(t))

	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "timeout", report.Checks["fake-prices"].Error)
}

func TestHealthService_ChainProviderDownIsUnhealthy(t *testing.T) {
	h := NewHealthService(brokenCache{}, time.Second, &pingingChain{pingErr: stderrors.New("refused")}, &pingingPrices{})

	report := h.Check(testContext(t))

	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, StatusUnhealthy, report.Checks["cache"].Status)
}

func TestHealthService_SkipsProvidersWithoutPing(t *testing.T) {
	h := NewHealthService(nil, time.Second, &fakeChain{})
	h.AddProbe(Probe{Name: "postgres", Check: func(context.Context) error { return nil }})

	report := h.Check(testContext(t))

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Checks, 1)
	assert.Contains(t, report.Checks, "postgres")
}
