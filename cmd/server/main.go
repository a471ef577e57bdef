// Package main provides the API server entry point for the DAO credit scanner.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/scor-analyzer/internal/adapter"
	"github.com/scor-analyzer/internal/api"
	"github.com/scor-analyzer/internal/config"
	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/normalize"
	"github.com/scor-analyzer/internal/ratelimit"
	"github.com/scor-analyzer/internal/service"
	"github.com/scor-analyzer/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":         cfg.Logging.Level,
		"format":        cfg.Logging.Format,
		"cache_backend": cfg.Cache.Backend,
		"cache_ttl":     cfg.Cache.TTL.String(),
	}).Info("Starting scor API server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Result cache
	backends, err := storage.OpenBackends(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open result cache")
	}
	defer backends.Close()
	cache := backends.Cache

	// Providers
	if cfg.Etherscan.APIKey == "" {
		logger.Warn("ETHERSCAN_API_KEY not set - chain data requests will be throttled or rejected")
	}
	chain := adapter.NewEtherscanClient(cfg.Etherscan, logger)
	if backends.Redis != nil {
		budget, err := ratelimit.NewBudget(ratelimit.EtherscanBudgetConfig(cfg.Etherscan, backends.Redis), logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to configure Etherscan call budget")
		}
		chain.SetBudget(budget)
		logger.Info("Etherscan call budget shared through Redis")
	}
	prices := adapter.NewCoinGeckoClient(cfg.Prices, logger)

	analysis := service.NewAnalysisService(chain, prices, cache, normalize.New(cfg.Prices.FallbackNativeUSD), nil, logger)
	health := service.NewHealthService(cache, 0, chain, prices)

	// Contact signups are optional
	var signups api.SignupServiceInterface
	if cfg.Database.Postgres.Enabled {
		postgres, err := storage.NewPostgresDB(context.Background(), &cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()

		signups = service.NewSignupService(storage.NewSignupRepository(postgres.Pool()), logger)
		health.AddProbe(service.Probe{Name: "postgres", Check: postgres.Ping})
		logger.Info("Contact signups enabled")
	}

	// already validated by LoadConfig
	trustedProxies, _ := cfg.RateLimit.TrustedPrefixes()

	server := api.NewServer(&api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimitRPS:    cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:  cfg.RateLimit.Burst,
		TrustedProxies:  trustedProxies,
	}, analysis, signups, health, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.WithError(err).Error("API server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("Server stopped")
}
