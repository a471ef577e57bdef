// Package main provides a one-shot CLI that scores a DAO treasury address and
// prints or writes the report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/scor-analyzer/internal/adapter"
	"github.com/scor-analyzer/internal/config"
	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/normalize"
	"github.com/scor-analyzer/internal/ratelimit"
	"github.com/scor-analyzer/internal/report"
	"github.com/scor-analyzer/internal/service"
	"github.com/scor-analyzer/internal/storage"
)

func main() {
	var (
		format  = flag.String("format", "text", "Output format: text, xlsx, json")
		out     = flag.String("out", "", "Write the report to this file instead of stdout")
		timeout = flag.Duration("timeout", 2*time.Minute, "Overall analysis timeout")
		noCache = flag.Bool("no-cache", false, "Skip the configured result cache")
		verbose = flag.Bool("v", false, "Print the underlying error detail on failure")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <address>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *format, *out, *timeout, *noCache); err != nil {
		reportError(os.Stderr, err, *verbose)
		os.Exit(1)
	}
}

// reportError prints the public message, and the wrapped cause only when verbose
func reportError(w io.Writer, err error, verbose bool) {
	fmt.Fprintf(w, "Error: %s\n", errors.PublicMessage(err))
	if verbose {
		fmt.Fprintf(w, "Detail: %v\n", err)
	}
}

func run(address, format, out string, timeout time.Duration, noCache bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Backend = config.CacheBackendMemory
	}

	// logs go to stderr so stdout carries only the report
	logger := logging.NewLoggerWithOutput(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format), os.Stderr)

	var renderer report.Renderer
	if format != "json" {
		if renderer, err = report.RendererFor(format); err != nil {
			return err
		}
	}

	backends, err := storage.OpenBackends(cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	chain := adapter.NewEtherscanClient(cfg.Etherscan, logger)
	if backends.Redis != nil {
		// share the API key's allowance with running servers
		budget, err := ratelimit.NewBudget(ratelimit.EtherscanBudgetConfig(cfg.Etherscan, backends.Redis), logger)
		if err != nil {
			return err
		}
		chain.SetBudget(budget)
	}

	svc := service.NewAnalysisService(
		chain,
		adapter.NewCoinGeckoClient(cfg.Prices, logger),
		backends.Cache,
		normalize.New(cfg.Prices.FallbackNativeUSD),
		nil,
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	analysis, err := svc.Analyze(ctx, address)
	if err != nil {
		return err
	}

	doc := report.New(&analysis.RiskResult, analysis.Cached, time.Now())
	if out == "" {
		return write(os.Stdout, renderer, analysis, doc)
	}

	f, err := os.Create(out) // #nosec G304 - path chosen by the operator
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := write(f, renderer, analysis, doc); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return nil
}

// write renders the report, or the raw analysis as JSON when renderer is nil
func write(w io.Writer, renderer report.Renderer, analysis *service.Analysis, doc *report.Document) error {
	if renderer == nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}
	return renderer.Render(w, doc)
}
