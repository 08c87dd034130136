package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alexander-wei/hmmt-scraper/internal/app"
	"github.com/alexander-wei/hmmt-scraper/internal/config"
	"github.com/alexander-wei/hmmt-scraper/internal/progress"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to a YAML config file (optional; flags override it)")
		rootURL     = flag.String("url", "", "Archive root URL")
		outDir      = flag.String("out", "", "Output directory for downloaded documents")
		ledgerPath  = flag.String("log", "", "Download ledger path")
		concurrency = flag.Int("concurrency", 0, "Max simultaneous downloads")
		timeout     = flag.Duration("timeout", 0, "Per-request timeout (e.g. 10s)")
		maxAttempts = flag.Int("max-attempts", 0, "Fetch attempts per URL")
		backoffBase = flag.Duration("backoff-base", 0, "Initial retry delay")
		backoffCap  = flag.Duration("backoff-cap", 0, "Maximum retry delay")
		maxDepth    = flag.Int("max-depth", -1, "Page traversal depth (1 = root and its subpages)")
		subdomains  = flag.Bool("include-subdomains", false, "Treat subdomains of the archive host as same-site")
		quiet       = flag.Bool("quiet", false, "Disable the progress spinner")
		verbose     = flag.Bool("verbose", false, "Debug logging")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg := app.Config{
		MaxDepth: -1, // resolved by config file, flag, or the app default
		Jitter:   app.DefaultJitter,
		Logger:   logger,
	}

	if *configPath != "" {
		fc, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("load config", "path", *configPath, "err", err)
		}
		applyFileConfig(&cfg, fc, logger)
	}

	// flags override file values
	if *rootURL != "" {
		cfg.RootURL = *rootURL
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *ledgerPath != "" {
		cfg.LedgerPath = *ledgerPath
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *maxAttempts > 0 {
		cfg.MaxAttempts = *maxAttempts
	}
	if *backoffBase > 0 {
		cfg.BackoffBase = *backoffBase
	}
	if *backoffCap > 0 {
		cfg.BackoffCap = *backoffCap
	}
	if *maxDepth >= 0 {
		cfg.MaxDepth = *maxDepth
	}
	if *subdomains {
		cfg.IncludeSubdomains = true
	}
	if !*quiet {
		cfg.Progress = progress.NewSpinner()
	}

	// SIGINT lets in-flight downloads finish their attempt; queued tasks
	// are simply not dispatched.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, os.Stdout); err != nil {
		logger.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func applyFileConfig(cfg *app.Config, fc *config.FileConfig, logger *log.Logger) {
	cfg.RootURL = fc.RootURL
	cfg.OutputDir = fc.OutputDir
	cfg.LedgerPath = fc.LedgerPath
	cfg.Concurrency = fc.Concurrency
	cfg.MaxAttempts = fc.MaxAttempts
	cfg.IncludeSubdomains = fc.IncludeSubdomains
	if fc.MaxDepth != nil {
		cfg.MaxDepth = *fc.MaxDepth
	}

	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.Timeout, "timeout", &cfg.Timeout},
		{fc.BackoffBase, "backoff_base", &cfg.BackoffBase},
		{fc.BackoffCap, "backoff_cap", &cfg.BackoffCap},
	} {
		v, err := config.Duration(d.raw)
		if err != nil {
			logger.Fatal("bad duration in config", "field", d.name, "value", d.raw, "err", err)
		}
		if v > 0 {
			*d.dst = v
		}
	}
}
