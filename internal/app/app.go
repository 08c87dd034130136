// Package app wires the pipeline together: crawl the archive's page graph,
// consult the ledger, download what's missing, print the summary.
package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alexander-wei/hmmt-scraper/internal/crawl"
	"github.com/alexander-wei/hmmt-scraper/internal/domain"
	"github.com/alexander-wei/hmmt-scraper/internal/download"
	"github.com/alexander-wei/hmmt-scraper/internal/extract"
	"github.com/alexander-wei/hmmt-scraper/internal/fetch"
	"github.com/alexander-wei/hmmt-scraper/internal/ledger"
	"github.com/alexander-wei/hmmt-scraper/internal/limiter"
)

// Defaults mirror the archive scraper this replaces.
const (
	DefaultRootURL     = "https://www.hmmt.org/www/archive/problems"
	DefaultOutputDir   = "downloaded_pdfs"
	DefaultLedgerPath  = "download_log.json"
	DefaultConcurrency = 10
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 5
	DefaultBackoffBase = time.Second
	DefaultBackoffCap  = 10 * time.Second
	DefaultJitter      = 500 * time.Millisecond
	DefaultScopeID     = "content"
)

type Config struct {
	RootURL     string
	OutputDir   string
	LedgerPath  string
	Concurrency int

	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Jitter      time.Duration

	// MaxDepth bounds page traversal: 1 means the root and its subpages,
	// matching the archive's layout. Negative means "use the default".
	MaxDepth int

	// IncludeSubdomains widens the same-site predicate from exact host
	// match to suffix match.
	IncludeSubdomains bool

	// ScopeID is the element id that holds the archive's listings.
	ScopeID string

	PerHostRate int

	Progress download.ProgressSink
	Logger   *log.Logger
}

func (c *Config) applyDefaults() {
	if c.RootURL == "" {
		c.RootURL = DefaultRootURL
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.LedgerPath == "" {
		c.LedgerPath = DefaultLedgerPath
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = DefaultBackoffCap
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = 1
	}
	if c.ScopeID == "" {
		c.ScopeID = DefaultScopeID
	}
	if c.PerHostRate <= 0 {
		c.PerHostRate = c.Concurrency
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard)
	}
}

// Run executes the full pipeline once and writes the final report to stdout.
func Run(ctx context.Context, cfg Config, stdout io.Writer) error {
	cfg.applyDefaults()
	logger := cfg.Logger

	root, err := url.Parse(cfg.RootURL)
	if err != nil || root.Hostname() == "" {
		return fmt.Errorf("invalid root url %q", cfg.RootURL)
	}

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	logger.Debug("ledger loaded", "path", cfg.LedgerPath, "entries", led.Len())

	policy := fetch.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BackoffBase,
		MaxDelay:    cfg.BackoffCap,
		Jitter:      cfg.Jitter,
	}
	lim := limiter.New(cfg.PerHostRate)
	defer lim.Close()

	fetcher := fetch.New(cfg.Timeout, policy, lim, logger)
	discoverer := extract.New(cfg.ScopeID, SameSitePredicate(root, cfg.IncludeSubdomains))
	crawler := crawl.New(fetcher, discoverer, cfg.MaxDepth, logger)

	links, err := crawler.Crawl(ctx, cfg.RootURL)
	if err != nil {
		return err
	}

	manager := download.New(fetcher, led, cfg.OutputDir, cfg.Concurrency, logger, cfg.Progress)
	result, err := manager.Run(ctx, links)
	if err != nil {
		return err
	}

	printSummary(stdout, result)

	// A cancellation that lands after the last task was handled is not a
	// failure; only a run with work left undispatched reports it.
	if err := ctx.Err(); err != nil && result.Succeeded+result.Failed+result.Skipped < result.Discovered {
		return err
	}
	return nil
}

// SameSitePredicate decides whether a URL belongs to the archive's site.
// Exact host match by default; subdomain-inclusive when configured.
func SameSitePredicate(root *url.URL, includeSubdomains bool) func(*url.URL) bool {
	rootHost := strings.ToLower(root.Hostname())
	return func(u *url.URL) bool {
		host := strings.ToLower(u.Hostname())
		if host == rootHost {
			return true
		}
		return includeSubdomains && strings.HasSuffix(host, "."+rootHost)
	}
}

func printSummary(w io.Writer, res domain.DownloadResult) {
	fmt.Fprintf(w, "\nDiscovered: %d\nDownloaded: %d\nFailed: %d\nSkipped (already done): %d\n",
		res.Discovered, res.Succeeded, res.Failed, res.Skipped)

	if len(res.FailedURLs) > 0 {
		fmt.Fprintln(w, "\nFailed URLs:")
		for _, u := range res.FailedURLs {
			fmt.Fprintf(w, "  %s\n", u)
		}
	}
}
