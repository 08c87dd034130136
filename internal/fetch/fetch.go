package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alexander-wei/hmmt-scraper/internal/domain"
	"github.com/alexander-wei/hmmt-scraper/internal/ports"
)

// The archive serves 403s to default Go user agents, so requests go out
// looking like a browser.
const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/125.0.0.0 Safari/537.36"
	acceptLanguage = "en-US,en;q=0.9"

	// Problem sets are small PDFs; anything past this is not one.
	maxBodyBytes = 64 << 20
)

// Policy is the retry schedule applied to transient failures. It is a plain
// value so tests can pin the exact attempt count and delays.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Jitter:      500 * time.Millisecond,
	}
}

// Delay returns the backoff before attempt n (1-based; the first attempt has
// none). Delays double from BaseDelay, cap at MaxDelay, and carry randomized
// jitter so parallel tasks don't hit a struggling origin in lockstep.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.BaseDelay << (attempt - 2)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// Fetcher performs HTTP GETs with a per-attempt timeout budget and the
// retry policy above. It has no side effects beyond the network call.
type Fetcher struct {
	client    *http.Client
	limiter   ports.Limiter
	policy    Policy
	timeout   time.Duration
	userAgent string
	log       *log.Logger
}

func New(timeout time.Duration, policy Policy, limiter ports.Limiter, logger *log.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Fetcher{
		client:    &http.Client{},
		limiter:   limiter,
		policy:    policy,
		timeout:   timeout,
		userAgent: defaultUserAgent,
		log:       logger,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		if delay := f.policy.Delay(attempt); delay > 0 {
			f.log.Debug("backing off", "url", rawURL, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, &domain.FetchError{URL: rawURL, Kind: domain.FailureTransient, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		if f.limiter != nil {
			if err := f.limiter.Take(ctx, rawURL); err != nil {
				return nil, &domain.FetchError{URL: rawURL, Kind: domain.FailureTransient, Err: err}
			}
		}

		body, err := f.do(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !domain.IsTransient(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
		f.log.Warn("fetch attempt failed", "url", rawURL, "attempt", attempt, "err", err)
	}

	return nil, lastErr
}

func (f *Fetcher) do(ctx context.Context, rawURL string) ([]byte, error) {
	// Each attempt gets its own timeout budget (avoids "context deadline
	// exceeded" cascading across retries).
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Kind: domain.FailurePermanent, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Kind: domain.FailureTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		// fall through to the body read
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		drain(resp.Body)
		return nil, &domain.FetchError{
			URL: rawURL, Kind: domain.FailureTransient, Status: resp.StatusCode,
			Err: fmt.Errorf("http status %d", resp.StatusCode),
		}
	default:
		drain(resp.Body)
		return nil, &domain.FetchError{
			URL: rawURL, Kind: domain.FailurePermanent, Status: resp.StatusCode,
			Err: fmt.Errorf("http status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Kind: domain.FailureTransient, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// drain reads a little of the body so the connection can be reused.
func drain(r io.Reader) {
	_, _ = io.CopyN(io.Discard, r, 1<<20)
}
