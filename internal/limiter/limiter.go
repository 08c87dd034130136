package limiter

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// bucket is a channel-backed token bucket. It starts full so a run's first
// requests go out immediately, then refills once per second until done is
// closed.
type bucket struct {
	ch chan struct{}
}

func newBucket(rate int, done <-chan struct{}) *bucket {
	b := &bucket{ch: make(chan struct{}, rate)}
	for i := 0; i < rate; i++ {
		b.ch <- struct{}{}
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for i := 0; i < rate; i++ {
					select {
					case b.ch <- struct{}{}:
					default:
						// bucket full
					}
				}
			}
		}
	}()

	return b
}

func (b *bucket) take(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ch:
		return nil
	}
}

// PerHost hands out request tokens per hostname, keeping the scraper
// courteous to the archive origin. Close stops the refill goroutines.
type PerHost struct {
	mu   sync.Mutex
	rate int
	host map[string]*bucket

	done      chan struct{}
	closeOnce sync.Once
}

func New(perHostRate int) *PerHost {
	if perHostRate <= 0 {
		perHostRate = 10
	}
	return &PerHost{
		rate: perHostRate,
		host: make(map[string]*bucket),
		done: make(chan struct{}),
	}
}

func (p *PerHost) Take(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil // malformed URLs fail later, in the fetcher
	}
	host := u.Hostname()
	if host == "" {
		return nil
	}

	p.mu.Lock()
	b, ok := p.host[host]
	if !ok {
		b = newBucket(p.rate, p.done)
		p.host[host] = b
	}
	p.mu.Unlock()

	return b.take(ctx)
}

// Close releases every host's refill goroutine. Safe to call more than once.
// Takes against already-issued tokens still succeed; exhausted buckets stop
// refilling.
func (p *PerHost) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
