// Package download drives discovered document links through the fetcher on
// a bounded worker pool, writes the bytes to disk, and records every outcome
// in the ledger.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/alexander-wei/hmmt-scraper/internal/domain"
	"github.com/alexander-wei/hmmt-scraper/internal/ports"
)

// ProgressSink receives task completion ticks. Observability only, never
// part of the correctness contract. Implementations must be safe for
// concurrent use.
type ProgressSink interface {
	Start(total int)
	Tick(url string, err error)
	Stop()
}

type Manager struct {
	fetcher     ports.Fetcher
	ledger      ports.Ledger
	outDir      string
	concurrency int
	runID       string
	progress    ProgressSink
	log         *log.Logger
}

func New(fetcher ports.Fetcher, ledger ports.Ledger, outDir string, concurrency int, logger *log.Logger, progress ProgressSink) *Manager {
	if concurrency <= 0 {
		concurrency = 10
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{
		fetcher:     fetcher,
		ledger:      ledger,
		outDir:      outDir,
		concurrency: concurrency,
		runID:       uuid.NewString(),
		progress:    progress,
		log:         logger,
	}
}

type task struct {
	link domain.DocumentLink
	name string
}

// Run downloads every link not already completed in the ledger. Per-task
// failures are contained and reported in the result; only persistence
// failures abort. On context cancellation, tasks not yet dispatched are
// dropped while in-flight tasks finish their current attempt, so the ledger
// never records a partially written file as completed.
func (m *Manager) Run(ctx context.Context, links []domain.DocumentLink) (domain.DownloadResult, error) {
	res := domain.DownloadResult{Discovered: len(links)}

	if err := os.MkdirAll(m.outDir, 0o755); err != nil {
		return res, fmt.Errorf("%w: create output dir %s: %v", domain.ErrPersistence, m.outDir, err)
	}

	names := newNameRegistry(m.ledger.Filenames())

	tasks := make([]task, 0, len(links))
	for _, l := range links {
		prior, known := m.ledger.Get(l.URL)
		if known && prior.Status == domain.StatusCompleted {
			res.Skipped++
			m.log.Debug("already downloaded, skipping", "url", l.URL, "file", prior.Filename)
			continue
		}

		name := ""
		if known && prior.Filename != "" {
			// retried failures keep their assigned filename
			name = prior.Filename
			names.Reserve(name)
		} else {
			name = names.Claim(l.URL)
		}
		tasks = append(tasks, task{link: l, name: name})
	}

	if m.progress != nil {
		m.progress.Start(len(tasks))
		defer m.progress.Stop()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan task)
	var wg sync.WaitGroup

	var (
		mu    sync.Mutex
		fatal error
	)

	worker := func() {
		defer wg.Done()
		for t := range jobs {
			err := m.runTask(runCtx, t)
			if errors.Is(err, domain.ErrPersistence) {
				mu.Lock()
				if fatal == nil {
					fatal = err
				}
				mu.Unlock()
				cancel()
				return
			}

			mu.Lock()
			if err != nil {
				res.Failed++
				res.FailedURLs = append(res.FailedURLs, t.link.URL)
			} else {
				res.Succeeded++
			}
			mu.Unlock()

			if m.progress != nil {
				m.progress.Tick(t.link.URL, err)
			}
		}
	}

	wg.Add(m.concurrency)
	for i := 0; i < m.concurrency; i++ {
		go worker()
	}

	go func() {
		defer close(jobs)
		for _, t := range tasks {
			select {
			case jobs <- t:
			case <-runCtx.Done():
				return
			}
		}
	}()

	wg.Wait()

	sort.Strings(res.FailedURLs)
	if fatal != nil {
		return res, fatal
	}
	return res, nil
}

// runTask fetches one document and records its terminal outcome. A nil
// return means completed; a *domain.FetchError means the task failed after
// the fetcher exhausted its policy; ErrPersistence means the run must stop.
func (m *Manager) runTask(ctx context.Context, t task) error {
	body, err := m.fetcher.Fetch(ctx, t.link.URL)
	if err != nil {
		m.log.Warn("download failed", "url", t.link.URL, "err", err)
		return m.record(t, domain.StatusFailed, err)
	}
	if len(body) == 0 {
		err := fmt.Errorf("download %s: empty response body", t.link.URL)
		m.log.Warn("download failed", "url", t.link.URL, "err", err)
		return m.record(t, domain.StatusFailed, err)
	}

	if err := writeFile(filepath.Join(m.outDir, t.name), body); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersistence, t.name, err)
	}

	m.log.Info("downloaded", "url", t.link.URL, "file", t.name, "bytes", len(body), "source", t.link.SourcePage)
	return m.record(t, domain.StatusCompleted, nil)
}

// record upserts the ledger entry and passes the task's own failure (if any)
// back through, so persistence failures take precedence over fetch failures.
func (m *Manager) record(t task, status domain.Status, cause error) error {
	err := m.ledger.Record(domain.LedgerEntry{
		URL:       t.link.URL,
		Filename:  t.name,
		Status:    status,
		Timestamp: time.Now().UTC(),
		RunID:     m.runID,
	})
	if err != nil {
		return err
	}
	return cause
}

// writeFile stages bytes in a temp file, syncs, then renames into place. A
// kill mid-write leaves only an unreferenced temp file; the destination
// path either holds the complete document or nothing.
func writeFile(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".part-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
