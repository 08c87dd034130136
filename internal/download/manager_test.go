package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexander-wei/hmmt-scraper/internal/domain"
	"github.com/alexander-wei/hmmt-scraper/internal/fetch"
	"github.com/alexander-wei/hmmt-scraper/internal/ledger"
)

func newTestFetcher(attempts int) *fetch.Fetcher {
	policy := fetch.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return fetch.New(2*time.Second, policy, nil, nil)
}

func openLedger(t *testing.T, dir string) *ledger.File {
	t.Helper()
	l, err := ledger.Open(filepath.Join(dir, "download_log.json"))
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestRun_DownloadsAndRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4 " + r.URL.Path))
	}))
	defer srv.Close()

	dir := t.TempDir()
	led := openLedger(t, dir)
	outDir := filepath.Join(dir, "pdfs")

	m := New(newTestFetcher(1), led, outDir, 4, nil, nil)
	res, err := m.Run(context.Background(), []domain.DocumentLink{
		{URL: srv.URL + "/2023/alg.pdf"},
		{URL: srv.URL + "/2023/geo.pdf"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 0 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	for _, name := range []string{"alg.pdf", "geo.pdf"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("expected %s on disk: %v", name, err)
		}
	}
	e, ok := led.Get(srv.URL + "/2023/alg.pdf")
	if !ok || e.Status != domain.StatusCompleted || e.Filename != "alg.pdf" {
		t.Fatalf("ledger entry wrong: %+v ok=%v", e, ok)
	}
	if e.RunID == "" {
		t.Fatal("ledger entry missing run id")
	}
}

func TestRun_SameBasenameGetsDistinctFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("content of " + r.URL.Path))
	}))
	defer srv.Close()

	dir := t.TempDir()
	led := openLedger(t, dir)
	outDir := filepath.Join(dir, "pdfs")

	m := New(newTestFetcher(1), led, outDir, 1, nil, nil)
	res, err := m.Run(context.Background(), []domain.DocumentLink{
		{URL: srv.URL + "/2023/guts.pdf"},
		{URL: srv.URL + "/2024/guts.pdf"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files, got %d", len(entries))
	}
	a, _ := led.Get(srv.URL + "/2023/guts.pdf")
	b, _ := led.Get(srv.URL + "/2024/guts.pdf")
	if a.Filename == b.Filename {
		t.Fatalf("colliding basenames must map to distinct files, both got %q", a.Filename)
	}
}

func TestRun_SkipsCompletedEntries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	led := openLedger(t, dir)
	outDir := filepath.Join(dir, "pdfs")
	links := []domain.DocumentLink{{URL: srv.URL + "/a.pdf"}, {URL: srv.URL + "/b.pdf"}}

	m := New(newTestFetcher(1), led, outDir, 2, nil, nil)
	if _, err := m.Run(context.Background(), links); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("first run made %d requests, want 2", got)
	}

	res, err := m.Run(context.Background(), links)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Skipped != 2 || res.Succeeded != 0 {
		t.Fatalf("second run must skip everything: %+v", res)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("second run made %d extra requests", got-2)
	}
}

func TestRun_FailureRecordedWithoutFile(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	led := openLedger(t, dir)
	outDir := filepath.Join(dir, "pdfs")
	url := srv.URL + "/alg.pdf"

	m := New(newTestFetcher(3), led, outDir, 1, nil, nil)
	res, err := m.Run(context.Background(), []domain.DocumentLink{{URL: url}})
	if err != nil {
		t.Fatalf("a failed task must not abort the run: %v", err)
	}
	if res.Failed != 1 || len(res.FailedURLs) != 1 || res.FailedURLs[0] != url {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}

	e, ok := led.Get(url)
	if !ok || e.Status != domain.StatusFailed {
		t.Fatalf("failure must be recorded: %+v ok=%v", e, ok)
	}
	if _, err := os.Stat(filepath.Join(outDir, "alg.pdf")); !os.IsNotExist(err) {
		t.Fatal("no file may be written for a failed download")
	}
}

func TestRun_RetriedFailureKeepsFilename(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	led := openLedger(t, dir)
	outDir := filepath.Join(dir, "pdfs")
	url := srv.URL + "/guts.pdf"

	m := New(newTestFetcher(1), led, outDir, 1, nil, nil)
	if _, err := m.Run(context.Background(), []domain.DocumentLink{{URL: url}}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := led.Get(url)

	fail.Store(false)
	res, err := m.Run(context.Background(), []domain.DocumentLink{{URL: url}})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("retry must succeed: %+v", res)
	}
	second, _ := led.Get(url)
	if second.Filename != first.Filename {
		t.Fatalf("retried task changed filename: %q -> %q", first.Filename, second.Filename)
	}
	if second.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %+v", second)
	}
}

func TestRun_EmptyBodyIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	led := openLedger(t, dir)

	m := New(newTestFetcher(1), led, filepath.Join(dir, "pdfs"), 1, nil, nil)
	res, err := m.Run(context.Background(), []domain.DocumentLink{{URL: srv.URL + "/a.pdf"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("empty body must count as failed: %+v", res)
	}
	if e, _ := led.Get(srv.URL + "/a.pdf"); e.Status != domain.StatusFailed {
		t.Fatalf("expected failed entry, got %+v", e)
	}
}

func TestRun_WriteFailureAbortsWithoutCompletedEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	led := openLedger(t, dir)
	outDir := filepath.Join(dir, "pdfs")
	url := srv.URL + "/a.pdf"

	// A directory squatting on the destination filename makes the final
	// rename fail.
	if err := os.MkdirAll(filepath.Join(outDir, "a.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}

	m := New(newTestFetcher(1), led, outDir, 1, nil, nil)
	_, err := m.Run(context.Background(), []domain.DocumentLink{{URL: url}})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("a failed disk write must abort the run with ErrPersistence, got %v", err)
	}

	if e, ok := led.Get(url); ok && e.Status == domain.StatusCompleted {
		t.Fatalf("no completed entry may exist for an unwritten file: %+v", e)
	}
}

func TestRun_CancellationDropsUndispatchedTasks(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	led := openLedger(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan domain.DownloadResult, 1)

	links := make([]domain.DocumentLink, 10)
	for i := range links {
		links[i] = domain.DocumentLink{URL: srv.URL + "/" + string(rune('a'+i)) + ".pdf"}
	}

	m := New(newTestFetcher(1), led, filepath.Join(dir, "pdfs"), 1, nil, nil)
	go func() {
		res, _ := m.Run(ctx, links)
		done <- res
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	close(release)

	res := <-done
	if res.Succeeded+res.Failed >= len(links) {
		t.Fatalf("cancellation must drop undispatched tasks: %+v", res)
	}
}
