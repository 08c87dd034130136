package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FullFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.yaml")
	body := `root_url: https://www.hmmt.org/www/archive/problems
output_dir: pdfs
ledger_path: log.json
concurrency: 4
timeout: 30s
max_attempts: 3
backoff_base: 500ms
backoff_cap: 8s
max_depth: 0
include_subdomains: true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RootURL != "https://www.hmmt.org/www/archive/problems" {
		t.Fatalf("root_url = %q", cfg.RootURL)
	}
	if cfg.Concurrency != 4 || cfg.MaxAttempts != 3 || !cfg.IncludeSubdomains {
		t.Fatalf("scalars wrong: %+v", cfg)
	}
	if cfg.MaxDepth == nil || *cfg.MaxDepth != 0 {
		t.Fatalf("an explicit max_depth of 0 must be distinguishable from unset: %v", cfg.MaxDepth)
	}

	d, err := Duration(cfg.Timeout)
	if err != nil || d != 30*time.Second {
		t.Fatalf("timeout = %v, %v", d, err)
	}
	if d, _ := Duration(cfg.BackoffBase); d != 500*time.Millisecond {
		t.Fatalf("backoff_base = %v", d)
	}
}

func TestLoad_PartialFileLeavesZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.yaml")
	if err := os.WriteFile(path, []byte("concurrency: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrency != 2 {
		t.Fatalf("concurrency = %d", cfg.Concurrency)
	}
	if cfg.RootURL != "" || cfg.Timeout != "" || cfg.MaxDepth != nil {
		t.Fatalf("unset fields must stay zero: %+v", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.yaml")
	if err := os.WriteFile(path, []byte("concurrency: [oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDuration_Empty(t *testing.T) {
	d, err := Duration("")
	if err != nil || d != 0 {
		t.Fatalf("Duration(\"\") = %v, %v", d, err)
	}
}
