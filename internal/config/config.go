package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// FileConfig mirrors the CLI flags that can also live in a YAML file. Zero
// values mean "not set"; flags override file values. Durations are strings
// in time.ParseDuration form ("10s", "500ms").
type FileConfig struct {
	RootURL           string `yaml:"root_url"`
	OutputDir         string `yaml:"output_dir"`
	LedgerPath        string `yaml:"ledger_path"`
	Concurrency       int    `yaml:"concurrency"`
	Timeout           string `yaml:"timeout"`
	MaxAttempts       int    `yaml:"max_attempts"`
	BackoffBase       string `yaml:"backoff_base"`
	BackoffCap        string `yaml:"backoff_cap"`
	MaxDepth          *int   `yaml:"max_depth"`
	IncludeSubdomains bool   `yaml:"include_subdomains"`
}

func Load(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FileConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &cfg, nil
}

// Duration parses one of the string duration fields, tolerating empty.
func Duration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
