// Package ledger persists download outcomes as a human-readable JSON file,
// one entry per document URL, so repeated runs skip work already done.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/alexander-wei/hmmt-scraper/internal/domain"
)

// File is the on-disk ledger. Record is write-through: every upsert rewrites
// the file before returning, so a process kill loses at most the in-flight
// entry, never previously recorded ones.
type File struct {
	path string

	mu      sync.Mutex
	entries map[string]domain.LedgerEntry
}

// Open loads the ledger at path. A missing file is an empty ledger; a file
// that exists but cannot be read or decoded is a persistence failure.
func Open(path string) (*File, error) {
	f := &File{
		path:    path,
		entries: make(map[string]domain.LedgerEntry),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read ledger %s: %v", domain.ErrPersistence, path, err)
	}

	var list []domain.LedgerEntry
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: decode ledger %s: %v", domain.ErrPersistence, path, err)
	}
	for _, e := range list {
		// last write wins, preserving upsert semantics across merged files
		f.entries[domain.NormalizeURL(e.URL)] = e
	}
	return f, nil
}

func (f *File) Get(url string) (domain.LedgerEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[domain.NormalizeURL(url)]
	return e, ok
}

func (f *File) Record(entry domain.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[domain.NormalizeURL(entry.URL)] = entry
	return f.persistLocked()
}

func (f *File) Filenames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		if e.Filename != "" {
			out = append(out, e.Filename)
		}
	}
	return out
}

func (f *File) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// persistLocked rewrites the whole file via a temp file and rename, so an
// interleaved kill never leaves a corrupt ledger behind.
func (f *File) persistLocked() error {
	list := make([]domain.LedgerEntry, 0, len(f.entries))
	for _, e := range f.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].URL < list[j].URL })

	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode ledger: %v", domain.ErrPersistence, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("%w: write ledger: %v", domain.ErrPersistence, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: replace ledger: %v", domain.ErrPersistence, err)
	}
	return nil
}
