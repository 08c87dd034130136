package ports

import "github.com/alexander-wei/hmmt-scraper/internal/domain"

// Ledger is the durable record of download outcomes, keyed by normalized
// URL. Record is an upsert, safe for concurrent use, and persisted before it
// returns (write-through).
type Ledger interface {
	Get(url string) (domain.LedgerEntry, bool)
	Record(entry domain.LedgerEntry) error

	// Filenames returns every recorded filename, for seeding the download
	// manager's name registry across runs.
	Filenames() []string
}
