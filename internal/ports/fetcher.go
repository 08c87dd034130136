package ports

import "context"

// Fetcher retrieves the raw bytes behind a URL, applying its own timeout and
// retry policy. It never touches disk or the ledger; failures come back as
// *domain.FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
