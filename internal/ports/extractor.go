package ports

import (
	"io"

	"github.com/alexander-wei/hmmt-scraper/internal/domain"
)

// Extractor pulls classified links out of a page. Pure: no network or disk
// I/O, identical input gives identical output.
type Extractor interface {
	Discover(pageURL string, r io.Reader) ([]domain.FoundLink, error)
}
