// Package progress shows live download counts on the terminal. It sits
// behind the download manager's ProgressSink interface so core logic stays
// free of terminal concerns.
package progress

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

type Spinner struct {
	mu     sync.Mutex
	sp     *spinner.Spinner
	total  int
	done   int
	failed int
}

func NewSpinner() *Spinner {
	return &Spinner{
		sp: spinner.New(spinner.CharSets[9], 100*time.Millisecond),
	}
}

func (s *Spinner) Start(total int) {
	s.mu.Lock()
	s.total = total
	s.sp.Suffix = fmt.Sprintf(" downloading 0/%d", total)
	s.mu.Unlock()
	s.sp.Start()
}

func (s *Spinner) Tick(rawURL string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done++
	if err != nil {
		s.failed++
	}
	suffix := fmt.Sprintf(" downloading %d/%d", s.done, s.total)
	if s.failed > 0 {
		suffix += fmt.Sprintf(" (%d failed)", s.failed)
	}
	s.sp.Suffix = suffix + " " + shorten(rawURL)
}

func (s *Spinner) Stop() {
	s.sp.Stop()
}

// shorten truncates long URLs for the one-line spinner message, keeping the
// host and the tail of the path.
func shorten(rawURL string) string {
	const maxLen = 40
	if len(rawURL) <= maxLen {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "..." + rawURL[len(rawURL)-maxLen:]
	}
	host, path := u.Host, u.Path
	if len(host)+3 >= maxLen {
		return "..." + rawURL[len(rawURL)-maxLen:]
	}
	if len(path) > maxLen-len(host)-3 {
		path = "..." + path[len(path)-(maxLen-len(host)-3):]
	}
	return host + path
}
