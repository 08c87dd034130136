package download

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
)

// nameRegistry assigns collision-free filenames. Names are deterministic:
// the sanitized basename of the URL path, with a numeric suffix when a
// distinct URL claims a name that is already taken. The registry is seeded
// from the ledger on startup so resumed runs never reuse a name.
type nameRegistry struct {
	mu    sync.Mutex
	taken map[string]struct{}
}

func newNameRegistry(existing []string) *nameRegistry {
	r := &nameRegistry{taken: make(map[string]struct{}, len(existing))}
	for _, n := range existing {
		r.taken[n] = struct{}{}
	}
	return r
}

// Claim reserves a unique filename for rawURL. Safe for concurrent use: two
// workers claiming colliding URLs get distinct names.
func (r *nameRegistry) Claim(rawURL string) string {
	base := baseName(rawURL)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	r.mu.Lock()
	defer r.mu.Unlock()

	name := base
	for n := 2; ; n++ {
		if _, ok := r.taken[name]; !ok {
			break
		}
		name = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	r.taken[name] = struct{}{}
	return name
}

// Reserve marks an already-assigned name as taken (ledger entries being
// retried keep their filename across runs).
func (r *nameRegistry) Reserve(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taken[name] = struct{}{}
}

func baseName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	if base == "" || base == "." || base == "/" {
		base = "document.pdf"
	}
	return sanitize(base)
}

// sanitize strips characters that are unsafe in filenames.
func sanitize(name string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	for _, ch := range unsafe {
		name = strings.ReplaceAll(name, ch, "_")
	}
	return name
}
