package domain

import (
	"net/url"
	"strings"
)

// NormalizeURL produces the dedupe key for a URL:
// - strip fragment
// - lowercase hostname (port kept as-is)
// Malformed input is returned unchanged; it fails later, in the fetcher.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	if u.Host != "" {
		host := strings.ToLower(u.Hostname())
		if port := u.Port(); port != "" {
			u.Host = host + ":" + port
		} else {
			u.Host = host
		}
	}
	return u.String()
}
