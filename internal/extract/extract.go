// Package extract turns archive pages into classified links. It is pure:
// no network or disk I/O, so classification is deterministic and unit
// testable in isolation.
package extract

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/alexander-wei/hmmt-scraper/internal/domain"
)

// suffixes that are same-site but never lead to problem sets
var irrelevantSuffixes = []string{".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".ico", ".zip"}

// Discoverer finds <a href> targets, resolves them against the page URL, and
// classifies each as a subpage to crawl, a document to download, or a skip.
type Discoverer struct {
	// ScopeID limits discovery to the element with this id. The archive
	// keeps its listings inside <div id="content">; a page without the
	// container yields zero links. Empty means the whole document.
	ScopeID string

	// SameSite decides whether a resolved URL belongs to the archive and
	// should be crawled further.
	SameSite func(*url.URL) bool

	// DocSuffix marks direct document links, matched case-insensitively
	// against the URL path.
	DocSuffix string
}

func New(scopeID string, sameSite func(*url.URL) bool) *Discoverer {
	return &Discoverer{ScopeID: scopeID, SameSite: sameSite, DocSuffix: ".pdf"}
}

func (d *Discoverer) Discover(pageURL string, r io.Reader) ([]domain.FoundLink, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	root := doc
	if d.ScopeID != "" {
		if root = findByID(doc, d.ScopeID); root == nil {
			return nil, nil
		}
	}

	seen := make(map[string]struct{})
	var out []domain.FoundLink

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if !strings.EqualFold(a.Key, "href") {
					continue
				}
				link := d.classify(base, strings.TrimSpace(a.Val))

				key := link.URL
				if key == "" {
					key = link.Raw
				}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, link)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(root)

	return out, nil
}

func (d *Discoverer) classify(base *url.URL, href string) domain.FoundLink {
	if href == "" {
		return domain.FoundLink{Raw: href, SkipReason: domain.SkipEmpty}
	}
	if strings.HasPrefix(href, "#") {
		return domain.FoundLink{Raw: href, SkipReason: domain.SkipFragmentOnly}
	}

	u, err := url.Parse(href)
	if err != nil {
		return domain.FoundLink{Raw: href, SkipReason: domain.SkipInvalidURL}
	}
	resolved := base.ResolveReference(u)

	switch strings.ToLower(resolved.Scheme) {
	case "http", "https":
	default:
		return domain.FoundLink{Raw: href, SkipReason: domain.SkipUnsupportedScheme}
	}

	// Drop fragment for uniqueness
	resolved.Fragment = ""
	path := strings.ToLower(resolved.Path)

	// Documents are collected wherever they're hosted; only page traversal
	// is bounded to the archive's site.
	if strings.HasSuffix(path, strings.ToLower(d.DocSuffix)) {
		return domain.FoundLink{Raw: href, URL: resolved.String(), Kind: domain.LinkKindDocument}
	}

	if d.SameSite != nil && !d.SameSite(resolved) {
		return domain.FoundLink{Raw: href, URL: resolved.String(), SkipReason: domain.SkipExternal}
	}

	for _, suffix := range irrelevantSuffixes {
		if strings.HasSuffix(path, suffix) {
			return domain.FoundLink{Raw: href, URL: resolved.String(), SkipReason: domain.SkipIrrelevant}
		}
	}

	return domain.FoundLink{Raw: href, URL: resolved.String(), Kind: domain.LinkKindPage}
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}
