// Package crawl walks the archive's page graph and produces the
// de-duplicated set of document URLs to download.
package crawl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/alexander-wei/hmmt-scraper/internal/domain"
	"github.com/alexander-wei/hmmt-scraper/internal/ports"
)

type Crawler struct {
	fetcher   ports.Fetcher
	extractor ports.Extractor
	maxDepth  int
	log       *log.Logger
}

type pageJob struct {
	url   string
	depth int
}

func New(fetcher ports.Fetcher, extractor ports.Extractor, maxDepth int, logger *log.Logger) *Crawler {
	if maxDepth < 0 {
		maxDepth = 1
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Crawler{
		fetcher:   fetcher,
		extractor: extractor,
		maxDepth:  maxDepth,
		log:       logger,
	}
}

// Crawl walks breadth-first from rootURL, visiting each page at most once
// (the visited set guarantees termination on cyclic graphs), and returns the
// discovered document links sorted by URL. Discovery is best-effort: a
// subpage that fails to fetch or parse is logged and skipped. Only a failure
// on first contact with the root aborts.
func (c *Crawler) Crawl(ctx context.Context, rootURL string) ([]domain.DocumentLink, error) {
	visited := make(map[string]struct{})
	docs := make(map[string]domain.DocumentLink)

	queue := []pageJob{{url: rootURL, depth: 0}}
	pagesFetched := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		job := queue[0]
		queue = queue[1:]

		key := domain.NormalizeURL(job.url)
		if _, ok := visited[key]; ok {
			continue
		}
		visited[key] = struct{}{}

		body, err := c.fetcher.Fetch(ctx, job.url)
		if err != nil {
			if pagesFetched == 0 {
				return nil, fmt.Errorf("fetch archive root: %w", err)
			}
			c.log.Warn("page fetch failed, skipping", "url", job.url, "err", err)
			continue
		}
		pagesFetched++

		found, err := c.extractor.Discover(job.url, bytes.NewReader(body))
		if err != nil {
			c.log.Warn("page parse failed, treating as empty", "url", job.url, "err", err)
			continue
		}
		c.log.Debug("page discovered", "url", job.url, "depth", job.depth, "links", len(found))

		for _, fl := range found {
			switch {
			case fl.SkipReason != "":
				continue

			case fl.Kind == domain.LinkKindDocument:
				k := domain.NormalizeURL(fl.URL)
				if _, ok := docs[k]; !ok {
					docs[k] = domain.DocumentLink{URL: fl.URL, SourcePage: job.url}
				}

			case fl.Kind == domain.LinkKindPage && job.depth < c.maxDepth:
				if _, ok := visited[domain.NormalizeURL(fl.URL)]; !ok {
					queue = append(queue, pageJob{url: fl.URL, depth: job.depth + 1})
				}
			}
		}
	}

	out := make([]domain.DocumentLink, 0, len(docs))
	for _, d := range docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })

	c.log.Info("crawl finished", "pages", pagesFetched, "documents", len(out))
	return out, nil
}
