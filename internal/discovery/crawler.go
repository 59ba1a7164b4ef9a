package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/ignite/outreach/internal/pkg/httpretry"
	"github.com/ignite/outreach/internal/pkg/logger"
)

// Page is one fetched and parsed page.
type Page struct {
	URL    string
	Title  string
	Text   string
	Emails []string // mailto: targets found on the page
	Links  []string // same-origin links, capped per page
}

// Crawler fetches pages breadth-first from a seed, staying on the seed's
// origin and within the configured depth.
type Crawler struct {
	client      httpretry.HTTPDoer
	robots      *RobotsGate
	userAgent   string
	maxDepth    int
	maxLinks    int
	concurrency int
}

func NewCrawler(client httpretry.HTTPDoer, robots *RobotsGate, userAgent string, maxDepth, maxLinks, concurrency int) *Crawler {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if maxLinks <= 0 {
		maxLinks = 20
	}
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Crawler{
		client:      client,
		robots:      robots,
		userAgent:   userAgent,
		maxDepth:    maxDepth,
		maxLinks:    maxLinks,
		concurrency: concurrency,
	}
}

// Crawl walks the seed's origin breadth-first and returns every page it
// fetched. A page that robots.txt forbids is skipped, not an error; a seed
// whose very first fetch is forbidden returns ErrCrawlForbidden.
func (c *Crawler) Crawl(ctx context.Context, seedURL string) ([]Page, error) {
	return c.CrawlToDepth(ctx, seedURL, c.maxDepth)
}

// CrawlToDepth crawls with a per-call depth override, clamped to the
// configured maximum.
func (c *Crawler) CrawlToDepth(ctx context.Context, seedURL string, depth int) ([]Page, error) {
	if depth <= 0 || depth > c.maxDepth {
		depth = c.maxDepth
	}
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}
	if seed.Scheme == "" {
		seed.Scheme = "https"
	}

	if err := c.robots.Allow(ctx, seed.String()); err != nil {
		return nil, err
	}

	visited := map[string]bool{seed.String(): true}
	frontier := []string{seed.String()}
	var pages []Page

	for level := 0; level <= depth && len(frontier) > 0; level++ {
		results := c.fetchAll(ctx, frontier)

		var next []string
		for _, p := range results {
			pages = append(pages, p)
			for _, link := range p.Links {
				if visited[link] {
					continue
				}
				visited[link] = true
				next = append(next, link)
			}
		}
		frontier = next
	}
	return pages, nil
}

// fetchAll fetches one frontier level through a bounded worker pool.
func (c *Crawler) fetchAll(ctx context.Context, urls []string) []Page {
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var pages []Page

	for _, pageURL := range urls {
		wg.Add(1)
		sem <- struct{}{}
		go func(pageURL string) {
			defer wg.Done()
			defer func() { <-sem }()

			p, err := c.fetch(ctx, pageURL)
			if err != nil {
				logger.Warn("page fetch failed", "url", pageURL, "error", err)
				return
			}
			mu.Lock()
			pages = append(pages, *p)
			mu.Unlock()
		}(pageURL)
	}
	wg.Wait()
	return pages
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) (*Page, error) {
	if err := c.robots.Allow(ctx, pageURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, _ := url.Parse(pageURL)
	p := &Page{
		URL:   pageURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  strings.TrimSpace(doc.Find("body").Text()),
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return true
		}
		if strings.HasPrefix(strings.ToLower(href), "mailto:") {
			addr := strings.TrimPrefix(href[len("mailto:"):], "//")
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if addr != "" {
				p.Emails = append(p.Emails, addr)
			}
			return true
		}
		if len(p.Links) >= c.maxLinks {
			return true
		}
		if link := resolveSameOrigin(base, href); link != "" {
			p.Links = append(p.Links, link)
		}
		return true
	})

	return p, nil
}

// resolveSameOrigin resolves href against base and returns the normalized
// absolute URL, or "" when it leaves the origin or is not an http page.
func resolveSameOrigin(base *url.URL, href string) string {
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host != base.Host {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
