package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"

	"github.com/ignite/outreach/internal/pkg/httpretry"
)

// ErrCrawlForbidden is returned when robots.txt disallows the fetch.
var ErrCrawlForbidden = errors.New("crawl forbidden by robots.txt")

// RobotsGate checks robots.txt before any page fetch. Each origin's policy
// is fetched once and cached for the gate's lifetime.
type RobotsGate struct {
	client    httpretry.HTTPDoer
	userAgent string

	mu    sync.Mutex
	cache map[string]*robotstxt.Group // keyed by scheme://host
}

func NewRobotsGate(client httpretry.HTTPDoer, userAgent string) *RobotsGate {
	return &RobotsGate{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.Group),
	}
}

// Allow returns nil when the page may be fetched and ErrCrawlForbidden when
// the origin's robots policy rejects it. An unreachable robots.txt is
// treated as allow-all, matching the crawler convention for missing files.
func (g *RobotsGate) Allow(ctx context.Context, pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	origin := u.Scheme + "://" + u.Host

	group, err := g.group(ctx, origin)
	if err != nil {
		return err
	}
	if group != nil && !group.Test(u.Path) {
		return fmt.Errorf("%w: %s", ErrCrawlForbidden, pageURL)
	}
	return nil
}

func (g *RobotsGate) group(ctx context.Context, origin string) (*robotstxt.Group, error) {
	g.mu.Lock()
	if group, ok := g.cache[origin]; ok {
		g.mu.Unlock()
		return group, nil
	}
	g.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	var group *robotstxt.Group
	resp, err := g.client.Do(req)
	if err == nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
		resp.Body.Close()
		if data, perr := robotstxt.FromStatusAndBytes(resp.StatusCode, body); perr == nil {
			group = data.FindGroup(g.userAgent)
		}
	}

	g.mu.Lock()
	g.cache[origin] = group
	g.mu.Unlock()
	return group, nil
}
