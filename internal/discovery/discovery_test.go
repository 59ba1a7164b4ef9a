package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/pkg/httpretry"
	"github.com/ignite/outreach/internal/service/lead"
)

const testUA = "outreach-test-bot/1.0"

func newTestCrawler(base httpretry.HTTPDoer) *Crawler {
	robots := NewRobotsGate(base, testUA)
	return NewCrawler(base, robots, testUA, 2, 20, 3)
}

func fastClient() httpretry.HTTPDoer {
	return httpretry.NewRetryClient(&http.Client{Timeout: 2 * time.Second}, 1).
		WithDelays(time.Millisecond, 5*time.Millisecond)
}

func TestCrawlRespectsRobotsDisallowAll(t *testing.T) {
	var pageFetches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
			return
		}
		pageFetches++
		fmt.Fprint(w, "<html><body>hi</body></html>")
	}))
	defer srv.Close()

	c := newTestCrawler(fastClient())
	_, err := c.Crawl(context.Background(), srv.URL)
	if !errors.Is(err, ErrCrawlForbidden) {
		t.Fatalf("err = %v, want ErrCrawlForbidden", err)
	}
	if pageFetches != 0 {
		t.Fatalf("fetched %d pages behind a disallow-all robots.txt", pageFetches)
	}
}

func TestCrawlStaysOnOriginAndFindsMailto(t *testing.T) {
	var otherOriginHit bool
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		otherOriginHit = true
	}))
	defer other.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><title>Acme Studio</title><body>
			<a href="/contact">Contact</a>
			<a href="%s/away">External</a>
		</body></html>`, other.URL)
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="mailto:hello@acme.example?subject=hi">Mail us</a></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestCrawler(fastClient())
	pages, err := c.Crawl(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if otherOriginHit {
		t.Error("crawler left the seed origin")
	}

	var found bool
	for _, p := range pages {
		for _, e := range p.Emails {
			if e == "hello@acme.example" {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("mailto address not extracted from %d pages", len(pages))
	}
}

func TestValidatorDropsRoleAndDeadDomains(t *testing.T) {
	v := NewValidator([]string{"tracker.example"}).
		WithMXLookup(func(_ context.Context, domain string) error {
			if domain == "dead.example" {
				return errors.New("no mx")
			}
			return nil
		})
	ctx := context.Background()

	cases := map[string]bool{
		"jane@acme.example":      true,
		"noreply@acme.example":   false,
		"ping@tracker.example":   false,
		"sales@dead.example":     false,
		"hero@2x.png":            false,
		"contact@store.example":  true,
	}
	for email, want := range cases {
		if got := v.Valid(ctx, email); got != want {
			t.Errorf("Valid(%q) = %v, want %v", email, got, want)
		}
	}
}

// memCreator records created leads and simulates duplicate skipping.
type memCreator struct{ emails map[string]bool }

func (m *memCreator) Create(_ context.Context, in lead.CreateInput) (*domain.Lead, error) {
	if m.emails == nil {
		m.emails = map[string]bool{}
	}
	if m.emails[in.Email] {
		return nil, lead.ErrDuplicateEmail
	}
	m.emails[in.Email] = true
	return &domain.Lead{Email: in.Email, CompanyName: in.CompanyName}, nil
}

func TestRunIsIdempotentAcrossRepeats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><title>Acme</title><body><a href="mailto:jane@acme.example">mail</a></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	creator := &memCreator{}
	v := NewValidator(nil).WithMXLookup(func(context.Context, string) error { return nil })
	svc := NewService(newTestCrawler(fastClient()), v, creator)

	rep, err := svc.Run(context.Background(), []string{srv.URL}, "test run", 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.LeadsAdded != 1 {
		t.Fatalf("first run added = %d, want 1", rep.LeadsAdded)
	}

	rep, err = svc.Run(context.Background(), []string{srv.URL}, "test run", 0)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if rep.LeadsAdded != 0 || rep.Skipped == 0 {
		t.Fatalf("rerun = %+v, want added=0 and skips recorded", rep)
	}
}
