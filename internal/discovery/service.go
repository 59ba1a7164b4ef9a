package discovery

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/service/lead"
)

// LeadCreator is the slice of the lead service discovery needs.
type LeadCreator interface {
	Create(ctx context.Context, input lead.CreateInput) (*domain.Lead, error)
}

// Service runs the collect-extract-validate-persist pipeline for a batch of
// seed URLs.
type Service struct {
	crawler   *Crawler
	validator *Validator
	leads     LeadCreator
}

func NewService(crawler *Crawler, validator *Validator, leads LeadCreator) *Service {
	return &Service{crawler: crawler, validator: validator, leads: leads}
}

// Report summarizes one discovery run.
type Report struct {
	SeedsCrawled int      `json:"seeds_crawled"`
	PagesFetched int      `json:"pages_fetched"`
	EmailsFound  int      `json:"emails_found"`
	LeadsAdded   int      `json:"leads_added"`
	Skipped      int      `json:"skipped"`
	Errors       []string `json:"errors,omitempty"`
}

// Run crawls each seed and inserts validated contacts as new leads. A seed
// that fails (robots forbidden, unreachable) is recorded and the run moves
// on; one bad seed never sinks the batch. A depth of 0 uses the configured
// default.
func (s *Service) Run(ctx context.Context, seeds []string, sourceQuery string, depth int) (*Report, error) {
	rep := &Report{}
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		pages, err := s.crawler.CrawlToDepth(ctx, seed, depth)
		if err != nil {
			logger.Warn("seed crawl failed", "url", seed, "error", err)
			rep.Errors = append(rep.Errors, seed+": "+err.Error())
			continue
		}
		rep.SeedsCrawled++
		rep.PagesFetched += len(pages)

		seen := map[string]bool{}
		for _, page := range pages {
			for _, email := range ExtractEmails(page) {
				if seen[email] {
					continue
				}
				seen[email] = true
				rep.EmailsFound++

				if !s.validator.Valid(ctx, email) {
					rep.Skipped++
					continue
				}
				_, err := s.leads.Create(ctx, lead.CreateInput{
					CompanyName:     companyNameFor(page, seed),
					Email:           email,
					WebsiteURL:      seed,
					SourceURL:       page.URL,
					DiscoveryMethod: "crawl",
					SourceQuery:     sourceQuery,
				})
				switch {
				case err == nil:
					rep.LeadsAdded++
				case errors.Is(err, lead.ErrDuplicateEmail):
					rep.Skipped++
				default:
					rep.Errors = append(rep.Errors, email+": "+err.Error())
				}
			}
		}
	}
	logger.Info("discovery run complete",
		"seeds", rep.SeedsCrawled, "pages", rep.PagesFetched,
		"found", rep.EmailsFound, "added", rep.LeadsAdded, "skipped", rep.Skipped)
	return rep, nil
}

// companyNameFor prefers the page title and falls back to the seed host.
func companyNameFor(page Page, seed string) string {
	if t := strings.TrimSpace(page.Title); t != "" {
		return t
	}
	if u, err := url.Parse(seed); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Host, "www.")
	}
	return seed
}
