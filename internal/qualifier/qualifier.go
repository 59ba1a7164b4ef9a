// Package qualifier turns freshly discovered leads into scored, analyzed
// prospects. It reads each lead's website, asks the model for a structured
// business analysis, and applies a deterministic fit rubric on top. The
// model never picks the score; the rubric does.
package qualifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/llm"
	"github.com/ignite/outreach/internal/pkg/httpretry"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/service/lead"
)

// targetIndustries earn the industry-fit bonus in the rubric.
var targetIndustries = map[domain.Industry]bool{
	domain.IndustryECRetail:   true,
	domain.IndustryRestaurant: true,
	domain.IndustryGym:        true,
}

// SiteAnalyzer is the slice of the model client the qualifier needs.
type SiteAnalyzer interface {
	AnalyzeSite(ctx context.Context, companyName, websiteURL, pageText string) (*llm.SiteAnalysis, error)
}

// Service qualifies leads in "new" status.
type Service struct {
	leads     *lead.Service
	analyzer  SiteAnalyzer
	http      httpretry.HTTPDoer
	userAgent string
	threshold int
}

func NewService(leads *lead.Service, analyzer SiteAnalyzer, client httpretry.HTTPDoer, userAgent string, threshold int) *Service {
	if threshold <= 0 {
		threshold = 40
	}
	return &Service{
		leads:     leads,
		analyzer:  analyzer,
		http:      client,
		userAgent: userAgent,
		threshold: threshold,
	}
}

// Threshold returns the minimum score a lead needs to be drafted for.
func (s *Service) Threshold() int { return s.threshold }

// Report summarizes one qualifier pass.
type Report struct {
	Analyzed    int `json:"analyzed"`
	BelowCutoff int `json:"below_cutoff"`
	Failed      int `json:"failed"`
}

// Run analyzes up to limit new leads. A lead whose analysis fails stays in
// "new" and is retried on the next pass; failure of one lead never stops
// the batch.
func (s *Service) Run(ctx context.Context, limit int) (*Report, error) {
	leads, err := s.leads.ListByStatus(ctx, domain.LeadNew, limit)
	if err != nil {
		return nil, err
	}

	rep := &Report{}
	for i := range leads {
		l := &leads[i]
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.qualifyOne(ctx, l, rep); err != nil {
			logger.Warn("lead qualification failed", "lead_id", l.ID, "error", err)
			rep.Failed++
		}
	}
	logger.Info("qualifier pass complete",
		"analyzed", rep.Analyzed, "below_cutoff", rep.BelowCutoff, "failed", rep.Failed)
	return rep, nil
}

// QualifyLead analyzes one lead immediately, outside the batch pass. Used
// for manually submitted leads that should not wait for the next cycle.
func (s *Service) QualifyLead(ctx context.Context, l *domain.Lead) error {
	return s.qualifyOne(ctx, l, &Report{})
}

func (s *Service) qualifyOne(ctx context.Context, l *domain.Lead, rep *Report) error {
	pageText := ""
	if l.WebsiteURL != "" {
		text, err := s.fetchText(ctx, l.WebsiteURL)
		if err != nil {
			logger.Debug("site fetch failed, analyzing on name alone", "lead_id", l.ID, "error", err)
		} else {
			pageText = text
		}
	}

	analysis, err := s.analyzer.AnalyzeSite(ctx, l.CompanyName, l.WebsiteURL, pageText)
	if err != nil {
		return err
	}

	industry := parseIndustry(analysis.Industry)
	detail := &domain.IndustryDetail{
		BusinessType:    analysis.BusinessType,
		KeyServices:     analysis.KeyServices,
		TargetCustomers: analysis.TargetCustomers,
		PainPoints:      analysis.PainPoints,
		OnlinePresence: domain.OnlinePresence{
			HasMessagingChannel: analysis.HasMessagingChannel,
			HasNewsletter:       analysis.HasNewsletter,
			HasEcommerce:        analysis.HasEcommerce,
			SNSPlatforms:        analysis.SNSPlatforms,
		},
		PersonalizationAngle: analysis.PersonalizationAngle,
	}

	score := Score(industry, detail, analysis.SmallTeam, l.Email != "")
	if err := s.leads.Qualify(ctx, l.ID, industry, detail, score); err != nil {
		return err
	}

	rep.Analyzed++
	if score < s.threshold {
		rep.BelowCutoff++
	}
	return nil
}

// Score applies the fit rubric. Channel ownership weighs heaviest because
// the product rides on the lead's existing direct channels.
func Score(industry domain.Industry, detail *domain.IndustryDetail, smallTeam, hasPublicEmail bool) int {
	score := 0
	op := detail.OnlinePresence
	if op.HasMessagingChannel || op.HasNewsletter {
		score += 30
	}
	if op.HasEcommerce {
		score += 20
	}
	if len(op.SNSPlatforms) > 0 {
		score += 15
	}
	if smallTeam {
		score += 15
	}
	if hasPublicEmail {
		score += 10
	}
	if targetIndustries[industry] {
		score += 10
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func parseIndustry(s string) domain.Industry {
	switch domain.Industry(strings.ToLower(strings.TrimSpace(s))) {
	case domain.IndustryECRetail:
		return domain.IndustryECRetail
	case domain.IndustryRestaurant:
		return domain.IndustryRestaurant
	case domain.IndustryGym:
		return domain.IndustryGym
	case domain.IndustrySaaS:
		return domain.IndustrySaaS
	default:
		return domain.IndustryOther
	}
}

// fetchText pulls the visible text of a page, capped for prompt budgets.
func (s *Service) fetchText(ctx context.Context, pageURL string) (string, error) {
	if !strings.HasPrefix(pageURL, "http") {
		pageURL = "https://" + pageURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > 12000 {
		text = text[:12000]
	}
	return text, nil
}
