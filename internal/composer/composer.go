// Package composer drafts outbound email for analyzed leads. Every lead at
// or above the fit cutoff gets two variants, one warm and one direct, both
// parked as drafts for human review. Nothing the composer produces can be
// sent without an explicit approval.
package composer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/llm"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/scorer"
	"github.com/ignite/outreach/internal/service/lead"
)

// variants are generated in this order for every lead.
var variants = []string{"warm", "direct"}

// lowScoreCutoff marks drafts for closer review. Advisory only.
const lowScoreCutoff = 0.6

// Drafter is the slice of the model client the composer needs.
type Drafter interface {
	DraftEmail(ctx context.Context, in llm.EmailInput) (*llm.EmailDraft, error)
}

// Assessor scores a draft. Optional; nil disables scoring.
type Assessor interface {
	Assess(ctx context.Context, subject, body string) (*scorer.Assessment, error)
}

// MessageStore persists drafts.
type MessageStore interface {
	Insert(ctx context.Context, m *domain.OutboundMessage) error
}

// Sender identity stamped into prompts and the HTML shell.
type Sender struct {
	Name    string
	Product string
}

// Service drafts messages for qualified leads.
type Service struct {
	leads     *lead.Service
	drafter   Drafter
	messages  MessageStore
	assessor  Assessor
	sender    Sender
	threshold int
}

func NewService(leads *lead.Service, drafter Drafter, messages MessageStore, assessor Assessor, sender Sender, threshold int) *Service {
	if threshold <= 0 {
		threshold = 40
	}
	return &Service{
		leads:     leads,
		drafter:   drafter,
		messages:  messages,
		assessor:  assessor,
		sender:    sender,
		threshold: threshold,
	}
}

// Report summarizes one composer pass.
type Report struct {
	Drafted     int `json:"drafted"`
	BelowCutoff int `json:"below_cutoff"`
	Failed      int `json:"failed"`
}

// Run drafts for up to limit analyzed leads. Leads under the fit cutoff are
// left alone. A lead where every variant fails stays analyzed for retry.
func (s *Service) Run(ctx context.Context, limit int) (*Report, error) {
	leads, err := s.leads.ListByStatus(ctx, domain.LeadAnalyzed, limit)
	if err != nil {
		return nil, err
	}

	rep := &Report{}
	for i := range leads {
		l := &leads[i]
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if l.ICPScore < s.threshold {
			rep.BelowCutoff++
			continue
		}
		if err := s.ComposeFor(ctx, l, domain.EmailInitial); err != nil {
			logger.Warn("compose failed", "lead_id", l.ID, "error", err)
			rep.Failed++
			continue
		}
		rep.Drafted++
	}
	logger.Info("composer pass complete",
		"drafted", rep.Drafted, "below_cutoff", rep.BelowCutoff, "failed", rep.Failed)
	return rep, nil
}

// ComposeFor drafts both variants for one lead and moves it to draft_ready.
// Partial success counts: one stored variant is enough to advance the lead;
// only a total failure leaves it where it was.
func (s *Service) ComposeFor(ctx context.Context, l *domain.Lead, emailType domain.EmailType) error {
	stored := 0
	var lastErr error
	for _, variant := range variants {
		if err := s.draftVariant(ctx, l, emailType, variant); err != nil {
			logger.Warn("variant draft failed", "lead_id", l.ID, "variant", variant, "error", err)
			lastErr = err
			continue
		}
		stored++
	}
	if stored == 0 {
		return fmt.Errorf("all variants failed: %w", lastErr)
	}
	if l.Status == domain.LeadAnalyzed {
		if err := s.leads.Transition(ctx, l.ID, domain.LeadDraftReady); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) draftVariant(ctx context.Context, l *domain.Lead, emailType domain.EmailType, variant string) error {
	in := llm.EmailInput{
		CompanyName: l.CompanyName,
		Industry:    string(l.Industry),
		Variant:     variant,
		SenderName:  s.sender.Name,
		Product:     s.sender.Product,
		EmailType:   string(emailType),
	}
	if d := l.IndustryDetail; d != nil {
		in.BusinessType = d.BusinessType
		in.KeyServices = d.KeyServices
		in.PainPoints = d.PainPoints
		in.PersonalizationAngle = d.PersonalizationAngle
	}

	draft, err := s.drafter.DraftEmail(ctx, in)
	if err != nil {
		return err
	}

	html, err := renderHTML(draft.BodyText, s.sender.Name)
	if err != nil {
		// Plain text still works; the HTML variant is a nicety.
		logger.Warn("html render failed", "lead_id", l.ID, "error", err)
		html = ""
	}

	msg := &domain.OutboundMessage{
		LeadID:            l.ID,
		Subject:           draft.Subject,
		BodyText:          draft.BodyText,
		BodyHTML:          html,
		TemplateUsed:      "liquid/outbound-v1",
		EmailType:         emailType,
		Status:            domain.MessageDraft,
		Variant:           variant,
		GenerationAttempt: 1,
	}

	if s.assessor != nil {
		if a, err := s.assessor.Assess(ctx, draft.Subject, draft.BodyText); err != nil {
			logger.Warn("self-assessment unavailable", "lead_id", l.ID, "error", err)
		} else {
			msg.SelfScore = &a.Score
			msg.LowScore = a.Score < lowScoreCutoff
			if len(a.Detail) > 0 {
				msg.SelfScoreDetail, _ = json.Marshal(a)
			}
		}
	}

	return s.messages.Insert(ctx, msg)
}
