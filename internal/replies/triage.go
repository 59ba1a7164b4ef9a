package replies

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/llm"
	"github.com/ignite/outreach/internal/mailer"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/service/lead"
)

// timeNow is stubbed in tests.
var timeNow = time.Now

// IntentClassifier is the slice of the model client triage needs for
// classification.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, originalSubject, replyBody string) (*llm.IntentResult, error)
}

// ReplyDrafter generates grounded response drafts.
type ReplyDrafter interface {
	DraftReply(ctx context.Context, in llm.ReplyInput) (*llm.ReplyDraft, error)
}

// Sender identity for acks and approved responses.
type Sender struct {
	Name    string
	Email   string
	Product string
}

// Triage classifies new replies, sends safe acknowledgments, and prepares
// draft responses for human review. It never sends a substantive response
// itself; that requires Approve.
type Triage struct {
	replies    ReplyStore
	messages   MessageStore
	knowledge  KnowledgeStore
	leads      *lead.Service
	classifier IntentClassifier
	drafter    ReplyDrafter
	mailbox    mailer.Mailbox
	sender     Sender
}

func NewTriage(replies ReplyStore, messages MessageStore, knowledge KnowledgeStore, leads *lead.Service, classifier IntentClassifier, drafter ReplyDrafter, mailbox mailer.Mailbox, sender Sender) *Triage {
	return &Triage{
		replies:    replies,
		messages:   messages,
		knowledge:  knowledge,
		leads:      leads,
		classifier: classifier,
		drafter:    drafter,
		mailbox:    mailbox,
		sender:     sender,
	}
}

// TriageReport summarizes one triage pass.
type TriageReport struct {
	Classified    int `json:"classified"`
	Acked         int `json:"acked"`
	Drafted       int `json:"drafted"`
	NeedsResearch int `json:"needs_research"`
	Unsubscribed  int `json:"unsubscribed"`
	Failed        int `json:"failed"`
}

// Run processes unclassified replies in arrival order. A reply that fails
// stays unclassified and is retried next pass.
func (t *Triage) Run(ctx context.Context, limit int) (*TriageReport, error) {
	pending, err := t.replies.ListUnclassified(ctx, limit)
	if err != nil {
		return nil, err
	}

	rep := &TriageReport{}
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := t.triageOne(ctx, &pending[i], rep); err != nil {
			logger.Warn("reply triage failed", "reply_id", pending[i].ID, "error", err)
			rep.Failed++
		}
	}
	logger.Info("triage pass complete",
		"classified", rep.Classified, "acked", rep.Acked, "drafted", rep.Drafted,
		"needs_research", rep.NeedsResearch, "failed", rep.Failed)
	return rep, nil
}

func (t *Triage) triageOne(ctx context.Context, r *domain.InboundReply, rep *TriageReport) error {
	origin, err := t.messages.Get(ctx, r.MessageID)
	if err != nil {
		return err
	}

	res, err := t.classifier.ClassifyIntent(ctx, origin.Subject, r.ReplyBody)
	if err != nil {
		return err
	}
	intent := parseIntent(res.Intent)
	if err := t.replies.SetIntent(ctx, r.ID, intent, res.Confidence); err != nil {
		return err
	}
	rep.Classified++

	// Opt-out wins over everything else and needs no draft.
	if intent == domain.IntentUnsubscribe {
		if err := t.leads.Unsubscribe(ctx, r.LeadID); err != nil {
			return err
		}
		rep.Unsubscribed++
		return nil
	}

	t.maybeAck(ctx, r, origin, intent, rep)

	if intent.SkipsDraft() {
		return nil
	}
	return t.prepareDraft(ctx, r, intent, domain.StageInitial, "", "", rep)
}

// maybeAck sends the automatic receipt when the gate allows it. Ack
// failures never block triage; the draft still gets prepared.
func (t *Triage) maybeAck(ctx context.Context, r *domain.InboundReply, origin *domain.OutboundMessage, intent domain.ReplyIntent, rep *TriageReport) {
	threadID := ""
	if origin.ProviderThreadID != nil {
		threadID = *origin.ProviderThreadID
	}
	acked, err := t.messages.ThreadHasAck(ctx, threadID)
	if err != nil {
		logger.Warn("ack lookup failed", "reply_id", r.ID, "error", err)
		return
	}
	if skip, reason := ShouldSkipAck(r, intent, acked); skip {
		logger.Debug("ack skipped", "reply_id", r.ID, "reason", reason)
		return
	}

	l, err := t.leads.Get(ctx, r.LeadID)
	if err != nil {
		logger.Warn("ack lead lookup failed", "reply_id", r.ID, "error", err)
		return
	}
	body, err := renderAck(l.CompanyName, t.sender.Name)
	if err != nil {
		logger.Warn("ack render failed", "reply_id", r.ID, "error", err)
		return
	}

	sent, err := t.sendOnThread(ctx, l, origin, "Re: "+origin.Subject, body, r.ProviderMessageID, threadID, domain.EmailAck)
	if err != nil {
		logger.Warn("ack send failed", "reply_id", r.ID, "error", err)
		return
	}
	if err := t.replies.MarkAcked(ctx, r.ID); err != nil {
		logger.Warn("ack bookkeeping failed", "reply_id", r.ID, "error", err)
	}
	logger.Info("ack sent", "reply_id", r.ID, "message_id", sent)
	rep.Acked++
}

// prepareDraft grounds and stores a response draft for human review.
func (t *Triage) prepareDraft(ctx context.Context, r *domain.InboundReply, intent domain.ReplyIntent, stage domain.ReplyStage, priorDraft, feedback string, rep *TriageReport) error {
	entries, err := t.knowledge.ListByProduct(ctx, t.sender.Product)
	if err != nil {
		return err
	}
	hits := RankKnowledge(entries, r.ReplyBody)
	coverage := CoverageOf(hits)

	// A question the corpus cannot answer goes to a human researcher
	// instead of a model guess.
	if coverage == CoverageNone && intent == domain.IntentQuestion {
		if err := t.replies.SetNeedsResearch(ctx, r.ID, "no knowledge coverage for question"); err != nil {
			return err
		}
		rep.NeedsResearch++
		return nil
	}

	l, err := t.leads.Get(ctx, r.LeadID)
	if err != nil {
		return err
	}
	draft, err := t.drafter.DraftReply(ctx, llm.ReplyInput{
		CompanyName:   l.CompanyName,
		ReplyBody:     r.ReplyBody,
		Intent:        string(intent),
		KnowledgeText: knowledgeText(hits),
		SenderName:    t.sender.Name,
		Product:       t.sender.Product,
		PriorDraft:    priorDraft,
		Feedback:      feedback,
	})
	if err != nil {
		return err
	}

	var hitsJSON []byte
	if len(hits) > 0 {
		hitsJSON, _ = json.Marshal(hits)
	}
	if err := t.replies.SetDraft(ctx, r.ID, draft.Subject, draft.Body, stage, hitsJSON); err != nil {
		return err
	}
	var ids []string
	for _, h := range hits {
		ids = append(ids, h.Entry.ID)
	}
	if err := t.knowledge.IncrementUseCount(ctx, ids); err != nil {
		logger.Warn("knowledge use count failed", "reply_id", r.ID, "error", err)
	}
	rep.Drafted++
	return nil
}

// Regenerate rebuilds the draft for a reply, folding in operator feedback.
func (t *Triage) Regenerate(ctx context.Context, replyID, feedback string) error {
	r, err := t.replies.Get(ctx, replyID)
	if err != nil {
		return err
	}
	if r.Intent == nil {
		return fmt.Errorf("reply %s has no intent yet", replyID)
	}
	prior := ""
	if r.AIDraftResponse != nil {
		prior = *r.AIDraftResponse
	}
	return t.prepareDraft(ctx, r, *r.Intent, domain.StageRegenerated, prior, feedback, &TriageReport{})
}

// Approve sends the prepared draft on the original thread and records the
// human approval. This is the only path that sends a substantive response.
func (t *Triage) Approve(ctx context.Context, replyID string) error {
	r, err := t.replies.Get(ctx, replyID)
	if err != nil {
		return err
	}
	if r.AIDraftResponse == nil || *r.AIDraftResponse == "" {
		return fmt.Errorf("reply %s has no draft to approve", replyID)
	}
	origin, err := t.messages.Get(ctx, r.MessageID)
	if err != nil {
		return err
	}
	l, err := t.leads.Get(ctx, r.LeadID)
	if err != nil {
		return err
	}
	if l.Status.IsTerminal() {
		return fmt.Errorf("lead %s left the pipeline (%s)", l.ID, l.Status)
	}

	subject := "Re: " + origin.Subject
	if r.AIDraftSubject != nil && *r.AIDraftSubject != "" {
		subject = *r.AIDraftSubject
	}
	threadID := ""
	if origin.ProviderThreadID != nil {
		threadID = *origin.ProviderThreadID
	}
	if _, err := t.sendOnThread(ctx, l, origin, subject, *r.AIDraftResponse, r.ProviderMessageID, threadID, domain.EmailReapproach); err != nil {
		return err
	}

	if err := t.replies.MarkApproved(ctx, r.ID); err != nil {
		return err
	}
	if err := t.leads.RecordExchange(ctx, r.LeadID); err != nil {
		logger.Warn("exchange count failed", "lead_id", r.LeadID, "error", err)
	}
	logger.Info("approved response sent", "reply_id", r.ID, "lead_id", r.LeadID)
	return nil
}

// sendOnThread delivers threaded mail and records it as a sent outbound
// message. Thread sends ride outside the daily dispatch budget: they answer
// a human who wrote to us, they don't start new conversations.
func (t *Triage) sendOnThread(ctx context.Context, l *domain.Lead, origin *domain.OutboundMessage, subject, body, inReplyTo, threadID string, emailType domain.EmailType) (string, error) {
	res, err := t.mailbox.Send(ctx, mailer.OutgoingMail{
		FromName:   t.sender.Name,
		FromEmail:  t.sender.Email,
		To:         l.Email,
		ToName:     l.CompanyName,
		Subject:    subject,
		TextBody:   body,
		InReplyTo:  inReplyTo,
		References: inReplyTo,
		ThreadID:   threadID,
	})
	if err != nil {
		return "", err
	}

	msg := &domain.OutboundMessage{
		LeadID:    l.ID,
		Subject:   subject,
		BodyText:  body,
		EmailType: emailType,
	}
	if err := t.messages.InsertSent(ctx, msg, res.ProviderMessageID, res.ThreadID, timeNow()); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func parseIntent(s string) domain.ReplyIntent {
	switch domain.ReplyIntent(strings.ToLower(strings.TrimSpace(s))) {
	case domain.IntentInterested:
		return domain.IntentInterested
	case domain.IntentNotInterested:
		return domain.IntentNotInterested
	case domain.IntentQuestion:
		return domain.IntentQuestion
	case domain.IntentOutOfOffice:
		return domain.IntentOutOfOffice
	case domain.IntentUnsubscribe:
		return domain.IntentUnsubscribe
	case domain.IntentSoftDecline:
		return domain.IntentSoftDecline
	case domain.IntentInternalReview:
		return domain.IntentInternalReview
	default:
		return domain.IntentInternalReview
	}
}
