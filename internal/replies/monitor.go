package replies

import (
	"context"
	"strings"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/mailer"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/service/lead"
)

// Monitor polls sent threads for inbound mail and records what it finds.
type Monitor struct {
	mailbox   mailer.Mailbox
	messages  MessageStore
	replies   ReplyStore
	leads     *lead.Service
	actions   ActionStore
	selfEmail string
}

func NewMonitor(mailbox mailer.Mailbox, messages MessageStore, replies ReplyStore, leads *lead.Service, actions ActionStore, selfEmail string) *Monitor {
	return &Monitor{
		mailbox:   mailbox,
		messages:  messages,
		replies:   replies,
		leads:     leads,
		actions:   actions,
		selfEmail: strings.ToLower(selfEmail),
	}
}

// MonitorReport summarizes one polling pass.
type MonitorReport struct {
	ThreadsChecked int `json:"threads_checked"`
	NewReplies     int `json:"new_replies"`
	Bounces        int `json:"bounces"`
	Cancelled      int `json:"followups_cancelled"`
}

// Check polls every sent thread. Known provider message ids are skipped at
// the store, so re-polling is harmless. A failed thread is logged and the
// pass continues.
func (m *Monitor) Check(ctx context.Context, limit int) (*MonitorReport, error) {
	sent, err := m.messages.ListSentWithThread(ctx, limit)
	if err != nil {
		return nil, err
	}

	rep := &MonitorReport{}
	for i := range sent {
		msg := &sent[i]
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := m.checkThread(ctx, msg, rep); err != nil {
			logger.Warn("thread check failed", "message_id", msg.ID, "error", err)
		}
		rep.ThreadsChecked++
	}
	logger.Info("reply check complete",
		"threads", rep.ThreadsChecked, "new_replies", rep.NewReplies,
		"bounces", rep.Bounces, "cancelled", rep.Cancelled)
	return rep, nil
}

func (m *Monitor) checkThread(ctx context.Context, msg *domain.OutboundMessage, rep *MonitorReport) error {
	threadID := ""
	if msg.ProviderThreadID != nil {
		threadID = *msg.ProviderThreadID
	}
	thread, err := m.mailbox.ListThread(ctx, threadID)
	if err != nil {
		return err
	}

	for _, tm := range thread {
		if m.isOwnMessage(msg, tm) {
			continue
		}
		if isBounce(tm) {
			if err := m.recordBounce(ctx, msg); err != nil {
				return err
			}
			rep.Bounces++
			continue
		}
		inserted, err := m.recordReply(ctx, msg, tm, rep)
		if err != nil {
			return err
		}
		if inserted {
			rep.NewReplies++
		}
	}
	return nil
}

func (m *Monitor) isOwnMessage(msg *domain.OutboundMessage, tm mailer.ThreadMessage) bool {
	if msg.ProviderMessageID != nil && tm.ProviderMessageID == *msg.ProviderMessageID {
		return true
	}
	return m.selfEmail != "" && strings.Contains(strings.ToLower(tm.From), m.selfEmail)
}

// isBounce recognizes delivery failure notifications by sender and subject.
func isBounce(tm mailer.ThreadMessage) bool {
	from := strings.ToLower(tm.From)
	if strings.Contains(from, "mailer-daemon") || strings.Contains(from, "postmaster") {
		return true
	}
	subject := strings.ToLower(tm.Subject)
	for _, marker := range []string{"delivery status notification", "undeliverable", "mail delivery failed", "returned mail"} {
		if strings.Contains(subject, marker) {
			return true
		}
	}
	return false
}

func (m *Monitor) recordBounce(ctx context.Context, msg *domain.OutboundMessage) error {
	if err := m.messages.MarkBounced(ctx, msg.ID); err != nil {
		return err
	}
	if err := m.leads.Transition(ctx, msg.LeadID, domain.LeadBounced); err != nil {
		logger.Warn("bounce transition failed", "lead_id", msg.LeadID, "error", err)
	}
	n, err := m.actions.CancelPending(ctx, msg.LeadID)
	if err != nil {
		return err
	}
	logger.Info("bounce recorded", "lead_id", msg.LeadID, "followups_cancelled", n)
	return nil
}

func (m *Monitor) recordReply(ctx context.Context, msg *domain.OutboundMessage, tm mailer.ThreadMessage, rep *MonitorReport) (bool, error) {
	inserted, err := m.replies.Insert(ctx, &domain.InboundReply{
		MessageID:         msg.ID,
		LeadID:            msg.LeadID,
		ProviderMessageID: tm.ProviderMessageID,
		ReplyBody:         tm.Body,
		AutoSubmitted:     IsAutoSubmitted(tm.Headers),
	})
	if err != nil || !inserted {
		return false, err
	}

	if err := m.leads.Transition(ctx, msg.LeadID, domain.LeadReplied); err != nil {
		// Second reply on the same lead: already in replied.
		logger.Debug("reply transition skipped", "lead_id", msg.LeadID, "error", err)
	}
	n, err := m.actions.CancelPending(ctx, msg.LeadID)
	if err != nil {
		return true, err
	}
	rep.Cancelled += n
	logger.Info("reply recorded", "lead_id", msg.LeadID, "followups_cancelled", n)
	return true, nil
}
