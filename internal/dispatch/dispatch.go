// Package dispatch sends approved messages under the safety envelope: a
// hard daily cap, a minimum interval between sends, and a distributed lock
// so at most one run is active at a time. Nothing in this package drafts or
// approves mail; it only moves already-approved messages out the door.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/mailer"
	"github.com/ignite/outreach/internal/pkg/distlock"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/service/lead"
)

// ErrAlreadyRunning is returned when another dispatch run holds the lock.
var ErrAlreadyRunning = errors.New("dispatch already running")

// MessageStore is the message access the dispatcher needs.
type MessageStore interface {
	ListApproved(ctx context.Context, limit int) ([]domain.OutboundMessage, error)
	MarkSent(ctx context.Context, id, providerMsgID, threadID string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, from, to domain.MessageStatus) error
}

// StatsStore hands out daily send slots.
type StatsStore interface {
	SentToday(ctx context.Context, date string) (int, error)
	TryIncrement(ctx context.Context, date string, cap int) (bool, error)
}

// ActionScheduler plans follow-ups after a successful initial send.
type ActionScheduler interface {
	Schedule(ctx context.Context, leadID string, action domain.EmailType, dueAt time.Time) error
}

// Service is the dispatcher.
type Service struct {
	messages  MessageStore
	stats     StatsStore
	leads     *lead.Service
	actions   ActionScheduler
	transport mailer.Transport
	lock      distlock.DistLock

	cap         int
	minInterval time.Duration

	// Injection points for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewService(messages MessageStore, stats StatsStore, leads *lead.Service, actions ActionScheduler, transport mailer.Transport, lock distlock.DistLock, cap int, minInterval time.Duration) *Service {
	if cap <= 0 {
		cap = 20
	}
	return &Service{
		messages:    messages,
		stats:       stats,
		leads:       leads,
		actions:     actions,
		transport:   transport,
		lock:        lock,
		cap:         cap,
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Tally reports one dispatch run.
type Tally struct {
	Sent      int      `json:"sent"`
	Remaining int      `json:"remaining"`
	Errors    []string `json:"errors,omitempty"`
}

// followupOffsets are scheduled after a successful initial send.
var followupOffsets = []struct {
	action domain.EmailType
	after  time.Duration
}{
	{domain.EmailFollowup1, 3 * 24 * time.Hour},
	{domain.EmailFollowup2, 7 * 24 * time.Hour},
}

// Run sends approved messages oldest first until the queue or today's
// budget is exhausted. Consecutive sends are spaced by the minimum
// interval; the pause is skipped after the final send of the run.
func (s *Service) Run(ctx context.Context) (*Tally, error) {
	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrAlreadyRunning
		}
		defer s.lock.Release(context.WithoutCancel(ctx))
	}

	today := s.today()
	sent, err := s.stats.SentToday(ctx, today)
	if err != nil {
		return nil, err
	}
	remaining := s.cap - sent
	tally := &Tally{Remaining: remaining}
	if remaining <= 0 {
		logger.Info("daily send cap reached, nothing dispatched", "cap", s.cap)
		return tally, nil
	}

	queue, err := s.messages.ListApproved(ctx, remaining)
	if err != nil {
		return nil, err
	}

	for i := range queue {
		m := &queue[i]
		if err := ctx.Err(); err != nil {
			return tally, err
		}

		sentOne, err := s.sendOne(ctx, m, today)
		if err != nil {
			tally.Errors = append(tally.Errors, m.ID+": "+err.Error())
			if errors.Is(err, errBudgetExhausted) {
				break
			}
			continue
		}
		if sentOne {
			tally.Sent++
			tally.Remaining--
		}

		if i < len(queue)-1 && s.minInterval > 0 {
			s.sleep(ctx, s.minInterval)
		}
	}

	logger.Info("dispatch run complete", "sent", tally.Sent, "errors", len(tally.Errors))
	return tally, nil
}

var errBudgetExhausted = errors.New("daily send budget exhausted")

// sendOne ships a single approved message. The daily slot is reserved
// before the transport call; a transport failure therefore burns the slot,
// which errs on the side of sending less, never more.
func (s *Service) sendOne(ctx context.Context, m *domain.OutboundMessage, today string) (bool, error) {
	l, err := s.leads.Get(ctx, m.LeadID)
	if err != nil {
		return false, err
	}
	if l.Status.IsTerminal() {
		// The lead opted out after approval. Retire the message instead
		// of sending it.
		if err := s.messages.UpdateStatus(ctx, m.ID, domain.MessageApproved, domain.MessageRejected); err != nil {
			return false, err
		}
		logger.Info("message retired, lead left the pipeline", "lead_id", l.ID, "status", l.Status)
		return false, nil
	}

	ok, err := s.stats.TryIncrement(ctx, today, s.cap)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errBudgetExhausted
	}

	res, err := s.transport.Send(ctx, mailer.OutgoingMail{
		To:       l.Email,
		ToName:   l.CompanyName,
		Subject:  m.Subject,
		TextBody: m.BodyText,
		HTMLBody: m.BodyHTML,
	})
	if err != nil {
		return false, err
	}

	if err := s.messages.MarkSent(ctx, m.ID, res.ProviderMessageID, res.ThreadID, s.now()); err != nil {
		return false, err
	}
	// Follow-ups go out to leads that are already sent; only the first
	// send moves the lead.
	if l.Status != domain.LeadSent {
		if err := s.leads.Transition(ctx, l.ID, domain.LeadSent); err != nil {
			logger.Warn("lead transition to sent failed", "lead_id", l.ID, "error", err)
		}
	}

	if s.actions != nil && m.EmailType == domain.EmailInitial {
		for _, f := range followupOffsets {
			if err := s.actions.Schedule(ctx, l.ID, f.action, s.now().Add(f.after)); err != nil {
				logger.Warn("followup scheduling failed", "lead_id", l.ID, "action", string(f.action), "error", err)
			}
		}
	}

	logger.Info("message sent", "lead_id", l.ID, "email", l.Email, "message_id", m.ID)
	return true, nil
}

func (s *Service) today() string {
	return s.now().UTC().Format("2006-01-02")
}

// WithClock overrides time functions, used by tests.
func (s *Service) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration)) *Service {
	s.now = now
	s.sleep = sleep
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
