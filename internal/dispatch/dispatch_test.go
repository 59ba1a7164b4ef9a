package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/mailer"
	"github.com/ignite/outreach/internal/service/lead"
)

// memLeads backs a real lead.Service.
type memLeads struct {
	mu             sync.Mutex
	leads          map[string]*domain.Lead
	gets           int
	badTransitions int
}

func (m *memLeads) Get(_ context.Context, id string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	l, ok := m.leads[id]
	if !ok {
		return nil, lead.ErrNotFound
	}
	cp := *l
	return &cp, nil
}
func (m *memLeads) GetByEmail(context.Context, string) (*domain.Lead, error) {
	return nil, lead.ErrNotFound
}
func (m *memLeads) List(context.Context, lead.ListFilter) ([]domain.Lead, int, error) {
	return nil, 0, nil
}
func (m *memLeads) Insert(_ context.Context, l *domain.Lead) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[l.ID] = l
	return true, nil
}
func (m *memLeads) UpdateStatus(_ context.Context, id string, from, to domain.LeadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.leads[id]
	if l.Status != from {
		m.badTransitions++
		return lead.ErrInvalidTransition
	}
	l.Status = to
	return nil
}
func (m *memLeads) SetStatus(_ context.Context, id string, to domain.LeadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[id].Status = to
	return nil
}
func (m *memLeads) UpdateQualification(context.Context, string, domain.Industry, *domain.IndustryDetail, int) error {
	return nil
}
func (m *memLeads) ListByStatus(context.Context, domain.LeadStatus, int) ([]domain.Lead, error) {
	return nil, nil
}
func (m *memLeads) IncrementExchanges(context.Context, string) error { return nil }

// memMessages holds an approved queue ordered by creation.
type memMessages struct {
	mu   sync.Mutex
	msgs map[string]*domain.OutboundMessage
}

func (m *memMessages) ListApproved(_ context.Context, limit int) ([]domain.OutboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OutboundMessage
	for _, msg := range m.msgs {
		if msg.Status == domain.MessageApproved {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memMessages) MarkSent(_ context.Context, id, providerMsgID, threadID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.msgs[id]
	msg.Status = domain.MessageSent
	msg.ProviderMessageID = &providerMsgID
	msg.ProviderThreadID = &threadID
	msg.SentAt = &at
	return nil
}

func (m *memMessages) UpdateStatus(_ context.Context, id string, from, to domain.MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[id].Status = to
	return nil
}

func (m *memMessages) countStatus(status domain.MessageStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs {
		if msg.Status == status {
			n++
		}
	}
	return n
}

// memStats implements the conditional slot counter.
type memStats struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memStats) SentToday(_ context.Context, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[date], nil
}

func (m *memStats) TryIncrement(_ context.Context, date string, cap int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[date] >= cap {
		return false, nil
	}
	m.counts[date]++
	return true, nil
}

type fakeTransport struct {
	mu    sync.Mutex
	sends []string
}

func (f *fakeTransport) Send(_ context.Context, m mailer.OutgoingMail) (*mailer.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, m.To)
	return &mailer.SendResult{ProviderMessageID: fmt.Sprintf("prov-%d", len(f.sends)), ThreadID: "t1"}, nil
}

type memActions struct {
	mu        sync.Mutex
	scheduled []domain.EmailType
}

func (m *memActions) Schedule(_ context.Context, _ string, action domain.EmailType, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled = append(m.scheduled, action)
	return nil
}

func fixture(n int) (*memLeads, *memMessages) {
	leads := &memLeads{leads: map[string]*domain.Lead{}}
	msgs := &memMessages{msgs: map[string]*domain.OutboundMessage{}}
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("l%02d", i)
		leads.leads[id] = &domain.Lead{
			ID: id, Email: fmt.Sprintf("u%02d@example.com", i), Status: domain.LeadApproved,
		}
		msgs.msgs["m"+id] = &domain.OutboundMessage{
			ID: "m" + id, LeadID: id, Subject: "hi", BodyText: "hello",
			EmailType: domain.EmailInitial, Status: domain.MessageApproved,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return leads, msgs
}

func newTestDispatcher(leads *memLeads, msgs *memMessages, stats *memStats, tr *fakeTransport, acts *memActions, cap int, interval time.Duration) (*Service, *[]time.Duration) {
	if acts == nil {
		acts = &memActions{}
	}
	var sleeps []time.Duration
	svc := NewService(msgs, stats, lead.NewService(leads), acts, tr, nil, cap, interval).
		WithClock(
			func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) },
			func(_ context.Context, d time.Duration) { sleeps = append(sleeps, d) },
		)
	return svc, &sleeps
}

func TestRunStopsAtDailyCap(t *testing.T) {
	leads, msgs := fixture(25)
	stats := &memStats{counts: map[string]int{}}
	tr := &fakeTransport{}
	svc, _ := newTestDispatcher(leads, msgs, stats, tr, nil, 20, time.Second)

	tally, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tally.Sent != 20 {
		t.Fatalf("sent = %d, want 20", tally.Sent)
	}
	if got := msgs.countStatus(domain.MessageApproved); got != 5 {
		t.Errorf("approved remaining = %d, want 5", got)
	}
	if got := msgs.countStatus(domain.MessageSent); got != 20 {
		t.Errorf("sent messages = %d, want 20", got)
	}
}

func TestCapHoldsAcrossRuns(t *testing.T) {
	leads, msgs := fixture(25)
	stats := &memStats{counts: map[string]int{}}
	tr := &fakeTransport{}
	svc, _ := newTestDispatcher(leads, msgs, stats, tr, nil, 20, 0)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	tally, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if tally.Sent != 0 {
		t.Fatalf("second run sent = %d, want 0", tally.Sent)
	}
	if len(tr.sends) != 20 {
		t.Fatalf("total sends = %d, want 20", len(tr.sends))
	}
}

func TestPacingSkipsPauseAfterLastSend(t *testing.T) {
	leads, msgs := fixture(3)
	stats := &memStats{counts: map[string]int{}}
	svc, sleeps := newTestDispatcher(leads, msgs, stats, &fakeTransport{}, nil, 20, 60*time.Second)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("paused %d times for 3 sends, want 2", len(*sleeps))
	}
}

func TestTerminalLeadRetiresMessageWithoutSending(t *testing.T) {
	leads, msgs := fixture(2)
	leads.leads["l00"].Status = domain.LeadUnsubscribed
	stats := &memStats{counts: map[string]int{}}
	tr := &fakeTransport{}
	svc, _ := newTestDispatcher(leads, msgs, stats, tr, nil, 20, 0)

	tally, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tally.Sent != 1 {
		t.Fatalf("sent = %d, want 1", tally.Sent)
	}
	if msgs.msgs["ml00"].Status != domain.MessageRejected {
		t.Errorf("message status = %s, want rejected", msgs.msgs["ml00"].Status)
	}
	if stats.counts["2026-08-28"] != 1 {
		t.Errorf("slots burned = %d, want 1 (no slot for the retired message)", stats.counts["2026-08-28"])
	}
}

func TestFollowupSendSkipsLeadTransition(t *testing.T) {
	leads, msgs := fixture(1)
	leads.leads["l00"].Status = domain.LeadSent
	msgs.msgs["ml00"].EmailType = domain.EmailFollowup1
	stats := &memStats{counts: map[string]int{}}
	svc, _ := newTestDispatcher(leads, msgs, stats, &fakeTransport{}, nil, 20, 0)

	tally, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tally.Sent != 1 {
		t.Fatalf("sent = %d, want 1", tally.Sent)
	}
	if leads.leads["l00"].Status != domain.LeadSent {
		t.Errorf("lead status = %s, want sent", leads.leads["l00"].Status)
	}
	// One lookup per message; a second lookup would mean a sent->sent
	// transition was attempted.
	if leads.gets != 1 {
		t.Errorf("lead lookups = %d, want 1", leads.gets)
	}
	if leads.badTransitions != 0 {
		t.Errorf("invalid transitions attempted = %d", leads.badTransitions)
	}
}

func TestInitialSendSchedulesFollowups(t *testing.T) {
	leads, msgs := fixture(1)
	stats := &memStats{counts: map[string]int{}}
	acts := &memActions{}
	svc, _ := newTestDispatcher(leads, msgs, stats, &fakeTransport{}, acts, 20, 0)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(acts.scheduled) != 2 {
		t.Fatalf("scheduled %d followups, want 2", len(acts.scheduled))
	}
	if acts.scheduled[0] != domain.EmailFollowup1 || acts.scheduled[1] != domain.EmailFollowup2 {
		t.Errorf("followups = %v", acts.scheduled)
	}
}
