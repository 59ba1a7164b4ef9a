package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/llm"
	"github.com/ignite/outreach/internal/service/lead"
)

// memLeads is the minimal lead.Repository for composer runs.
type memLeads struct {
	leads map[string]*domain.Lead
}

func (m *memLeads) Get(_ context.Context, id string) (*domain.Lead, error) {
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
	m.leads[l.ID] = l
	return true, nil
}
func (m *memLeads) UpdateStatus(_ context.Context, id string, from, to domain.LeadStatus) error {
	l := m.leads[id]
	if l.Status != from {
		return lead.ErrInvalidTransition
	}
	l.Status = to
	return nil
}
func (m *memLeads) SetStatus(_ context.Context, id string, to domain.LeadStatus) error {
	m.leads[id].Status = to
	return nil
}
func (m *memLeads) UpdateQualification(context.Context, string, domain.Industry, *domain.IndustryDetail, int) error {
	return nil
}
func (m *memLeads) ListByStatus(_ context.Context, status domain.LeadStatus, _ int) ([]domain.Lead, error) {
	var out []domain.Lead
	for _, l := range m.leads {
		if l.Status == status {
			out = append(out, *l)
		}
	}
	return out, nil
}
func (m *memLeads) IncrementExchanges(context.Context, string) error { return nil }

type memMessages struct {
	inserted []domain.OutboundMessage
}

func (m *memMessages) Insert(_ context.Context, msg *domain.OutboundMessage) error {
	m.inserted = append(m.inserted, *msg)
	return nil
}

// scriptedDrafter fails for the variants named in fail.
type scriptedDrafter struct {
	fail map[string]bool
}

func (d *scriptedDrafter) DraftEmail(_ context.Context, in llm.EmailInput) (*llm.EmailDraft, error) {
	if d.fail[in.Variant] {
		return nil, errors.New("model refused")
	}
	return &llm.EmailDraft{
		Subject:  "A thought for " + in.CompanyName,
		BodyText: "Hi there.\n\nSaw your work, wanted to reach out.",
	}, nil
}

func newTestService(repo *memLeads, msgs *memMessages, drafter Drafter) *Service {
	return NewService(lead.NewService(repo), drafter, msgs, nil,
		Sender{Name: "Sam", Product: "Ignite"}, 40)
}

func TestRunDraftsTwoVariantsAboveCutoff(t *testing.T) {
	repo := &memLeads{leads: map[string]*domain.Lead{
		"hot":  {ID: "hot", CompanyName: "Acme", Status: domain.LeadAnalyzed, ICPScore: 70},
		"cold": {ID: "cold", CompanyName: "Meh", Status: domain.LeadAnalyzed, ICPScore: 10},
	}}
	msgs := &memMessages{}
	svc := newTestService(repo, msgs, &scriptedDrafter{})

	rep, err := svc.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Drafted != 1 || rep.BelowCutoff != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(msgs.inserted) != 2 {
		t.Fatalf("inserted %d messages, want 2 variants", len(msgs.inserted))
	}
	if msgs.inserted[0].Variant == msgs.inserted[1].Variant {
		t.Error("both variants are the same")
	}
	for _, m := range msgs.inserted {
		if m.Status != domain.MessageDraft {
			t.Errorf("message status = %s, want draft", m.Status)
		}
	}
	if repo.leads["hot"].Status != domain.LeadDraftReady {
		t.Errorf("hot lead status = %s, want draft_ready", repo.leads["hot"].Status)
	}
	if repo.leads["cold"].Status != domain.LeadAnalyzed {
		t.Errorf("cold lead status = %s, want analyzed (untouched)", repo.leads["cold"].Status)
	}
}

func TestPartialVariantFailureStillAdvancesLead(t *testing.T) {
	repo := &memLeads{leads: map[string]*domain.Lead{
		"l1": {ID: "l1", CompanyName: "Acme", Status: domain.LeadAnalyzed, ICPScore: 70},
	}}
	msgs := &memMessages{}
	svc := newTestService(repo, msgs, &scriptedDrafter{fail: map[string]bool{"direct": true}})

	rep, err := svc.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Drafted != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(msgs.inserted) != 1 {
		t.Fatalf("inserted %d, want 1", len(msgs.inserted))
	}
	if repo.leads["l1"].Status != domain.LeadDraftReady {
		t.Errorf("status = %s, want draft_ready", repo.leads["l1"].Status)
	}
}

func TestTotalFailureLeavesLeadAnalyzed(t *testing.T) {
	repo := &memLeads{leads: map[string]*domain.Lead{
		"l1": {ID: "l1", CompanyName: "Acme", Status: domain.LeadAnalyzed, ICPScore: 70},
	}}
	msgs := &memMessages{}
	svc := newTestService(repo, msgs, &scriptedDrafter{fail: map[string]bool{"warm": true, "direct": true}})

	rep, err := svc.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Failed != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if repo.leads["l1"].Status != domain.LeadAnalyzed {
		t.Errorf("status = %s, want analyzed for retry", repo.leads["l1"].Status)
	}
}

func TestRenderHTMLSplitsParagraphs(t *testing.T) {
	html, err := renderHTML("First line.\n\nSecond thought.", "Sam")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "<p>First line.</p>") || !strings.Contains(html, "<p>Second thought.</p>") {
		t.Errorf("paragraphs not rendered:\n%s", html)
	}
	if !strings.Contains(html, "Sam") {
		t.Errorf("sender name missing:\n%s", html)
	}
}
