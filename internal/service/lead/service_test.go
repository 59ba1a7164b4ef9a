package lead_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/service/lead"
)

// memRepo is an in-memory lead repository for unit testing.
type memRepo struct {
	mu      sync.Mutex
	leads   map[string]*domain.Lead // keyed by id
	byEmail map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{leads: make(map[string]*domain.Lead), byEmail: make(map[string]string)}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, lead.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, lead.ErrNotFound
	}
	cp := *m.leads[id]
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f lead.ListFilter) ([]domain.Lead, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.leads {
		if f.Status != "" && string(l.Status) != f.Status {
			continue
		}
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (m *memRepo) Insert(_ context.Context, l *domain.Lead) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byEmail[l.Email]; dup {
		return false, nil
	}
	cp := *l
	m.leads[cp.ID] = &cp
	m.byEmail[cp.Email] = cp.ID
	return true, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, from, to domain.LeadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return lead.ErrNotFound
	}
	if l.Status != from {
		return lead.ErrInvalidTransition
	}
	l.Status = to
	return nil
}

func (m *memRepo) SetStatus(_ context.Context, id string, to domain.LeadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return lead.ErrNotFound
	}
	l.Status = to
	return nil
}

func (m *memRepo) UpdateQualification(_ context.Context, id string, industry domain.Industry, detail *domain.IndustryDetail, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return lead.ErrNotFound
	}
	l.Industry = industry
	l.IndustryDetail = detail
	l.ICPScore = score
	return nil
}

func (m *memRepo) ListByStatus(_ context.Context, status domain.LeadStatus, limit int) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.leads {
		if l.Status == status {
			out = append(out, *l)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memRepo) IncrementExchanges(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return lead.ErrNotFound
	}
	l.TotalExchanges++
	return nil
}

func TestCreateNormalizesAndDeduplicates(t *testing.T) {
	svc := lead.NewService(newMemRepo())
	ctx := context.Background()

	l, err := svc.Create(ctx, lead.CreateInput{CompanyName: "Acme", Email: " Jane.Doe@Example.COM "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Email != "jane.doe@example.com" {
		t.Errorf("email not normalized: %q", l.Email)
	}
	if l.Status != domain.LeadNew {
		t.Errorf("status = %s, want new", l.Status)
	}

	_, err = svc.Create(ctx, lead.CreateInput{CompanyName: "Acme", Email: "jane.doe@example.com"})
	if err != lead.ErrDuplicateEmail {
		t.Errorf("duplicate create err = %v, want ErrDuplicateEmail", err)
	}
}

func TestBulkCreateIsIdempotent(t *testing.T) {
	svc := lead.NewService(newMemRepo())
	ctx := context.Background()

	batch := []lead.CreateInput{
		{CompanyName: "A", Email: "a@example.com"},
		{CompanyName: "B", Email: "b@example.com"},
		{CompanyName: "Bad", Email: "not-an-email"},
	}

	res, err := svc.BulkCreate(ctx, batch)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if res.Added != 2 || res.Skipped != 1 {
		t.Fatalf("first bulk = %+v, want added=2 skipped=1", res)
	}

	res, err = svc.BulkCreate(ctx, batch)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if res.Added != 0 || res.Skipped != 3 {
		t.Fatalf("second bulk = %+v, want added=0 skipped=3", res)
	}
}

func TestTransitionEnforcesStateMachine(t *testing.T) {
	svc := lead.NewService(newMemRepo())
	ctx := context.Background()

	l, err := svc.Create(ctx, lead.CreateInput{CompanyName: "Acme", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// new -> sent skips the pipeline and must be refused.
	if err := svc.Transition(ctx, l.ID, domain.LeadSent); err == nil {
		t.Fatal("expected invalid transition error for new -> sent")
	}

	for _, to := range []domain.LeadStatus{domain.LeadAnalyzed, domain.LeadDraftReady, domain.LeadApproved, domain.LeadSent, domain.LeadReplied} {
		if err := svc.Transition(ctx, l.ID, to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
}

func TestUnsubscribeFromAnyNonTerminal(t *testing.T) {
	svc := lead.NewService(newMemRepo())
	ctx := context.Background()

	l, _ := svc.Create(ctx, lead.CreateInput{CompanyName: "Acme", Email: "a@example.com"})
	if err := svc.Unsubscribe(ctx, l.ID); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	got, _ := svc.Get(ctx, l.ID)
	if got.Status != domain.LeadUnsubscribed {
		t.Fatalf("status = %s, want unsubscribed", got.Status)
	}

	// Idempotent on an already-unsubscribed lead.
	if err := svc.Unsubscribe(ctx, l.ID); err != nil {
		t.Fatalf("repeat unsubscribe: %v", err)
	}
}

func TestDeclineRefusedAfterReply(t *testing.T) {
	svc := lead.NewService(newMemRepo())
	ctx := context.Background()

	l, _ := svc.Create(ctx, lead.CreateInput{CompanyName: "Acme", Email: "a@example.com"})
	for _, to := range []domain.LeadStatus{domain.LeadAnalyzed, domain.LeadDraftReady, domain.LeadApproved, domain.LeadSent, domain.LeadReplied} {
		if err := svc.Transition(ctx, l.ID, to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	if err := svc.Decline(ctx, l.ID); err == nil {
		t.Fatal("expected decline to be refused for a replied lead")
	}
}

func TestResetReturnsTerminalLeadToPipeline(t *testing.T) {
	svc := lead.NewService(newMemRepo())
	ctx := context.Background()

	l, _ := svc.Create(ctx, lead.CreateInput{CompanyName: "Acme", Email: "a@example.com"})
	if err := svc.Decline(ctx, l.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := svc.Reset(ctx, l.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, _ := svc.Get(ctx, l.ID)
	if got.Status != domain.LeadNew {
		t.Fatalf("status = %s, want new", got.Status)
	}
}

func TestHooksNeverRollBackTransition(t *testing.T) {
	svc := lead.NewService(newMemRepo())
	svc.OnTransition(func(_ context.Context, _ *domain.Lead, _, _ domain.LeadStatus) {
		panic("notification service down")
	})
	ctx := context.Background()

	l, _ := svc.Create(ctx, lead.CreateInput{CompanyName: "Acme", Email: "a@example.com"})
	if err := svc.Transition(ctx, l.ID, domain.LeadAnalyzed); err != nil {
		t.Fatalf("transition should survive hook panic: %v", err)
	}
	got, _ := svc.Get(ctx, l.ID)
	if got.Status != domain.LeadAnalyzed {
		t.Fatalf("status = %s, want analyzed", got.Status)
	}
}
