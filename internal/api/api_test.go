package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/ignite/outreach/internal/discovery"
	"github.com/ignite/outreach/internal/dispatch"
	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/replies"
	"github.com/ignite/outreach/internal/repository/postgres"
	"github.com/ignite/outreach/internal/service/lead"
)

const testSecret = "test-secret"

// memLeadRepo backs a real lead.Service.
type memLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*domain.Lead
}

func newMemLeadRepo() *memLeadRepo {
	return &memLeadRepo{leads: map[string]*domain.Lead{}}
}

func (m *memLeadRepo) Get(_ context.Context, id string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, lead.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLeadRepo) GetByEmail(_ context.Context, email string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.Email == email {
			cp := *l
			return &cp, nil
		}
	}
	return nil, lead.ErrNotFound
}

func (m *memLeadRepo) List(_ context.Context, f lead.ListFilter) ([]domain.Lead, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.leads {
		if f.Status != "" && string(l.Status) != f.Status {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memLeadRepo) Insert(_ context.Context, l *domain.Lead) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.leads {
		if existing.Email == l.Email {
			return false, nil
		}
	}
	m.leads[l.ID] = l
	return true, nil
}

func (m *memLeadRepo) UpdateStatus(_ context.Context, id string, from, to domain.LeadStatus) error {
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

func (m *memLeadRepo) SetStatus(_ context.Context, id string, to domain.LeadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return lead.ErrNotFound
	}
	l.Status = to
	return nil
}

func (m *memLeadRepo) UpdateQualification(_ context.Context, id string, industry domain.Industry, detail *domain.IndustryDetail, score int) error {
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

func (m *memLeadRepo) ListByStatus(_ context.Context, status domain.LeadStatus, limit int) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.leads {
		if l.Status == status {
			out = append(out, *l)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLeadRepo) IncrementExchanges(context.Context, string) error { return nil }

// memDrafts implements DraftStore.
type memDrafts struct {
	mu   sync.Mutex
	msgs map[string]*domain.OutboundMessage
}

func (m *memDrafts) ListDrafts(_ context.Context, leadID string, limit int) ([]domain.OutboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OutboundMessage
	for _, msg := range m.msgs {
		if msg.Status != domain.MessageDraft {
			continue
		}
		if leadID != "" && msg.LeadID != leadID {
			continue
		}
		out = append(out, *msg)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memDrafts) Get(_ context.Context, id string) (*domain.OutboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return nil, postgres.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memDrafts) UpdateStatus(_ context.Context, id string, from, to domain.MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return postgres.ErrMessageNotFound
	}
	if msg.Status != from {
		return postgres.ErrStatusConflict
	}
	msg.Status = to
	return nil
}

func (m *memDrafts) HasApprovedForLead(_ context.Context, leadID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.LeadID == leadID && msg.Status == domain.MessageApproved {
			return true, nil
		}
	}
	return false, nil
}

type fakeDispatcher struct {
	tally *dispatch.Tally
	err   error
}

func (f *fakeDispatcher) Run(context.Context) (*dispatch.Tally, error) { return f.tally, f.err }

type fakeMonitor struct{}

func (f *fakeMonitor) Check(context.Context, int) (*replies.MonitorReport, error) {
	return &replies.MonitorReport{}, nil
}

type fakeTriager struct {
	approved []string
}

func (f *fakeTriager) Run(context.Context, int) (*replies.TriageReport, error) {
	return &replies.TriageReport{}, nil
}

func (f *fakeTriager) Approve(_ context.Context, id string) error {
	if id == "missing" {
		return postgres.ErrReplyNotFound
	}
	f.approved = append(f.approved, id)
	return nil
}

func (f *fakeTriager) Regenerate(context.Context, string, string) error { return nil }

// fakeQualifier marks leads analyzed with a fixed score.
type fakeQualifier struct {
	repo  *memLeadRepo
	score int
}

func (f *fakeQualifier) QualifyLead(ctx context.Context, l *domain.Lead) error {
	if err := f.repo.UpdateQualification(ctx, l.ID, domain.IndustryECRetail, nil, f.score); err != nil {
		return err
	}
	return f.repo.UpdateStatus(ctx, l.ID, domain.LeadNew, domain.LeadAnalyzed)
}

func (f *fakeQualifier) Threshold() int { return 40 }

type fakeComposer struct {
	composed []string
}

func (f *fakeComposer) ComposeFor(_ context.Context, l *domain.Lead, _ domain.EmailType) error {
	f.composed = append(f.composed, l.ID)
	return nil
}

type fakeDiscovery struct {
	rep *discovery.Report
}

func (f *fakeDiscovery) Run(context.Context, []string, string, int) (*discovery.Report, error) {
	return f.rep, nil
}

type fakeReplyLister struct{}

func (f *fakeReplyLister) ListPending(context.Context, int) ([]domain.InboundReply, error) {
	return nil, nil
}

type fixture struct {
	repo     *memLeadRepo
	drafts   *memDrafts
	composer *fakeComposer
	triager  *fakeTriager
	handler  http.Handler
}

func newFixture(t *testing.T, disp *fakeDispatcher, disc *fakeDiscovery) *fixture {
	t.Helper()
	repo := newMemLeadRepo()
	drafts := &memDrafts{msgs: map[string]*domain.OutboundMessage{}}
	comp := &fakeComposer{}
	tri := &fakeTriager{}
	leads := lead.NewService(repo)

	if disp == nil {
		disp = &fakeDispatcher{tally: &dispatch.Tally{}}
	}
	if disc == nil {
		disc = &fakeDiscovery{rep: &discovery.Report{}}
	}

	h := NewHandlers(leads, drafts, &fakeReplyLister{},
		&fakeQualifier{repo: repo, score: 80}, comp, disc, disp, &fakeMonitor{}, tri, nil)
	return &fixture{
		repo:     repo,
		drafts:   drafts,
		composer: comp,
		triager:  tri,
		handler:  NewServer(h, testSecret).Handler(),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequiredOnProtectedRoutes(t *testing.T) {
	f := newFixture(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/dispatch/send", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/dispatch/send", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health without token: status = %d, want 200", rec.Code)
	}
}

func TestDispatchSendReportsTally(t *testing.T) {
	f := newFixture(t, &fakeDispatcher{tally: &dispatch.Tally{Sent: 7, Remaining: 13}}, nil)

	rec := f.do(t, http.MethodPost, "/dispatch/send", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var tally dispatch.Tally
	if err := json.Unmarshal(rec.Body.Bytes(), &tally); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tally.Sent != 7 {
		t.Errorf("sent = %d, want 7", tally.Sent)
	}
}

func TestDispatchSendConflictsWhileRunning(t *testing.T) {
	f := newFixture(t, &fakeDispatcher{err: dispatch.ErrAlreadyRunning}, nil)

	rec := f.do(t, http.MethodPost, "/dispatch/send", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestApproveDraftEnforcesOneInFlight(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.repo.leads["l1"] = &domain.Lead{ID: "l1", Email: "a@example.com", Status: domain.LeadDraftReady}
	f.drafts.msgs["m1"] = &domain.OutboundMessage{ID: "m1", LeadID: "l1", Status: domain.MessageDraft}
	f.drafts.msgs["m2"] = &domain.OutboundMessage{ID: "m2", LeadID: "l1", Status: domain.MessageDraft}

	rec := f.do(t, http.MethodPost, "/drafts/m1/approve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first approve: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if f.drafts.msgs["m1"].Status != domain.MessageApproved {
		t.Errorf("m1 status = %s, want approved", f.drafts.msgs["m1"].Status)
	}
	if f.repo.leads["l1"].Status != domain.LeadApproved {
		t.Errorf("lead status = %s, want approved", f.repo.leads["l1"].Status)
	}

	rec = f.do(t, http.MethodPost, "/drafts/m2/approve", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second approve: status = %d, want 409", rec.Code)
	}
	if f.drafts.msgs["m2"].Status != domain.MessageDraft {
		t.Errorf("m2 status = %s, want draft", f.drafts.msgs["m2"].Status)
	}
}

func TestRejectLastDraftReturnsLeadToNew(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.repo.leads["l1"] = &domain.Lead{ID: "l1", Email: "a@example.com", Status: domain.LeadDraftReady}
	f.drafts.msgs["m1"] = &domain.OutboundMessage{ID: "m1", LeadID: "l1", Status: domain.MessageDraft}
	f.drafts.msgs["m2"] = &domain.OutboundMessage{ID: "m2", LeadID: "l1", Status: domain.MessageDraft}

	rec := f.do(t, http.MethodPost, "/drafts/m1/reject", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first reject: status = %d", rec.Code)
	}
	if f.repo.leads["l1"].Status != domain.LeadDraftReady {
		t.Fatalf("lead moved early: %s", f.repo.leads["l1"].Status)
	}

	rec = f.do(t, http.MethodPost, "/drafts/m2/reject", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second reject: status = %d", rec.Code)
	}
	if f.repo.leads["l1"].Status != domain.LeadNew {
		t.Errorf("lead status = %s, want new", f.repo.leads["l1"].Status)
	}
}

func TestManualLeadRunsIntakePipeline(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodPost, "/leads/manual", map[string]string{
		"company_name": "Acme Diner",
		"email":        "owner@acmediner.example",
		"website_url":  "https://acmediner.example",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Qualified bool `json:"qualified"`
		Drafted   bool `json:"drafted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Qualified || !resp.Drafted {
		t.Errorf("qualified=%v drafted=%v, want both true", resp.Qualified, resp.Drafted)
	}
	if len(f.composer.composed) != 1 {
		t.Errorf("composed %d leads, want 1", len(f.composer.composed))
	}

	// Same email again is a conflict.
	rec = f.do(t, http.MethodPost, "/leads/manual", map[string]string{
		"company_name": "Acme Diner",
		"email":        "owner@acmediner.example",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: status = %d, want 409", rec.Code)
	}
}

func TestBulkCreateReportsAddedAndSkipped(t *testing.T) {
	f := newFixture(t, nil, nil)
	body := map[string]any{"leads": []map[string]string{
		{"company_name": "A", "email": "a@example.com"},
		{"company_name": "B", "email": "b@example.com"},
		{"company_name": "A again", "email": "a@example.com"},
	}}

	rec := f.do(t, http.MethodPost, "/leads/bulk", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res lead.BulkResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Added != 2 || res.Skipped != 1 {
		t.Errorf("added=%d skipped=%d, want 2/1", res.Added, res.Skipped)
	}
}

func TestDiscoveryRunRejectsFullyFailedBatch(t *testing.T) {
	f := newFixture(t, nil, &fakeDiscovery{rep: &discovery.Report{
		Errors: []string{"https://blocked.example: crawling forbidden by robots.txt"},
	}})

	rec := f.do(t, http.MethodPost, "/discovery/run", map[string]string{
		"seed_url": "https://blocked.example",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestApproveReplyMapsNotFound(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodPost, "/replies/missing/approve", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/replies/r1/approve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(f.triager.approved) != 1 || f.triager.approved[0] != "r1" {
		t.Errorf("approved = %v, want [r1]", f.triager.approved)
	}
}
