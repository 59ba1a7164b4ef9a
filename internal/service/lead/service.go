package lead

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/pkg/logger"
)

// Hook is a best-effort side effect fired after a successful transition.
// Failures are logged and swallowed; they never roll back the transition.
type Hook func(ctx context.Context, l *domain.Lead, from, to domain.LeadStatus)

// Service implements lead business logic. It is the only component allowed
// to change a lead's status, and it refuses any edge not present in the
// domain transition table.
type Service struct {
	repo  Repository
	hooks []Hook
}

// NewService creates a lead service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// OnTransition registers a post-transition hook.
func (s *Service) OnTransition(h Hook) { s.hooks = append(s.hooks, h) }

// Get returns a single lead.
func (s *Service) Get(ctx context.Context, id string) (*domain.Lead, error) {
	return s.repo.Get(ctx, id)
}

// List returns leads matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Lead, int, error) {
	return s.repo.List(ctx, f)
}

// CreateInput holds the fields for creating a lead directly.
type CreateInput struct {
	CompanyName     string `json:"company_name"`
	Email           string `json:"email"`
	WebsiteURL      string `json:"website_url"`
	SourceURL       string `json:"source_url"`
	DiscoveryMethod string `json:"discovery_method"`
	SourceQuery     string `json:"source_query"`
	EstimatedScale  string `json:"estimated_scale"`
}

// Create validates and persists a new lead in "new" status.
// Returns ErrDuplicateEmail when the address is already known.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Lead, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("valid email is required")
	}
	if input.CompanyName == "" {
		return nil, fmt.Errorf("company_name is required")
	}
	method := input.DiscoveryMethod
	if method == "" {
		method = "manual"
	}

	l := &domain.Lead{
		ID:              uuid.New().String(),
		CompanyName:     input.CompanyName,
		Email:           email,
		WebsiteURL:      input.WebsiteURL,
		SourceURL:       input.SourceURL,
		Industry:        domain.IndustryOther,
		Status:          domain.LeadNew,
		Phase:           domain.PhaseInitial,
		DiscoveryMethod: method,
		SourceQuery:     input.SourceQuery,
		EstimatedScale:  input.EstimatedScale,
	}

	inserted, err := s.repo.Insert(ctx, l)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ErrDuplicateEmail
	}
	return l, nil
}

// BulkResult reports the outcome of a bulk insert.
type BulkResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// BulkCreate inserts many leads, skipping duplicates by email. The call is
// idempotent: re-submitting the same batch adds nothing and reports every
// row as skipped.
func (s *Service) BulkCreate(ctx context.Context, inputs []CreateInput) (BulkResult, error) {
	var res BulkResult
	for _, in := range inputs {
		_, err := s.Create(ctx, in)
		switch {
		case err == nil:
			res.Added++
		case err == ErrDuplicateEmail:
			res.Skipped++
		default:
			// Malformed single record: discard it, continue the batch.
			logger.Warn("bulk create: skipping invalid lead", "company", in.CompanyName, "error", err)
			res.Skipped++
		}
	}
	return res, nil
}

// Transition moves a lead along one edge of the state machine.
// Returns ErrInvalidTransition for any edge not in the domain table.
func (s *Service) Transition(ctx context.Context, id string, to domain.LeadStatus) error {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	from := l.Status
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, from, to); err != nil {
		return err
	}
	s.fireHooks(ctx, l, from, to)
	return nil
}

// Unsubscribe moves a lead to unsubscribed from any non-terminal state.
// Used on explicit opt-out signals; terminal leads are left untouched.
func (s *Service) Unsubscribe(ctx context.Context, id string) error {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if l.Status == domain.LeadUnsubscribed {
		return nil
	}
	if l.Status.IsTerminal() {
		return ErrTerminal
	}
	if err := s.repo.SetStatus(ctx, id, domain.LeadUnsubscribed); err != nil {
		return err
	}
	s.fireHooks(ctx, l, l.Status, domain.LeadUnsubscribed)
	return nil
}

// Decline is the operator override that removes a lead from automated
// processing. Allowed from any pre-reply state.
func (s *Service) Decline(ctx context.Context, id string) error {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	switch l.Status {
	case domain.LeadNew, domain.LeadAnalyzed, domain.LeadDraftReady, domain.LeadApproved, domain.LeadSent:
	default:
		return fmt.Errorf("%w: %s -> declined", ErrInvalidTransition, l.Status)
	}
	if err := s.repo.SetStatus(ctx, id, domain.LeadDeclined); err != nil {
		return err
	}
	s.fireHooks(ctx, l, l.Status, domain.LeadDeclined)
	return nil
}

// Reset returns a lead to "new" so it re-enters the pipeline. This is a
// manual operator action and is the only path out of a terminal state.
func (s *Service) Reset(ctx context.Context, id string) error {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if l.Status == domain.LeadNew {
		return nil
	}
	if err := s.repo.SetStatus(ctx, id, domain.LeadNew); err != nil {
		return err
	}
	s.fireHooks(ctx, l, l.Status, domain.LeadNew)
	return nil
}

// ListByStatus returns up to limit leads in the given status, oldest first.
func (s *Service) ListByStatus(ctx context.Context, status domain.LeadStatus, limit int) ([]domain.Lead, error) {
	return s.repo.ListByStatus(ctx, status, limit)
}

// Qualify stores the analysis output and moves the lead from new to
// analyzed. The analysis is persisted first so a failed transition can be
// retried without re-running the analysis.
func (s *Service) Qualify(ctx context.Context, id string, industry domain.Industry, detail *domain.IndustryDetail, icpScore int) error {
	if err := s.repo.UpdateQualification(ctx, id, industry, detail, icpScore); err != nil {
		return err
	}
	return s.Transition(ctx, id, domain.LeadAnalyzed)
}

// RecordExchange bumps the exchange counter after an approved response went
// out on a lead's thread.
func (s *Service) RecordExchange(ctx context.Context, id string) error {
	return s.repo.IncrementExchanges(ctx, id)
}

func (s *Service) fireHooks(ctx context.Context, l *domain.Lead, from, to domain.LeadStatus) {
	for _, h := range s.hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("transition hook panicked", "lead_id", l.ID, "panic", fmt.Sprintf("%v", r))
				}
			}()
			h(ctx, l, from, to)
		}()
	}
}

// NormalizeEmail lowercases and trims an address for comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
