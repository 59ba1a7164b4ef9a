package lead

import (
	"context"

	"github.com/ignite/outreach/internal/domain"
)

// Repository defines the data access contract for leads.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single lead. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Lead, error)

	// GetByEmail returns the lead with the given (normalized) email address.
	GetByEmail(ctx context.Context, email string) (*domain.Lead, error)

	// List returns leads matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.Lead, int, error)

	// Insert persists a new lead if its email is not already known.
	// Returns false with a nil error when the email already exists
	// (insert-or-skip is an explicit contract, not a store accident).
	Insert(ctx context.Context, l *domain.Lead) (bool, error)

	// UpdateStatus transitions a lead's status with a compare-and-set on the
	// expected current status. Returns ErrInvalidTransition when the row was
	// concurrently moved away from the expected status.
	UpdateStatus(ctx context.Context, id string, from, to domain.LeadStatus) error

	// SetStatus writes a status unconditionally. Reserved for operator
	// actions (reset to new, unsubscribe from any state); pipeline code
	// must use UpdateStatus.
	SetStatus(ctx context.Context, id string, to domain.LeadStatus) error

	// UpdateQualification stores the qualifier's analysis output.
	UpdateQualification(ctx context.Context, id string, industry domain.Industry, detail *domain.IndustryDetail, icpScore int) error

	// ListByStatus returns up to limit leads in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.LeadStatus, limit int) ([]domain.Lead, error)

	// IncrementExchanges bumps the exchange counter after a human-approved
	// response is sent.
	IncrementExchanges(ctx context.Context, id string) error
}

// ListFilter controls pagination and filtering for lead lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}
