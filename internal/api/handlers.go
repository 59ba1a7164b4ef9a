package api

import (
	"context"

	"github.com/ignite/outreach/internal/discovery"
	"github.com/ignite/outreach/internal/dispatch"
	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/replies"
	"github.com/ignite/outreach/internal/service/lead"
)

// defaultBatchLimit bounds how much work one trigger request may pull in.
const defaultBatchLimit = 50

// Dispatcher runs one send pass over the approved queue.
type Dispatcher interface {
	Run(ctx context.Context) (*dispatch.Tally, error)
}

// ReplyChecker polls mailboxes for new replies and bounces.
type ReplyChecker interface {
	Check(ctx context.Context, limit int) (*replies.MonitorReport, error)
}

// ReplyTriager classifies replies and manages response drafts.
type ReplyTriager interface {
	Run(ctx context.Context, limit int) (*replies.TriageReport, error)
	Approve(ctx context.Context, replyID string) error
	Regenerate(ctx context.Context, replyID, feedback string) error
}

// Qualifier analyzes a single lead on demand.
type Qualifier interface {
	QualifyLead(ctx context.Context, l *domain.Lead) error
	Threshold() int
}

// Composer drafts outbound mail for a qualified lead.
type Composer interface {
	ComposeFor(ctx context.Context, l *domain.Lead, emailType domain.EmailType) error
}

// DiscoveryRunner crawls seeds and inserts validated contacts.
type DiscoveryRunner interface {
	Run(ctx context.Context, seeds []string, sourceQuery string, depth int) (*discovery.Report, error)
}

// DraftStore is the slice of the message repository the review endpoints
// need.
type DraftStore interface {
	ListDrafts(ctx context.Context, leadID string, limit int) ([]domain.OutboundMessage, error)
	Get(ctx context.Context, id string) (*domain.OutboundMessage, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.MessageStatus) error
	HasApprovedForLead(ctx context.Context, leadID string) (bool, error)
}

// ReplyLister surfaces classified replies awaiting human review.
type ReplyLister interface {
	ListPending(ctx context.Context, limit int) ([]domain.InboundReply, error)
}

// Handlers holds every HTTP handler and its dependencies.
type Handlers struct {
	leads      *lead.Service
	drafts     DraftStore
	replies    ReplyLister
	qualifier  Qualifier
	composer   Composer
	discovery  DiscoveryRunner
	dispatcher Dispatcher
	monitor    ReplyChecker
	triage     ReplyTriager
	health     *HealthChecker
}

func NewHandlers(
	leads *lead.Service,
	drafts DraftStore,
	pending ReplyLister,
	qualifier Qualifier,
	composer Composer,
	disc DiscoveryRunner,
	dispatcher Dispatcher,
	monitor ReplyChecker,
	triage ReplyTriager,
	health *HealthChecker,
) *Handlers {
	return &Handlers{
		leads:      leads,
		drafts:     drafts,
		replies:    pending,
		qualifier:  qualifier,
		composer:   composer,
		discovery:  disc,
		dispatcher: dispatcher,
		monitor:    monitor,
		triage:     triage,
		health:     health,
	}
}
