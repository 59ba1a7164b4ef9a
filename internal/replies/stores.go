package replies

import (
	"context"
	"time"

	"github.com/ignite/outreach/internal/domain"
)

// MessageStore is the outbound-message access this package needs.
// InsertSent records thread sends directly as sent; routing them through
// "approved" would collide with the one-approved-per-lead index.
type MessageStore interface {
	Get(ctx context.Context, id string) (*domain.OutboundMessage, error)
	InsertSent(ctx context.Context, m *domain.OutboundMessage, providerMsgID, threadID string, at time.Time) error
	ListSentWithThread(ctx context.Context, limit int) ([]domain.OutboundMessage, error)
	ThreadHasAck(ctx context.Context, threadID string) (bool, error)
	MarkBounced(ctx context.Context, id string) error
}

// ReplyStore is the inbound-reply access this package needs.
type ReplyStore interface {
	Insert(ctx context.Context, rep *domain.InboundReply) (bool, error)
	Get(ctx context.Context, id string) (*domain.InboundReply, error)
	ListUnclassified(ctx context.Context, limit int) ([]domain.InboundReply, error)
	SetIntent(ctx context.Context, id string, intent domain.ReplyIntent, confidence float64) error
	SetDraft(ctx context.Context, id, subject, body string, stage domain.ReplyStage, knowledgeHits []byte) error
	SetNeedsResearch(ctx context.Context, id, reason string) error
	MarkAcked(ctx context.Context, id string) error
	MarkApproved(ctx context.Context, id string) error
}

// ActionStore schedules and cancels follow-ups.
type ActionStore interface {
	CancelPending(ctx context.Context, leadID string) (int, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.NextAction, error)
	MarkDone(ctx context.Context, id string) error
}

// KnowledgeStore reads the grounding corpus.
type KnowledgeStore interface {
	ListByProduct(ctx context.Context, product string) ([]domain.KnowledgeEntry, error)
	IncrementUseCount(ctx context.Context, ids []string) error
}
