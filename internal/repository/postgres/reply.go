package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/outreach/internal/domain"
)

// ErrReplyNotFound is returned when a reply id does not exist.
var ErrReplyNotFound = errors.New("reply not found")

// ReplyRepo stores inbound replies.
type ReplyRepo struct{ db *sql.DB }

func NewReplyRepo(db *sql.DB) *ReplyRepo { return &ReplyRepo{db: db} }

const replyColumns = `id, message_id, lead_id, provider_message_id, reply_body,
	auto_submitted, intent, intent_confidence, ai_draft_response, ai_draft_subject,
	knowledge_hits, needs_research, COALESCE(escalation_reason,''), reply_stage,
	human_approved, ack_sent_at, responded_at, created_at, updated_at`

func scanReply(row interface{ Scan(...any) error }) (*domain.InboundReply, error) {
	rep := &domain.InboundReply{}
	err := row.Scan(
		&rep.ID, &rep.MessageID, &rep.LeadID, &rep.ProviderMessageID, &rep.ReplyBody,
		&rep.AutoSubmitted, &rep.Intent, &rep.IntentConfidence, &rep.AIDraftResponse, &rep.AIDraftSubject,
		&rep.KnowledgeHits, &rep.NeedsResearch, &rep.EscalationReason, &rep.ReplyStage,
		&rep.HumanApproved, &rep.AckSentAt, &rep.RespondedAt, &rep.CreatedAt, &rep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// Insert stores a reply keyed by its provider message id. Returns false when
// the id is already known, which makes mailbox re-polling idempotent.
func (r *ReplyRepo) Insert(ctx context.Context, rep *domain.InboundReply) (bool, error) {
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	if rep.ReplyStage == "" {
		rep.ReplyStage = domain.StageInitial
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO inbound_replies
			(id, message_id, lead_id, provider_message_id, reply_body, auto_submitted,
			 reply_stage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (provider_message_id) DO NOTHING
	`, rep.ID, rep.MessageID, rep.LeadID, rep.ProviderMessageID, rep.ReplyBody, rep.AutoSubmitted, rep.ReplyStage)
	if err != nil {
		return false, fmt.Errorf("insert reply: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert reply rows: %w", err)
	}
	return n == 1, nil
}

func (r *ReplyRepo) Get(ctx context.Context, id string) (*domain.InboundReply, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+replyColumns+` FROM inbound_replies WHERE id = $1`, id)
	rep, err := scanReply(row)
	if err == sql.ErrNoRows {
		return nil, ErrReplyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reply: %w", err)
	}
	return rep, nil
}

// ListUnclassified returns replies awaiting triage, oldest arrival first.
// Arrival order keeps a follow-up question from being answered before the
// message it follows up on.
func (r *ReplyRepo) ListUnclassified(ctx context.Context, limit int) ([]domain.InboundReply, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+replyColumns+` FROM inbound_replies
		 WHERE intent IS NULL ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unclassified replies: %w", err)
	}
	defer rows.Close()
	return collectReplies(rows)
}

// ListPending returns classified replies that still need a human decision.
func (r *ReplyRepo) ListPending(ctx context.Context, limit int) ([]domain.InboundReply, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+replyColumns+` FROM inbound_replies
		 WHERE intent IS NOT NULL AND human_approved = FALSE AND responded_at IS NULL
		 ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending replies: %w", err)
	}
	defer rows.Close()
	return collectReplies(rows)
}

func (r *ReplyRepo) SetIntent(ctx context.Context, id string, intent domain.ReplyIntent, confidence float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE inbound_replies SET intent = $1, intent_confidence = $2, updated_at = NOW()
		WHERE id = $3
	`, intent, confidence, id)
	if err != nil {
		return fmt.Errorf("set reply intent: %w", err)
	}
	return nil
}

// SetDraft stores the drafted response with its stage and the knowledge
// entries it leaned on.
func (r *ReplyRepo) SetDraft(ctx context.Context, id, subject, body string, stage domain.ReplyStage, knowledgeHits []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE inbound_replies
		SET ai_draft_subject = $1, ai_draft_response = $2, reply_stage = $3,
		    knowledge_hits = $4, updated_at = NOW()
		WHERE id = $5
	`, subject, body, stage, nullableJSON(knowledgeHits), id)
	if err != nil {
		return fmt.Errorf("set reply draft: %w", err)
	}
	return nil
}

func (r *ReplyRepo) SetNeedsResearch(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE inbound_replies
		SET needs_research = TRUE, escalation_reason = $1, reply_stage = 'needs_research',
		    updated_at = NOW()
		WHERE id = $2
	`, reason, id)
	if err != nil {
		return fmt.Errorf("set needs research: %w", err)
	}
	return nil
}

func (r *ReplyRepo) MarkAcked(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE inbound_replies SET ack_sent_at = NOW(), updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark reply acked: %w", err)
	}
	return nil
}

// MarkApproved records the human approval and the moment the approved
// response went out.
func (r *ReplyRepo) MarkApproved(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE inbound_replies
		SET human_approved = TRUE, responded_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark reply approved: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReplyNotFound
	}
	return nil
}

func collectReplies(rows *sql.Rows) ([]domain.InboundReply, error) {
	var out []domain.InboundReply
	for rows.Next() {
		rep, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}
