package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach/internal/domain"
)

// Message repository sentinel errors.
var (
	ErrMessageNotFound = errors.New("message not found")
	ErrStatusConflict  = errors.New("message status changed concurrently")
)

// MessageRepo stores outbound messages.
type MessageRepo struct{ db *sql.DB }

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

const messageColumns = `id, lead_id, subject, body_text, COALESCE(body_html,''),
	COALESCE(template_used,''), email_type, status, COALESCE(variant,''),
	self_score, self_score_detail, low_score, generation_attempt,
	provider_message_id, provider_thread_id, sent_at, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (*domain.OutboundMessage, error) {
	m := &domain.OutboundMessage{}
	err := row.Scan(
		&m.ID, &m.LeadID, &m.Subject, &m.BodyText, &m.BodyHTML,
		&m.TemplateUsed, &m.EmailType, &m.Status, &m.Variant,
		&m.SelfScore, &m.SelfScoreDetail, &m.LowScore, &m.GenerationAttempt,
		&m.ProviderMessageID, &m.ProviderThreadID, &m.SentAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepo) Insert(ctx context.Context, m *domain.OutboundMessage) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbound_messages
			(id, lead_id, subject, body_text, body_html, template_used, email_type,
			 status, variant, self_score, self_score_detail, low_score,
			 generation_attempt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`, m.ID, m.LeadID, m.Subject, m.BodyText, m.BodyHTML, m.TemplateUsed, m.EmailType,
		m.Status, m.Variant, m.SelfScore, nullableJSON(m.SelfScoreDetail), m.LowScore,
		m.GenerationAttempt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// InsertSent records an already-delivered message in one step. Thread sends
// (acks, approved responses) use this; they never sit in the approved queue,
// so they must not pass through the one-approved-per-lead constraint.
func (r *MessageRepo) InsertSent(ctx context.Context, m *domain.OutboundMessage, providerMsgID, threadID string, at time.Time) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.Status = domain.MessageSent
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbound_messages
			(id, lead_id, subject, body_text, body_html, template_used, email_type,
			 status, variant, generation_attempt,
			 provider_message_id, provider_thread_id, sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'sent', $8, $9, $10, $11, $12, NOW(), NOW())
	`, m.ID, m.LeadID, m.Subject, m.BodyText, m.BodyHTML, m.TemplateUsed, m.EmailType,
		m.Variant, m.GenerationAttempt, nullableString(providerMsgID), nullableString(threadID), at)
	if err != nil {
		return fmt.Errorf("insert sent message: %w", err)
	}
	return nil
}

func (r *MessageRepo) Get(ctx context.Context, id string) (*domain.OutboundMessage, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM outbound_messages WHERE id = $1`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// ListApproved returns approved messages oldest first. The dispatcher asks
// for limit+extra and stops at the budget, so order decides who ships today.
func (r *MessageRepo) ListApproved(ctx context.Context, limit int) ([]domain.OutboundMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM outbound_messages
		 WHERE status = 'approved' ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list approved messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListDrafts returns draft messages for review, newest first. An optional
// lead id narrows the listing to one conversation.
func (r *MessageRepo) ListDrafts(ctx context.Context, leadID string, limit int) ([]domain.OutboundMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + messageColumns + ` FROM outbound_messages WHERE status = 'draft'`
	args := []any{}
	if leadID != "" {
		q += ` AND lead_id = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, leadID, limit)
	} else {
		q += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListByLead returns all messages for one lead, oldest first.
func (r *MessageRepo) ListByLead(ctx context.Context, leadID string) ([]domain.OutboundMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM outbound_messages
		 WHERE lead_id = $1 ORDER BY created_at ASC`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list messages by lead: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// HasApprovedForLead reports whether the lead already holds an approved,
// unsent message. The approval gate uses this to enforce one-in-flight.
func (r *MessageRepo) HasApprovedForLead(ctx context.Context, leadID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbound_messages WHERE lead_id = $1 AND status = 'approved'`,
		leadID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count approved for lead: %w", err)
	}
	return n > 0, nil
}

// UpdateStatus moves a message between statuses with a compare-and-set on
// the expected current status.
func (r *MessageRepo) UpdateStatus(ctx context.Context, id string, from, to domain.MessageStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outbound_messages SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkSent records the provider identifiers in the same write that flips the
// status, so a crash cannot leave a sent message without its thread linkage.
func (r *MessageRepo) MarkSent(ctx context.Context, id, providerMsgID, threadID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outbound_messages
		SET status = 'sent', provider_message_id = $1, provider_thread_id = $2,
		    sent_at = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'approved'
	`, providerMsgID, nullableString(threadID), at, id)
	if err != nil {
		return fmt.Errorf("mark message sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkBounced flips a sent message to bounced.
func (r *MessageRepo) MarkBounced(ctx context.Context, id string) error {
	return r.UpdateStatus(ctx, id, domain.MessageSent, domain.MessageBounced)
}

// ListSentWithThread returns sent messages that carry a provider thread id.
// The reply monitor polls each of these threads for inbound mail.
func (r *MessageRepo) ListSentWithThread(ctx context.Context, limit int) ([]domain.OutboundMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM outbound_messages
		 WHERE status = 'sent' AND provider_thread_id IS NOT NULL
		 ORDER BY sent_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sent with thread: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ThreadHasAck reports whether an acknowledgment was already sent on the
// given provider thread.
func (r *MessageRepo) ThreadHasAck(ctx context.Context, threadID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outbound_messages
		WHERE provider_thread_id = $1 AND email_type = 'ack' AND status = 'sent'
	`, threadID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count thread acks: %w", err)
	}
	return n > 0, nil
}

func collectMessages(rows *sql.Rows) ([]domain.OutboundMessage, error) {
	var out []domain.OutboundMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
