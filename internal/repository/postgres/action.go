package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/outreach/internal/domain"
)

// ActionRepo stores scheduled follow-up actions.
type ActionRepo struct{ db *sql.DB }

func NewActionRepo(db *sql.DB) *ActionRepo { return &ActionRepo{db: db} }

// Schedule records a pending follow-up for a lead.
func (r *ActionRepo) Schedule(ctx context.Context, leadID string, action domain.EmailType, dueAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO next_actions (id, lead_id, action, due_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', NOW(), NOW())
	`, uuid.New().String(), leadID, action, dueAt)
	if err != nil {
		return fmt.Errorf("schedule action: %w", err)
	}
	return nil
}

// CancelPending cancels every pending action for a lead. Called as soon as a
// reply, bounce, or unsubscribe arrives so a dead thread never gets a
// follow-up. Returns the number of actions cancelled.
func (r *ActionRepo) CancelPending(ctx context.Context, leadID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE next_actions SET status = 'cancelled', updated_at = NOW()
		WHERE lead_id = $1 AND status = 'pending'
	`, leadID)
	if err != nil {
		return 0, fmt.Errorf("cancel pending actions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel pending rows: %w", err)
	}
	return int(n), nil
}

// ListDue returns pending actions whose due time has passed, oldest first.
func (r *ActionRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.NextAction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lead_id, action, due_at, status, created_at, updated_at
		FROM next_actions
		WHERE status = 'pending' AND due_at <= $1
		ORDER BY due_at ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due actions: %w", err)
	}
	defer rows.Close()

	var out []domain.NextAction
	for rows.Next() {
		var a domain.NextAction
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Action, &a.DueAt, &a.Status,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkDone completes a pending action. A no-op when the action was already
// cancelled by an incoming reply.
func (r *ActionRepo) MarkDone(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE next_actions SET status = 'done', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("mark action done: %w", err)
	}
	return nil
}
