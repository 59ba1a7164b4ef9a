package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// StatsRepo tracks the daily send counter that enforces the send cap.
type StatsRepo struct{ db *sql.DB }

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// SentToday returns the number of messages recorded for the given date
// (YYYY-MM-DD, UTC). A missing row counts as zero.
func (r *StatsRepo) SentToday(ctx context.Context, date string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT emails_sent FROM daily_send_stats WHERE date = $1`, date).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sent today: %w", err)
	}
	return n, nil
}

// TryIncrement reserves one send slot for the date, returning false when the
// counter is already at the cap. The check and the increment happen in a
// single statement, so concurrent dispatchers cannot both take the last slot.
func (r *StatsRepo) TryIncrement(ctx context.Context, date string, cap int) (bool, error) {
	var after int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO daily_send_stats (date, emails_sent, created_at, updated_at)
		VALUES ($1, 1, NOW(), NOW())
		ON CONFLICT (date) DO UPDATE
		SET emails_sent = daily_send_stats.emails_sent + 1, updated_at = NOW()
		WHERE daily_send_stats.emails_sent < $2
		RETURNING emails_sent
	`, date, cap).Scan(&after)
	if err == sql.ErrNoRows {
		// The WHERE guard rejected the update: cap reached.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("try increment daily stat: %w", err)
	}
	return true, nil
}
