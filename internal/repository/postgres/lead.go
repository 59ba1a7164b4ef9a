// Package postgres implements the repository contracts against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/service/lead"
)

// LeadRepo implements lead.Repository against PostgreSQL.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

const leadColumns = `id, company_name, email, COALESCE(website_url,''), COALESCE(source_url,''),
	industry, industry_detail, icp_score, status, conversation_phase, total_exchanges,
	COALESCE(discovery_method,''), COALESCE(source_query,''), COALESCE(estimated_scale,''),
	unsubscribed_at, created_at, updated_at`

func scanLead(row interface{ Scan(...any) error }) (*domain.Lead, error) {
	l := &domain.Lead{}
	var detail []byte
	err := row.Scan(
		&l.ID, &l.CompanyName, &l.Email, &l.WebsiteURL, &l.SourceURL,
		&l.Industry, &detail, &l.ICPScore, &l.Status, &l.Phase, &l.TotalExchanges,
		&l.DiscoveryMethod, &l.SourceQuery, &l.EstimatedScale,
		&l.UnsubscribedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(detail) > 0 {
		var d domain.IndustryDetail
		if err := json.Unmarshal(detail, &d); err == nil {
			l.IndustryDetail = &d
		}
	}
	return l, nil
}

func (r *LeadRepo) Get(ctx context.Context, id string) (*domain.Lead, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM outreach_leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, lead.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (r *LeadRepo) GetByEmail(ctx context.Context, email string) (*domain.Lead, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM outreach_leads WHERE email = $1`, email)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, lead.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead by email: %w", err)
	}
	return l, nil
}

func (r *LeadRepo) List(ctx context.Context, f lead.ListFilter) ([]domain.Lead, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM outreach_leads WHERE 1=1`
	args := []any{}
	idx := 1
	if f.Status != "" {
		countQ += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		countQ += fmt.Sprintf(" AND (company_name ILIKE $%d OR email ILIKE $%d)", idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	q := `SELECT ` + leadColumns + ` FROM outreach_leads WHERE 1=1`
	qArgs := []any{}
	qIdx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", qIdx)
		qArgs = append(qArgs, f.Status)
		qIdx++
	}
	if f.Search != "" {
		q += fmt.Sprintf(" AND (company_name ILIKE $%d OR email ILIKE $%d)", qIdx, qIdx)
		qArgs = append(qArgs, "%"+f.Search+"%")
		qIdx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", qIdx, qIdx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

// Insert persists a new lead, skipping silently when the email is already
// known. The unique index on email is the idempotency anchor for discovery
// and bulk imports.
func (r *LeadRepo) Insert(ctx context.Context, l *domain.Lead) (bool, error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	var detail []byte
	if l.IndustryDetail != nil {
		detail, _ = json.Marshal(l.IndustryDetail)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_leads
			(id, company_name, email, website_url, source_url, industry, industry_detail,
			 icp_score, status, conversation_phase, total_exchanges,
			 discovery_method, source_query, estimated_scale, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13, NOW(), NOW())
		ON CONFLICT (email) DO NOTHING
	`, l.ID, l.CompanyName, l.Email, l.WebsiteURL, l.SourceURL, l.Industry, nullableJSON(detail),
		l.ICPScore, l.Status, l.Phase, l.DiscoveryMethod, l.SourceQuery, l.EstimatedScale)
	if err != nil {
		return false, fmt.Errorf("insert lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert lead rows: %w", err)
	}
	return n == 1, nil
}

func (r *LeadRepo) UpdateStatus(ctx context.Context, id string, from, to domain.LeadStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_leads SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lead status rows: %w", err)
	}
	if n == 0 {
		return lead.ErrInvalidTransition
	}
	return nil
}

func (r *LeadRepo) SetStatus(ctx context.Context, id string, to domain.LeadStatus) error {
	q := `UPDATE outreach_leads SET status = $1, updated_at = NOW() WHERE id = $2`
	if to == domain.LeadUnsubscribed {
		q = `UPDATE outreach_leads SET status = $1, unsubscribed_at = NOW(), updated_at = NOW() WHERE id = $2`
	}
	res, err := r.db.ExecContext(ctx, q, to, id)
	if err != nil {
		return fmt.Errorf("set lead status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return lead.ErrNotFound
	}
	return nil
}

func (r *LeadRepo) UpdateQualification(ctx context.Context, id string, industry domain.Industry, detail *domain.IndustryDetail, icpScore int) error {
	var data []byte
	if detail != nil {
		data, _ = json.Marshal(detail)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE outreach_leads
		SET industry = $1, industry_detail = $2, icp_score = $3, updated_at = NOW()
		WHERE id = $4
	`, industry, nullableJSON(data), icpScore, id)
	if err != nil {
		return fmt.Errorf("update qualification: %w", err)
	}
	return nil
}

func (r *LeadRepo) ListByStatus(ctx context.Context, status domain.LeadStatus, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM outreach_leads WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		status, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads by status: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *LeadRepo) IncrementExchanges(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outreach_leads SET total_exchanges = total_exchanges + 1, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("increment exchanges: %w", err)
	}
	return nil
}

// nullableJSON maps an empty marshal result to NULL instead of "".
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
