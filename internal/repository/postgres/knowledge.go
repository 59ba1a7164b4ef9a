package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/outreach/internal/domain"
)

// KnowledgeRepo reads the question/answer base that grounds reply drafts.
type KnowledgeRepo struct{ db *sql.DB }

func NewKnowledgeRepo(db *sql.DB) *KnowledgeRepo { return &KnowledgeRepo{db: db} }

// ListByProduct returns all entries for a product. Relevance ranking happens
// in memory; the corpus is small enough to scan per reply.
func (r *KnowledgeRepo) ListByProduct(ctx context.Context, product string) ([]domain.KnowledgeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product, COALESCE(category,''), question, answer, keywords,
		       confidence, use_count, created_at, updated_at
		FROM knowledge_entries WHERE product = $1
	`, product)
	if err != nil {
		return nil, fmt.Errorf("list knowledge by product: %w", err)
	}
	defer rows.Close()

	var out []domain.KnowledgeEntry
	for rows.Next() {
		var e domain.KnowledgeEntry
		if err := rows.Scan(&e.ID, &e.Product, &e.Category, &e.Question, &e.Answer,
			pq.Array(&e.Keywords), &e.Confidence, &e.UseCount, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Insert stores a new knowledge entry.
func (r *KnowledgeRepo) Insert(ctx context.Context, e *domain.KnowledgeEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO knowledge_entries
			(id, product, category, question, answer, keywords, confidence,
			 use_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
	`, e.ID, e.Product, e.Category, e.Question, e.Answer, pq.Array(e.Keywords), e.Confidence)
	if err != nil {
		return fmt.Errorf("insert knowledge entry: %w", err)
	}
	return nil
}

// IncrementUseCount bumps usage counters for the entries a draft leaned on.
func (r *KnowledgeRepo) IncrementUseCount(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE knowledge_entries SET use_count = use_count + 1, updated_at = NOW()
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("increment knowledge use count: %w", err)
	}
	return nil
}
