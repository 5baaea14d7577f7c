package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/service/correction"
)

// CorrectionRepo implements correction.Store against PostgreSQL.
type CorrectionRepo struct{ db *sql.DB }

// NewCorrectionRepo creates a Postgres-backed correction repository.
func NewCorrectionRepo(db *sql.DB) *CorrectionRepo { return &CorrectionRepo{db: db} }

func (r *CorrectionRepo) Create(ctx context.Context, rec *domain.CorrectionRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO corrections
			(id, channel, action, original_draft, corrected_text, message_id,
			 promoted, promote_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, 0, NOW())
	`, rec.ID, rec.Channel, rec.Action, rec.OriginalDraft, rec.CorrectedText, rec.MessageID)
	if err != nil {
		return "", fmt.Errorf("create correction: %w", err)
	}
	return rec.ID, nil
}

func (r *CorrectionRepo) SetRule(ctx context.Context, id, rule string, category domain.RuleCategory) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE corrections SET rule_text = $2, rule_category = $3
		WHERE id = $1
	`, id, rule, category)
	if err != nil {
		return fmt.Errorf("set rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return correction.ErrNotFound
	}
	return nil
}

func (r *CorrectionRepo) MarkPromoted(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE corrections SET promoted = true
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark promoted: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return correction.ErrNotFound
	}
	return nil
}

func (r *CorrectionRepo) BumpPromoteAttempts(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE corrections SET promote_attempts = promote_attempts + 1
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("bump promote attempts: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return correction.ErrNotFound
	}
	return nil
}

func (r *CorrectionRepo) Unpromoted(ctx context.Context, limit, maxAttempts int) ([]domain.CorrectionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, channel, action, original_draft, corrected_text, message_id,
		       rule_text, rule_category, promoted, promote_attempts, created_at
		FROM corrections
		WHERE rule_text IS NOT NULL AND promoted = false AND promote_attempts < $2
		ORDER BY created_at ASC
		LIMIT $1
	`, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("unpromoted corrections: %w", err)
	}
	defer rows.Close()

	var out []domain.CorrectionRecord
	for rows.Next() {
		var rec domain.CorrectionRecord
		if err := rows.Scan(
			&rec.ID, &rec.Channel, &rec.Action, &rec.OriginalDraft, &rec.CorrectedText, &rec.MessageID,
			&rec.RuleText, &rec.RuleCategory, &rec.Promoted, &rec.PromoteAttempts, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *CorrectionRepo) RecentRules(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule_text
		FROM corrections
		WHERE rule_text IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent rules: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var rule string
		if err := rows.Scan(&rule); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, nil
}
