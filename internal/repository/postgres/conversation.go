package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/service/approval"
)

// ConversationRepo implements the conversation stores of the inbound and
// approval services against PostgreSQL.
type ConversationRepo struct{ db *sql.DB }

// NewConversationRepo creates a Postgres-backed conversation repository.
func NewConversationRepo(db *sql.DB) *ConversationRepo { return &ConversationRepo{db: db} }

// Upsert finds or creates the conversation for phone. The insert path
// starts the message count at 1; the conflict path increments it,
// refreshes last activity, and backfills the name only when none is set.
func (r *ConversationRepo) Upsert(ctx context.Context, phone, name string) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO conversations (id, phone, name, message_count, last_message_at, status, created_at)
		VALUES ($1, $2, NULLIF($3, ''), 1, NOW(), 'active', NOW())
		ON CONFLICT (phone) DO UPDATE SET
			message_count   = conversations.message_count + 1,
			last_message_at = NOW(),
			name            = COALESCE(conversations.name, NULLIF($3, ''))
		RETURNING id, phone, name, message_count, last_message_at, status, created_at
	`, uuid.New().String(), phone, name).Scan(
		&c.ID, &c.Phone, &c.Name, &c.MessageCount, &c.LastMessageAt, &c.Status, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}
	return c, nil
}

// Phone resolves the recipient number for an outbound send.
func (r *ConversationRepo) Phone(ctx context.Context, conversationID string) (string, error) {
	var phone string
	err := r.db.QueryRowContext(ctx, `
		SELECT phone FROM conversations WHERE id = $1
	`, conversationID).Scan(&phone)
	if err == sql.ErrNoRows {
		return "", approval.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("conversation phone: %w", err)
	}
	return phone, nil
}

// GetByPhone returns the conversation for a normalized number, or
// (nil, nil) when none exists. Absence is expected here (voice calls and
// reminders for numbers that never texted), so it is not an error.
func (r *ConversationRepo) GetByPhone(ctx context.Context, phone string) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone, name, message_count, last_message_at, status, created_at
		FROM conversations
		WHERE phone = $1
	`, phone).Scan(
		&c.ID, &c.Phone, &c.Name, &c.MessageCount, &c.LastMessageAt, &c.Status, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation by phone: %w", err)
	}
	return c, nil
}

// Search returns conversations whose phone or name matches the query,
// most recently active first.
func (r *ConversationRepo) Search(ctx context.Context, query string, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, phone, name, message_count, last_message_at, status, created_at
		FROM conversations
		WHERE phone ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		ORDER BY last_message_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(
			&c.ID, &c.Phone, &c.Name, &c.MessageCount, &c.LastMessageAt, &c.Status, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}
