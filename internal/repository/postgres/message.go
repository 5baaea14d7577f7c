package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/service/approval"
)

// MessageRepo implements the message stores of the inbound and approval
// services against PostgreSQL. The Mark* transitions are conditional on
// the current status so duplicate decisions collapse into a benign
// "already processed" result instead of a double send.
type MessageRepo struct{ db *sql.DB }

// NewMessageRepo creates a Postgres-backed message repository.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

const messageColumns = `id, conversation_id, direction, body, draft, status,
	       provider_sid, delivery_state, media, archived_media, reply_to,
	       created_at, approved_at, sent_at`

func scanMessage(row interface{ Scan(...interface{}) error }) (*domain.Message, error) {
	m := &domain.Message{}
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.Direction, &m.Body, &m.Draft, &m.Status,
		&m.ProviderSID, &m.DeliveryState, pq.Array(&m.Media), pq.Array(&m.ArchivedMedia), &m.ReplyTo,
		&m.CreatedAt, &m.ApprovedAt, &m.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepo) Get(ctx context.Context, id string) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, approval.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// ExistsByProviderSID is the webhook dedup probe.
func (r *MessageRepo) ExistsByProviderSID(ctx context.Context, sid string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM messages WHERE provider_sid = $1)
	`, sid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return exists, nil
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) (string, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages
			(id, conversation_id, direction, body, draft, status,
			 provider_sid, media, reply_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`, m.ID, m.ConversationID, m.Direction, m.Body, m.Draft, m.Status,
		m.ProviderSID, pq.Array(m.Media), m.ReplyTo)
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}
	return m.ID, nil
}

// History returns the conversation's last N messages in chronological
// order, oldest first, for prompt assembly.
func (r *MessageRepo) History(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("message history: %w", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	// Rows arrive newest first; callers want reading order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *MessageRepo) MarkApproved(ctx context.Context, id, finalText string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = 'approved', body = $2, approved_at = NOW()
		WHERE id = $1 AND status = 'pending_approval'
	`, id, finalText)
	if err != nil {
		return fmt.Errorf("mark approved: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return approval.ErrAlreadyProcessed
	}
	return nil
}

func (r *MessageRepo) MarkRejected(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = 'rejected'
		WHERE id = $1 AND status = 'pending_approval'
	`, id)
	if err != nil {
		return fmt.Errorf("mark rejected: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return approval.ErrAlreadyProcessed
	}
	return nil
}

func (r *MessageRepo) MarkSent(ctx context.Context, id, providerSID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = 'sent', provider_sid = $2, sent_at = NOW()
		WHERE id = $1 AND status = 'approved'
	`, id, providerSID)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return approval.ErrAlreadyProcessed
	}
	return nil
}

func (r *MessageRepo) MarkFailed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = 'failed'
		WHERE id = $1 AND status = 'approved'
	`, id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return approval.ErrAlreadyProcessed
	}
	return nil
}

// SetDeliveryState records the provider's delivery callback word for a
// sent message. The approval lifecycle status is not touched.
func (r *MessageRepo) SetDeliveryState(ctx context.Context, providerSID, state string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET delivery_state = $2
		WHERE provider_sid = $1 AND direction = 'outbound'
	`, providerSID, state)
	if err != nil {
		return fmt.Errorf("set delivery state: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return approval.ErrNotFound
	}
	return nil
}

// SetArchivedMedia records the storage keys of archived MMS attachments.
func (r *MessageRepo) SetArchivedMedia(ctx context.Context, id string, keys []string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET archived_media = $2
		WHERE id = $1
	`, id, pq.Array(keys))
	if err != nil {
		return fmt.Errorf("set archived media: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return approval.ErrNotFound
	}
	return nil
}

// Search returns messages whose body matches the query, newest first.
func (r *MessageRepo) Search(ctx context.Context, query string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE body ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, nil
}
