package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/copperline/barback/internal/domain"
	"github.com/copperline/barback/internal/service/reminder"
)

// ReminderRepo implements reminder.Store against PostgreSQL. Claim and
// the finalize methods are conditional writes; a lost race surfaces as
// zero rows affected, never as a double transition.
type ReminderRepo struct{ db *sql.DB }

// NewReminderRepo creates a Postgres-backed reminder repository.
func NewReminderRepo(db *sql.DB) *ReminderRepo { return &ReminderRepo{db: db} }

const reminderColumns = `id, conversation_id, phone, message, remind_at, status,
	       attempts, last_error, call_sid, created_at, updated_at`

func scanReminder(row interface{ Scan(...interface{}) error }) (*domain.Reminder, error) {
	rem := &domain.Reminder{}
	err := row.Scan(
		&rem.ID, &rem.ConversationID, &rem.Phone, &rem.Message, &rem.RemindAt, &rem.Status,
		&rem.Attempts, &rem.LastError, &rem.CallSID, &rem.CreatedAt, &rem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rem, nil
}

func (r *ReminderRepo) Create(ctx context.Context, rem *domain.Reminder) (string, error) {
	if rem.ID == "" {
		rem.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders
			(id, conversation_id, phone, message, remind_at, status,
			 attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', 0, NOW(), NOW())
	`, rem.ID, rem.ConversationID, rem.Phone, rem.Message, rem.RemindAt)
	if err != nil {
		return "", fmt.Errorf("create reminder: %w", err)
	}
	return rem.ID, nil
}

func (r *ReminderRepo) Get(ctx context.Context, id string) (*domain.Reminder, error) {
	rem, err := scanReminder(r.db.QueryRowContext(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, reminder.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return rem, nil
}

func (r *ReminderRepo) List(ctx context.Context, f reminder.ListFilter) ([]domain.Reminder, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT ` + reminderColumns + `
		FROM reminders`
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" WHERE status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY remind_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, *rem)
	}
	return out, nil
}

func (r *ReminderRepo) Cancel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return reminder.ErrTerminal
	}
	return nil
}

func (r *ReminderRepo) Due(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE status = 'pending' AND remind_at <= $1
		ORDER BY remind_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, *rem)
	}
	return out, nil
}

// Claim is the optimistic pending -> calling transition. Exactly one of
// any concurrent claimers sees true; the rest see false and must walk away.
func (r *ReminderRepo) Claim(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET status = 'calling', attempts = attempts + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *ReminderRepo) SetCallSID(ctx context.Context, id, callSID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET call_sid = $2, updated_at = NOW()
		WHERE id = $1
	`, id, callSID)
	if err != nil {
		return fmt.Errorf("set call sid: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return reminder.ErrNotFound
	}
	return nil
}

func (r *ReminderRepo) Complete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = 'calling'
	`, id)
	if err != nil {
		return fmt.Errorf("complete reminder: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return reminder.ErrTerminal
	}
	return nil
}

func (r *ReminderRepo) Retry(ctx context.Context, id, callErr string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET status = 'pending', last_error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'calling'
	`, id, callErr)
	if err != nil {
		return fmt.Errorf("retry reminder: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return reminder.ErrTerminal
	}
	return nil
}

func (r *ReminderRepo) Fail(ctx context.Context, id, callErr string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'calling'
	`, id, callErr)
	if err != nil {
		return fmt.Errorf("fail reminder: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return reminder.ErrTerminal
	}
	return nil
}
