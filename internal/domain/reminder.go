package domain

import "time"

// ReminderStatus enumerates the lifecycle states of a reminder call.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderCalling   ReminderStatus = "calling"
	ReminderCompleted ReminderStatus = "completed"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// ReminderMaxAttempts caps call retries. After this many failed attempts
// the reminder is marked failed and never retried.
const ReminderMaxAttempts = 3

// Reminder is a scheduled outbound voice call. The claim to "calling" is
// an optimistic conditional update on status=pending, so at most one
// dispatcher instance ever owns an attempt.
type Reminder struct {
	ID             string         `json:"id" db:"id"`
	ConversationID *string        `json:"conversation_id" db:"conversation_id"`
	Phone          string         `json:"phone" db:"phone"`
	Message        string         `json:"message" db:"message"`
	RemindAt       time.Time      `json:"remind_at" db:"remind_at"`
	Status         ReminderStatus `json:"status" db:"status"`
	Attempts       int            `json:"attempts" db:"attempts"`
	LastError      *string        `json:"last_error" db:"last_error"`
	CallSID        *string        `json:"call_sid" db:"call_sid"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the reminder is in a final state.
func (r *Reminder) IsTerminal() bool {
	return r.Status == ReminderCompleted || r.Status == ReminderFailed || r.Status == ReminderCancelled
}
