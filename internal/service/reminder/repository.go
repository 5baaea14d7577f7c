package reminder

import (
	"context"
	"time"

	"github.com/copperline/barback/internal/domain"
)

// Store defines the data access contract for reminders.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a new reminder and returns its ID.
	Create(ctx context.Context, rem *domain.Reminder) (string, error)

	// Get returns a single reminder. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Reminder, error)

	// List returns reminders matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.Reminder, error)

	// Cancel moves pending -> cancelled. Returns ErrTerminal when the
	// reminder is no longer pending.
	Cancel(ctx context.Context, id string) error

	// Due returns pending reminders whose remind_at is at or before now,
	// oldest first, up to limit.
	Due(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error)

	// Claim attempts pending -> calling and increments the attempt
	// counter. Returns false when another claimer won the race; that is
	// a benign outcome, not an error.
	Claim(ctx context.Context, id string) (bool, error)

	// SetCallSID records the provider call identifier after origination.
	SetCallSID(ctx context.Context, id, callSID string) error

	// Complete moves calling -> completed.
	Complete(ctx context.Context, id string) error

	// Retry moves calling -> pending and records the call error so the
	// dispatcher picks the reminder up again.
	Retry(ctx context.Context, id, callErr string) error

	// Fail moves calling -> failed once the attempt cap is reached.
	Fail(ctx context.Context, id, callErr string) error
}

// ListFilter controls filtering and pagination for reminder lists.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}
