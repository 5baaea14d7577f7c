package inbound

import (
	"context"

	"github.com/copperline/barback/internal/domain"
)

// ConversationStore persists conversation threads keyed by normalized phone
// number. Implementations must be safe for concurrent use.
type ConversationStore interface {
	// Upsert finds or creates the conversation for phone, increments its
	// message count, refreshes last activity, and backfills the display
	// name when one is supplied and none is set yet (first write wins).
	Upsert(ctx context.Context, phone, name string) (*domain.Conversation, error)

	// GetByPhone returns the conversation for phone, or (nil, nil) when
	// none exists yet.
	GetByPhone(ctx context.Context, phone string) (*domain.Conversation, error)
}

// MessageStore records inbound messages and their outbound drafts.
type MessageStore interface {
	// ExistsByProviderSID reports whether a message with the given
	// provider identifier is already stored. Used for webhook dedup.
	ExistsByProviderSID(ctx context.Context, sid string) (bool, error)

	// Create inserts a message and returns its ID.
	Create(ctx context.Context, m *domain.Message) (string, error)
}
