package approval

import (
	"context"

	"github.com/copperline/barback/internal/domain"
)

// MessageStore is the persistence contract for outbound message
// transitions. All Mark* methods are conditional writes: they apply only
// when the row is still in the expected prior status and return
// ErrAlreadyProcessed when it is not, which is what makes duplicate
// decisions and concurrent webhook retries safe.
type MessageStore interface {
	// Get returns a single message. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Message, error)

	// MarkApproved moves pending_approval -> approved and records the
	// final body text (the draft, or the reviewer's edit).
	MarkApproved(ctx context.Context, id, finalText string) error

	// MarkRejected moves pending_approval -> rejected.
	MarkRejected(ctx context.Context, id string) error

	// MarkSent moves approved -> sent and records the provider's
	// delivery identifier.
	MarkSent(ctx context.Context, id, providerSID string) error

	// MarkFailed moves approved -> failed after a send error. The row
	// stays recoverable for a manual resend outside this flow.
	MarkFailed(ctx context.Context, id string) error
}

// ConversationStore resolves the recipient for an outbound message.
type ConversationStore interface {
	// Phone returns the conversation's normalized phone number.
	// Returns ErrNotFound if the conversation doesn't exist.
	Phone(ctx context.Context, conversationID string) (string, error)
}
