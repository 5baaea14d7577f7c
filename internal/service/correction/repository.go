package correction

import (
	"context"

	"github.com/copperline/barback/internal/domain"
)

// Store defines the data access contract for correction records.
// Records are append-only: after Create, only the rule fields and the
// promotion bookkeeping are ever written, and only by this package.
type Store interface {
	// Create inserts a new correction record and returns its ID.
	Create(ctx context.Context, rec *domain.CorrectionRecord) (string, error)

	// SetRule fills the extracted rule text and category.
	SetRule(ctx context.Context, id, rule string, category domain.RuleCategory) error

	// MarkPromoted flags the record's rule as stored in semantic memory.
	MarkPromoted(ctx context.Context, id string) error

	// BumpPromoteAttempts increments the promotion retry counter.
	BumpPromoteAttempts(ctx context.Context, id string) error

	// Unpromoted returns records with an extracted rule that has not yet
	// been promoted, skipping those past maxAttempts, oldest first.
	Unpromoted(ctx context.Context, limit, maxAttempts int) ([]domain.CorrectionRecord, error)

	// RecentRules returns the extracted rule texts, newest first, for
	// rendering into the draft prompt's compliance list.
	RecentRules(ctx context.Context, limit int) ([]string, error)
}
