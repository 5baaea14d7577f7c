// Package pending holds deferred menu actions between draft time and the
// approval decision.
//
// An entry is written once when an outbound draft is stored, read at
// decision time, deleted once the action is applied (or on reject), and
// otherwise expires. Expiry is lazy: a read past the TTL behaves as
// absent; nothing actively purges. Two interchangeable backends exist, an
// in-process map for single-instance deployments and Redis for anything
// that restarts or scales.
package pending

import (
	"context"
	"time"

	"github.com/copperline/barback/internal/domain"
)

// TTL is how long a registered action stays consumable. A reviewer who
// has not decided within this window gets a plain send with no side
// effect, which beats applying a stale menu change.
const TTL = 6 * time.Hour

// Registry is the storage contract for deferred actions, keyed by the
// outbound message id awaiting review. Implementations must be safe for
// concurrent use.
type Registry interface {
	// Put registers an action. An existing entry for the same message id
	// is overwritten.
	Put(ctx context.Context, a *domain.PendingAction) error

	// Get returns the action for a message id, or nil when none exists
	// or the entry has outlived TTL.
	Get(ctx context.Context, messageID string) (*domain.PendingAction, error)

	// Delete removes an entry. Deleting an absent entry is a no-op.
	Delete(ctx context.Context, messageID string) error

	// Size reports how many entries are currently registered. Redis
	// counts expired-but-unread entries out; the memory backend counts
	// only live ones.
	Size(ctx context.Context) (int, error)
}
