package invites

import (
	"context"
	"time"
)

// Repo persists invite records keyed by token ID. Consume must be a
// compare-and-swap on the consumed flag: under concurrent redemption of the
// same token exactly one caller succeeds.
type Repo interface {
	// Upsert stores an invite. Re-inviting the same (restaurant, email)
	// replaces any pending invite, invalidating its token.
	Upsert(ctx context.Context, invite *Invite) error

	// Get retrieves an invite by token ID.
	Get(ctx context.Context, tokenID string) (*Invite, error)

	// Consume atomically flips the consumed flag. Fails with
	// ErrAlreadyConsumed if already set, ErrNotFound if unknown.
	Consume(ctx context.Context, tokenID string, at time.Time) error

	// Release clears the consumed flag, compensating for a failed account
	// creation after consumption.
	Release(ctx context.Context, tokenID string) error
}
