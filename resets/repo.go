package resets

import (
	"context"
	"time"
)

// Repo persists reset records keyed by token ID. Consume must be a
// compare-and-swap on the consumed flag: under concurrent confirmation of the
// same token exactly one caller succeeds.
type Repo interface {
	// Create stores a reset record. Multiple pending resets per admin may
	// coexist; each token consumes independently.
	Create(ctx context.Context, reset *Reset) error

	// Get retrieves a reset by token ID.
	Get(ctx context.Context, tokenID string) (*Reset, error)

	// Consume atomically flips the consumed flag. Fails with
	// ErrAlreadyConsumed if already set, ErrNotFound if unknown.
	Consume(ctx context.Context, tokenID string, at time.Time) error

	// Release clears the consumed flag, compensating for a failed password
	// update after consumption.
	Release(ctx context.Context, tokenID string) error
}
