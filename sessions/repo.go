package sessions

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Repo defines the interface for session storage. Revocation must be a
// per-row conditional update (compare-and-swap on the revoked flag), never
// read-then-write, so concurrent revocations cannot race.
type Repo interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*Session, error)

	// GetBySecretHash retrieves a session by the hash of its cookie secret.
	GetBySecretHash(ctx context.Context, hash string) (*Session, error)

	// ListByAdmin returns an admin's sessions, issued-at descending.
	ListByAdmin(ctx context.Context, restaurantID int, adminID string) ([]*Session, error)

	// ListByRestaurant returns every session in a tenant, issued-at descending.
	ListByRestaurant(ctx context.Context, restaurantID int) ([]*Session, error)

	// Revoke sets the revoked flag. Idempotent: revoking an already revoked
	// session succeeds silently. Fails with ErrNotFound for an unknown ID.
	Revoke(ctx context.Context, id string, at time.Time) error

	// RevokeAllExcept revokes every non-revoked session of an admin other
	// than keepID, returning how many were revoked.
	RevokeAllExcept(ctx context.Context, restaurantID int, adminID, keepID string, at time.Time) (int, error)

	// ExtendExpiry pushes the session's expiry forward (sliding window).
	ExtendExpiry(ctx context.Context, id string, until time.Time) error

	// DeleteExpired removes sessions that expired before the cutoff and were
	// revoked, for housekeeping. Returns the number removed.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
