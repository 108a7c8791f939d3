package admins

import (
	"context"
	"errors"
)

var (
	ErrDuplicateEmail = errors.New("email already registered for restaurant")
	ErrNotFound       = errors.New("admin account not found")
)

// Repo defines the interface for credential storage. Every lookup is keyed by
// tenant; implementations must never return accounts across tenant boundaries.
type Repo interface {
	// Create stores a new account, failing with ErrDuplicateEmail if the email
	// is already present within the restaurant.
	Create(ctx context.Context, account *Account) error

	// GetByEmail retrieves an account by (restaurant, email).
	GetByEmail(ctx context.Context, restaurantID int, email string) (*Account, error)

	// GetByID retrieves an account by its ID.
	GetByID(ctx context.Context, id string) (*Account, error)

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, adminID, newHash string) error

	// SetActive flips the activation flag. Accounts are never hard-deleted.
	SetActive(ctx context.Context, adminID string, active bool) error

	// ListByRestaurant returns every account in a tenant.
	ListByRestaurant(ctx context.Context, restaurantID int) ([]*Account, error)
}
