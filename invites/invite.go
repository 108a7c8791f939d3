package invites

import (
	"errors"
	"time"

	"github.com/tableside/admin-auth/admins"
)

var (
	ErrForbidden       = errors.New("insufficient role to invite admins")
	ErrAlreadyConsumed = errors.New("invite already accepted")
	ErrNotFound        = errors.New("invite not found")
	ErrInvalidRole     = errors.New("invalid invite role")
)

// Invite is a single-use, time-bounded credential authorising one account
// provisioning action. State machine: Issued -> Consumed (terminal) or
// Issued -> Expired (terminal, checked lazily at redemption).
type Invite struct {
	TokenID      string      `json:"tokenId"`
	RestaurantID int         `json:"restaurantId"`
	Email        string      `json:"email"`
	Role         admins.Role `json:"role"`
	InvitedBy    string      `json:"invitedBy"`
	IssuedAt     time.Time   `json:"issuedAt"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	Consumed     bool        `json:"consumed"`
	ConsumedAt   *time.Time  `json:"consumedAt,omitempty"`
}
