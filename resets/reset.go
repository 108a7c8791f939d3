package resets

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("password reset not found")
	ErrAlreadyConsumed = errors.New("password reset already used")
)

// Reset is a single-use, time-bounded credential authorising one password
// change. State machine: Issued -> Consumed (terminal) or Issued -> Expired
// (terminal, checked lazily at confirmation).
type Reset struct {
	TokenID      string     `json:"tokenId"`
	RestaurantID int        `json:"restaurantId"`
	AdminID      string     `json:"adminId"`
	IssuedAt     time.Time  `json:"issuedAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	Consumed     bool       `json:"consumed"`
	ConsumedAt   *time.Time `json:"consumedAt,omitempty"`
}
