package admins

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role represents an admin's role within one restaurant tenant
type Role string

const (
	RoleOwner Role = "owner" // Can manage accounts and every session in the tenant
	RoleStaff Role = "staff" // Can manage only their own sessions
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleStaff
}

// MinPasswordLength is enforced server-side at invite acceptance and password
// reset, regardless of any client-side validation.
const MinPasswordLength = 8

// Account is one admin identity scoped to a single restaurant. Accounts are
// deactivated rather than deleted so session and audit history stays intact.
type Account struct {
	ID           string    `json:"id"`
	RestaurantID int       `json:"restaurantId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialize
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ErrWeakPassword is returned when a password fails the server-side policy.
var ErrWeakPassword = errors.New("password too weak")

// ValidatePassword checks the server-side password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrWeakPassword, MinPasswordLength)
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plaintext password against a bcrypt hash.
// bcrypt comparison is slow, salted, and constant-time.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
