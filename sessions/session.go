package sessions

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Session is a server-tracked record of one authenticated browser context.
// It is revocable independent of its access token's natural expiry and is
// never deleted on revocation, so session history stays auditable.
//
// The browser holds an opaque random secret in an HttpOnly cookie; only its
// SHA-256 hash is stored. Refresh reuses the session ID and extends ExpiresAt
// under a sliding window; the secret is not rotated.
type Session struct {
	ID           string     `json:"id"`
	RestaurantID int        `json:"restaurantId"`
	AdminID      string     `json:"adminId"`
	AdminEmail   string     `json:"adminEmail"`
	SecretHash   string     `json:"-"` // sha256 hex of the cookie secret
	IssuedAt     time.Time  `json:"issuedAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	IP           string     `json:"ip"`
	UserAgent    string     `json:"userAgent"`
	Revoked      bool       `json:"revoked"`
	RevokedAt    *time.Time `json:"revokedAt,omitempty"`
}

// Valid reports whether the session can still authenticate requests.
func (s *Session) Valid(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// NewSecret generates a 256-bit session secret, hex encoded. The raw value is
// surfaced to the client exactly once.
func NewSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashSecret derives the stored form of a session secret.
func HashSecret(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
