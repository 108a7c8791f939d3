package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Kind discriminates the three token families the codec can mint. A token of
// one kind is never accepted where another kind is expected.
type Kind string

const (
	KindAccess Kind = "access"
	KindInvite Kind = "invite"
	KindReset  Kind = "reset"
)

// Default lifetimes, overridable via codec options.
const (
	DefaultAccessTTL = 15 * time.Minute
	DefaultInviteTTL = 72 * time.Hour
	DefaultResetTTL  = time.Hour
)

// Claims is the decoded, verified content of a token.
type Claims struct {
	Kind         Kind
	TokenID      string // jti, keys the single-use record for invite/reset tokens
	RestaurantID int
	AdminID      string
	Email        string
	Role         string
	SessionID    string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Codec signs and verifies tokens with a process-wide HMAC secret. The secret
// is loaded once at startup and never mutated; rotation is an operational
// concern outside the codec.
type Codec struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	inviteTTL time.Duration
	resetTTL  time.Duration
	nowTime   func() time.Time
}

type CodecOption func(*Codec)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowTime = nowFunc
	}
}

func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		c.accessTTL = ttl
	}
}

func WithInviteTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		c.inviteTTL = ttl
	}
}

func WithResetTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		c.resetTTL = ttl
	}
}

func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

func NewCodec(secret []byte, options ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("[NewCodec] signing secret is required")
	}

	c := &Codec{
		secret:    secret,
		issuer:    "admin-auth",
		accessTTL: DefaultAccessTTL,
		inviteTTL: DefaultInviteTTL,
		resetTTL:  DefaultResetTTL,
		nowTime:   time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// AccessTTL reports the configured access token lifetime, for expires-in
// fields on the wire.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccess mints a short-lived bearer token bound to a session. The token
// carries stateless claims plus the session ID so revocation can invalidate
// it before its natural expiry.
func (c *Codec) IssueAccess(restaurantID int, adminID, email, role, sessionID string) (string, time.Time, error) {
	return c.issue(KindAccess, c.accessTTL, jwt.MapClaims{
		"tid":   restaurantID,
		"sub":   adminID,
		"email": email,
		"role":  role,
		"sid":   sessionID,
	})
}

// IssueInvite mints a single-use invite token. The returned token ID keys the
// consumption record in the invite store.
func (c *Codec) IssueInvite(restaurantID int, email, role string) (string, string, time.Time, error) {
	tokenID := uuid.New().String()
	raw, expiry, err := c.issue(KindInvite, c.inviteTTL, jwt.MapClaims{
		"jti":   tokenID,
		"tid":   restaurantID,
		"email": email,
		"role":  role,
	})
	return raw, tokenID, expiry, err
}

// IssueReset mints a single-use password-reset token for an admin account.
func (c *Codec) IssueReset(restaurantID int, adminID string) (string, string, time.Time, error) {
	tokenID := uuid.New().String()
	raw, expiry, err := c.issue(KindReset, c.resetTTL, jwt.MapClaims{
		"jti": tokenID,
		"tid": restaurantID,
		"sub": adminID,
	})
	return raw, tokenID, expiry, err
}

func (c *Codec) issue(kind Kind, ttl time.Duration, claims jwt.MapClaims) (string, time.Time, error) {
	now := c.nowTime()
	expiry := now.Add(ttl)

	claims["kind"] = string(kind)
	claims["iss"] = c.issuer
	claims["iat"] = now.Unix()
	claims["exp"] = expiry.Unix()
	if _, ok := claims["jti"]; !ok {
		claims["jti"] = uuid.New().String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "[Codec.issue] SignedString")
	}
	return signed, expiry, nil
}

// Verify decodes a raw token, checks its signature and expiry, and enforces
// the expected kind. Expiry is evaluated against the codec clock so tests can
// inject time.
func (c *Codec) Verify(raw string, expected Kind) (*Claims, error) {
	parsed, err := jwt.Parse(raw,
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.nowTime),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	claims, err := claimsFromMap(mapClaims)
	if err != nil {
		return nil, err
	}
	if claims.Kind != expected {
		return nil, ErrWrongKind
	}
	return claims, nil
}

func claimsFromMap(m jwt.MapClaims) (*Claims, error) {
	kind, _ := m["kind"].(string)
	if kind == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{Kind: Kind(kind)}
	claims.TokenID, _ = m["jti"].(string)
	claims.AdminID, _ = m["sub"].(string)
	claims.Email, _ = m["email"].(string)
	claims.Role, _ = m["role"].(string)
	claims.SessionID, _ = m["sid"].(string)

	if tid, ok := m["tid"].(float64); ok {
		claims.RestaurantID = int(tid)
	}
	if iat, ok := m["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := m["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return claims, nil
}
