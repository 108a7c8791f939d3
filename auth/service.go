package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tableside/admin-auth/admins"
	"github.com/tableside/admin-auth/audit"
	"github.com/tableside/admin-auth/sessions"
	"github.com/tableside/admin-auth/token"
)

// DefaultSessionTTL is the cookie session lifetime. Refresh slides the window
// forward by the same amount.
const DefaultSessionTTL = 7 * 24 * time.Hour

// dummyHash is a well-formed bcrypt hash matching no password. Login compares
// against it when the email is unknown so both paths cost one bcrypt
// comparison.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Repos bundles the storage the gateway needs.
type Repos struct {
	Admins   admins.Repo
	Sessions sessions.Repo
}

// LoginResult carries everything a successful login or refresh produces: the
// short-lived bearer token for the client and the opaque session secret that
// goes into the cookie. The secret is never stored; only its hash is.
type LoginResult struct {
	Token         string
	TokenExpiry   time.Time
	SessionID     string
	SessionSecret string
	SessionExpiry time.Time
	Account       *admins.Account
}

// Service is the credential and session gateway: login, token verification,
// session refresh, logout, and session administration.
type Service struct {
	repos      Repos
	codec      *token.Codec
	recorder   *audit.Recorder
	sessionTTL time.Duration
	log        zerolog.Logger
	nowTime    func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.sessionTTL = ttl
	}
}

func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

func NewService(repos Repos, codec *token.Codec, recorder *audit.Recorder, options ...ServiceOption) *Service {
	s := &Service{
		repos:      repos,
		codec:      codec,
		recorder:   recorder,
		sessionTTL: DefaultSessionTTL,
		log:        zerolog.Nop(),
		nowTime:    time.Now,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// Login verifies credentials scoped to one restaurant and, on success, opens
// a session and mints an access token bound to it. Unknown email, wrong
// password, and deactivated account all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, restaurantID int, email, password, ip, userAgent string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.repos.Admins.GetByEmail(ctx, restaurantID, email)
	if err != nil {
		// Burn a bcrypt comparison so unknown emails cost the same as known.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if !admins.CheckPasswordHash(password, account.PasswordHash) || !account.Active {
		return nil, ErrInvalidCredentials
	}

	now := s.nowTime()
	secret, err := sessions.NewSecret()
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] NewSecret")
	}

	session := &sessions.Session{
		ID:           uuid.New().String(),
		RestaurantID: account.RestaurantID,
		AdminID:      account.ID,
		AdminEmail:   account.Email,
		SecretHash:   sessions.HashSecret(secret),
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.sessionTTL),
		IP:           ip,
		UserAgent:    userAgent,
	}
	if err := s.repos.Sessions.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] Create session")
	}

	signed, tokenExpiry, err := s.codec.IssueAccess(account.RestaurantID, account.ID, account.Email, string(account.Role), session.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] IssueAccess")
	}

	return &LoginResult{
		Token:         signed,
		TokenExpiry:   tokenExpiry,
		SessionID:     session.ID,
		SessionSecret: secret,
		SessionExpiry: session.ExpiresAt,
		Account:       account,
	}, nil
}

// Verify checks an access token and re-checks the session it is bound to, so
// revoking a session invalidates tokens before their natural expiry.
func (s *Service) Verify(ctx context.Context, rawToken string) (*token.Claims, error) {
	claims, err := s.codec.Verify(rawToken, token.KindAccess)
	if err != nil {
		return nil, ErrUnauthorized
	}

	session, err := s.repos.Sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !session.Valid(s.nowTime()) ||
		session.RestaurantID != claims.RestaurantID ||
		session.AdminID != claims.AdminID {
		return nil, ErrUnauthorized
	}

	return claims, nil
}

// Refresh exchanges a live session cookie for a fresh access token, sliding
// the session expiry forward. The session keeps its ID and secret.
func (s *Service) Refresh(ctx context.Context, sessionSecret string) (*LoginResult, error) {
	session, err := s.sessionBySecret(ctx, sessionSecret)
	if err != nil {
		return nil, err
	}

	account, err := s.repos.Admins.GetByID(ctx, session.AdminID)
	if err != nil || !account.Active {
		return nil, ErrSessionInvalid
	}

	now := s.nowTime()
	newExpiry := now.Add(s.sessionTTL)
	if err := s.repos.Sessions.ExtendExpiry(ctx, session.ID, newExpiry); err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] ExtendExpiry")
	}

	signed, tokenExpiry, err := s.codec.IssueAccess(account.RestaurantID, account.ID, account.Email, string(account.Role), session.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] IssueAccess")
	}

	return &LoginResult{
		Token:         signed,
		TokenExpiry:   tokenExpiry,
		SessionID:     session.ID,
		SessionExpiry: newExpiry,
		Account:       account,
	}, nil
}

// Logout revokes the session behind the cookie. Idempotent: an unknown or
// already revoked session logs out successfully.
func (s *Service) Logout(ctx context.Context, sessionSecret string) error {
	if sessionSecret == "" {
		return nil
	}

	session, err := s.repos.Sessions.GetBySecretHash(ctx, sessions.HashSecret(sessionSecret))
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "[Service.Logout] GetBySecretHash")
	}

	if err := s.repos.Sessions.Revoke(ctx, session.ID, s.nowTime()); err != nil {
		return errors.Wrap(err, "[Service.Logout] Revoke")
	}

	s.recorder.Record(ctx, audit.Entry{
		RestaurantID: session.RestaurantID,
		ActorEmail:   session.AdminEmail,
		Action:       audit.ActionLogout,
		Payload:      map[string]any{"session_id": session.ID},
	})

	return nil
}

// ListSessions enumerates sessions in a tenant. Owners see every session of
// their restaurant; staff see only their own. Cross-tenant access is always
// forbidden.
func (s *Service) ListSessions(ctx context.Context, actor *token.Claims, restaurantID int) ([]*sessions.Session, error) {
	if actor == nil || actor.RestaurantID != restaurantID {
		return nil, ErrForbidden
	}

	if admins.Role(actor.Role) == admins.RoleOwner {
		return s.repos.Sessions.ListByRestaurant(ctx, restaurantID)
	}
	return s.repos.Sessions.ListByAdmin(ctx, restaurantID, actor.AdminID)
}

// Revoke revokes one session by ID. Staff may revoke only their own sessions;
// owners any session of their restaurant. A session in another tenant looks
// like it does not exist.
func (s *Service) Revoke(ctx context.Context, actor *token.Claims, sessionID string) error {
	session, err := s.repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.RestaurantID != actor.RestaurantID {
		return sessions.ErrNotFound
	}
	if admins.Role(actor.Role) != admins.RoleOwner && session.AdminID != actor.AdminID {
		return ErrForbidden
	}

	if err := s.repos.Sessions.Revoke(ctx, sessionID, s.nowTime()); err != nil {
		return err
	}

	action := audit.ActionSessionRevoked
	if session.AdminID != actor.AdminID {
		action = audit.ActionSessionRevokeRest
	}
	s.recorder.Record(ctx, audit.Entry{
		RestaurantID: actor.RestaurantID,
		ActorEmail:   actor.Email,
		Action:       action,
		Payload:      map[string]any{"session_id": sessionID, "session_admin": session.AdminID},
	})

	return nil
}

// RevokeOthers revokes every other session of the caller, keeping the one the
// current token is bound to. Returns how many were revoked.
func (s *Service) RevokeOthers(ctx context.Context, actor *token.Claims) (int, error) {
	revoked, err := s.repos.Sessions.RevokeAllExcept(ctx, actor.RestaurantID, actor.AdminID, actor.SessionID, s.nowTime())
	if err != nil {
		return 0, errors.Wrap(err, "[Service.RevokeOthers] RevokeAllExcept")
	}

	s.recorder.Record(ctx, audit.Entry{
		RestaurantID: actor.RestaurantID,
		ActorEmail:   actor.Email,
		Action:       audit.ActionSessionRevoked,
		Payload:      map[string]any{"count": revoked, "kept": actor.SessionID},
	})

	return revoked, nil
}

func (s *Service) sessionBySecret(ctx context.Context, secret string) (*sessions.Session, error) {
	if secret == "" {
		return nil, ErrSessionInvalid
	}
	session, err := s.repos.Sessions.GetBySecretHash(ctx, sessions.HashSecret(secret))
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if !session.Valid(s.nowTime()) {
		return nil, ErrSessionInvalid
	}
	return session, nil
}
