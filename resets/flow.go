package resets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tableside/admin-auth/admins"
	"github.com/tableside/admin-auth/audit"
	"github.com/tableside/admin-auth/notify"
	"github.com/tableside/admin-auth/sessions"
	"github.com/tableside/admin-auth/token"
)

// Service runs the password reset flow: an unauthenticated request that mails
// a single-use reset link, and a confirmation that sets the new password and
// revokes every session of the affected admin.
type Service struct {
	repo        Repo
	admins      admins.Repo
	sessions    sessions.Repo
	codec       *token.Codec
	mailer      notify.Mailer
	recorder    *audit.Recorder
	frontendURL string
	log         zerolog.Logger
	nowTime     func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithFrontendURL(url string) ServiceOption {
	return func(s *Service) {
		s.frontendURL = strings.TrimRight(url, "/")
	}
}

func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

func NewService(repo Repo, adminRepo admins.Repo, sessionRepo sessions.Repo, codec *token.Codec, mailer notify.Mailer, recorder *audit.Recorder, options ...ServiceOption) *Service {
	s := &Service{
		repo:        repo,
		admins:      adminRepo,
		sessions:    sessionRepo,
		codec:       codec,
		mailer:      mailer,
		recorder:    recorder,
		frontendURL: "http://localhost:3000",
		log:         zerolog.Nop(),
		nowTime:     time.Now,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// Request issues a reset token for the account matching (restaurant, email)
// and mails the link. The response is identical whether or not the account
// exists: unknown emails do equivalent-cost work and return the same generic
// acknowledgement, so the endpoint cannot be used to enumerate accounts.
func (s *Service) Request(ctx context.Context, restaurantID int, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.admins.GetByEmail(ctx, restaurantID, email)
	if err != nil || !account.Active {
		// Unknown or inactive account: sign and discard a token, the same
		// work the real path does, so response timing does not reveal
		// whether the account exists. Acknowledge, send nothing.
		if _, _, _, signErr := s.codec.IssueReset(restaurantID, decoyAdminID); signErr != nil {
			s.log.Err(signErr).Msg("decoy token issue failed")
		}
		return nil
	}

	raw, tokenID, expiry, err := s.codec.IssueReset(restaurantID, account.ID)
	if err != nil {
		return errors.Wrap(err, "[Service.Request] IssueReset")
	}

	now := s.nowTime()
	reset := &Reset{
		TokenID:      tokenID,
		RestaurantID: restaurantID,
		AdminID:      account.ID,
		IssuedAt:     now,
		ExpiresAt:    expiry,
	}
	if err := s.repo.Create(ctx, reset); err != nil {
		return errors.Wrap(err, "[Service.Request] Create")
	}

	// Mail goes out on its own goroutine; a slow or failing SMTP server never
	// decides the request's outcome.
	go s.sendResetMail(context.WithoutCancel(ctx), account.Email, raw, expiry)

	s.recorder.Record(ctx, audit.Entry{
		RestaurantID: restaurantID,
		ActorEmail:   account.Email,
		Action:       audit.ActionResetRequested,
	})

	return nil
}

// Confirm sets a new password from a reset token. The token is consumed
// before the password update; if the update then fails the consumption is
// released so the link stays usable. On success every session of the admin is
// revoked, forcing a fresh login everywhere.
func (s *Service) Confirm(ctx context.Context, rawToken, newPassword string) error {
	claims, err := s.codec.Verify(rawToken, token.KindReset)
	if err != nil {
		return err
	}
	if err := admins.ValidatePassword(newPassword); err != nil {
		return err
	}

	reset, err := s.repo.Get(ctx, claims.TokenID)
	if err != nil {
		return err
	}

	hash, err := admins.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "[Service.Confirm] HashPassword")
	}

	now := s.nowTime()
	if err := s.repo.Consume(ctx, claims.TokenID, now); err != nil {
		return err
	}

	if err := s.admins.UpdatePasswordHash(ctx, reset.AdminID, hash); err != nil {
		if releaseErr := s.repo.Release(ctx, claims.TokenID); releaseErr != nil {
			s.log.Err(releaseErr).Str("token_id", claims.TokenID).Msg("failed to release consumed reset")
		}
		return errors.Wrap(err, "[Service.Confirm] UpdatePasswordHash")
	}

	revoked, err := s.sessions.RevokeAllExcept(ctx, reset.RestaurantID, reset.AdminID, "", now)
	if err != nil {
		s.log.Err(err).Str("admin_id", reset.AdminID).Msg("failed to revoke sessions after password reset")
	}

	account, err := s.admins.GetByID(ctx, reset.AdminID)
	actorEmail := ""
	if err == nil {
		actorEmail = account.Email
	}
	s.recorder.Record(ctx, audit.Entry{
		RestaurantID: reset.RestaurantID,
		ActorEmail:   actorEmail,
		Action:       audit.ActionResetConfirmed,
		Payload:      map[string]any{"sessions_revoked": revoked},
	})

	return nil
}

const (
	mailTimeout = 10 * time.Second

	// decoyAdminID stands in for the subject when signing a throwaway token
	// for a request that matched no account.
	decoyAdminID = "00000000-0000-0000-0000-000000000000"
)

func (s *Service) sendResetMail(ctx context.Context, email, rawToken string, expiry time.Time) {
	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()

	link := fmt.Sprintf("%s/admin/password_reset/confirm?token=%s", s.frontendURL, rawToken)
	body := fmt.Sprintf(
		"A password reset was requested for your account.\r\n\r\n"+
			"Follow this link to choose a new password:\r\n%s\r\n\r\n"+
			"The link expires at %s. If you did not request this, ignore this email.\r\n",
		link, expiry.UTC().Format(time.RFC1123))

	if err := s.mailer.Send(ctx, email, "Password reset", body); err != nil {
		s.log.Err(err).Str("email", email).Msg("failed to send reset email")
	}
}
