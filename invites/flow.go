package invites

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
	"github.com/tableside/admin-auth/token"
)

// Service issues and redeems admin invitations. Issuing is restricted to
// owners of the target restaurant; redemption provisions a staff or owner
// account exactly once per token.
type Service struct {
	repo        Repo
	admins      admins.Repo
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

func NewService(repo Repo, adminRepo admins.Repo, codec *token.Codec, mailer notify.Mailer, recorder *audit.Recorder, options ...ServiceOption) *Service {
	s := &Service{
		repo:        repo,
		admins:      adminRepo,
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

// Issue creates an invitation for a new admin of the actor's restaurant and
// emails the invite link. Only owners may invite, and only into their own
// tenant. Re-inviting an email replaces the pending invite, so the earlier
// token stops redeeming.
func (s *Service) Issue(ctx context.Context, actor *token.Claims, restaurantID int, email string, role admins.Role) (*Invite, error) {
	if actor == nil || admins.Role(actor.Role) != admins.RoleOwner || actor.RestaurantID != restaurantID {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("[Service.Issue] email is required")
	}

	raw, tokenID, expiry, err := s.codec.IssueInvite(restaurantID, email, string(role))
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Issue] IssueInvite")
	}

	invite := &Invite{
		TokenID:      tokenID,
		RestaurantID: restaurantID,
		Email:        email,
		Role:         role,
		InvitedBy:    actor.Email,
		IssuedAt:     s.nowTime(),
		ExpiresAt:    expiry,
	}
	if err := s.repo.Upsert(ctx, invite); err != nil {
		return nil, errors.Wrap(err, "[Service.Issue] Upsert")
	}

	// Mail goes out on its own goroutine; a slow or failing SMTP server never
	// decides the request's outcome.
	go s.sendInviteMail(context.WithoutCancel(ctx), invite, raw)

	s.recorder.Record(ctx, audit.Entry{
		RestaurantID: restaurantID,
		ActorEmail:   actor.Email,
		Action:       audit.ActionInviteCreated,
		Payload:      map[string]any{"email": email, "role": string(role)},
	})

	return invite, nil
}

// Redeem accepts an invitation and provisions the admin account. The token is
// consumed before account creation; if creation then fails the consumption is
// released so the link stays usable.
func (s *Service) Redeem(ctx context.Context, rawToken, password string) (*admins.Account, error) {
	claims, err := s.codec.Verify(rawToken, token.KindInvite)
	if err != nil {
		return nil, err
	}
	if err := admins.ValidatePassword(password); err != nil {
		return nil, err
	}

	invite, err := s.repo.Get(ctx, claims.TokenID)
	if err != nil {
		return nil, err
	}

	hash, err := admins.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Redeem] HashPassword")
	}

	now := s.nowTime()
	if err := s.repo.Consume(ctx, claims.TokenID, now); err != nil {
		return nil, err
	}

	account := &admins.Account{
		RestaurantID: invite.RestaurantID,
		Email:        invite.Email,
		PasswordHash: hash,
		Role:         invite.Role,
		Active:       true,
		CreatedAt:    now,
	}
	if err := s.admins.Create(ctx, account); err != nil {
		if releaseErr := s.repo.Release(ctx, claims.TokenID); releaseErr != nil {
			s.log.Err(releaseErr).Str("token_id", claims.TokenID).Msg("failed to release consumed invite")
		}
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		RestaurantID: invite.RestaurantID,
		ActorEmail:   invite.Email,
		Action:       audit.ActionInviteAccepted,
		Payload:      map[string]any{"role": string(invite.Role), "invited_by": invite.InvitedBy},
	})

	return account, nil
}

const mailTimeout = 10 * time.Second

func (s *Service) sendInviteMail(ctx context.Context, invite *Invite, rawToken string) {
	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()

	link := fmt.Sprintf("%s/admin/invite/accept?token=%s", s.frontendURL, rawToken)
	body := fmt.Sprintf(
		"You have been invited to join restaurant %d as %s.\r\n\r\n"+
			"Follow this link to set your password and activate your account:\r\n%s\r\n\r\n"+
			"The link expires at %s.\r\n",
		invite.RestaurantID, invite.Role, link, invite.ExpiresAt.UTC().Format(time.RFC1123))

	if err := s.mailer.Send(ctx, invite.Email, "You have been invited", body); err != nil {
		s.log.Err(err).Str("email", invite.Email).Msg("failed to send invite email")
	}
}
