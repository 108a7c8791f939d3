package pg

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/tableside/admin-auth/admins"
	"github.com/tableside/admin-auth/invites"
)

var _ invites.Repo = (*InviteRepo)(nil)

type InviteRepo struct {
	db *DB
}

func NewInviteRepo(db *DB) *InviteRepo {
	return &InviteRepo{db: db}
}

const inviteColumns = "token_id, restaurant_id, email, role, invited_by, issued_at, expires_at, consumed, consumed_at"

func (r *InviteRepo) Upsert(ctx context.Context, invite *invites.Invite) error {
	// Re-inviting an email replaces the pending invite under a new token ID,
	// invalidating the old link.
	_, err := r.db.Exec(ctx,
		`INSERT INTO admin_invites (token_id, restaurant_id, email, role, invited_by, issued_at, expires_at, consumed, consumed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (restaurant_id, LOWER(email)) DO UPDATE SET
			token_id = EXCLUDED.token_id,
			role = EXCLUDED.role,
			invited_by = EXCLUDED.invited_by,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at,
			consumed = EXCLUDED.consumed,
			consumed_at = EXCLUDED.consumed_at`,
		invite.TokenID, invite.RestaurantID, strings.ToLower(invite.Email),
		string(invite.Role), invite.InvitedBy, invite.IssuedAt, invite.ExpiresAt,
		invite.Consumed, invite.ConsumedAt,
	)
	return errors.Wrap(err, "[InviteRepo.Upsert] Exec")
}

func (r *InviteRepo) Get(ctx context.Context, tokenID string) (*invites.Invite, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM admin_invites WHERE token_id = $1`, tokenID)

	var inv invites.Invite
	var role string
	err := row.Scan(&inv.TokenID, &inv.RestaurantID, &inv.Email, &role, &inv.InvitedBy,
		&inv.IssuedAt, &inv.ExpiresAt, &inv.Consumed, &inv.ConsumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invites.ErrNotFound
		}
		return nil, errors.Wrap(err, "[InviteRepo.Get] Scan")
	}
	inv.Role = admins.Role(role)
	return &inv, nil
}

// Consume is a conditional update on the consumed flag: exactly one of any
// set of concurrent redemptions wins the row.
func (r *InviteRepo) Consume(ctx context.Context, tokenID string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE admin_invites SET consumed = TRUE, consumed_at = $2
		 WHERE token_id = $1 AND NOT consumed`,
		tokenID, at)
	if err != nil {
		return errors.Wrap(err, "[InviteRepo.Consume] Exec")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM admin_invites WHERE token_id = $1)`, tokenID).Scan(&exists); err != nil {
			return errors.Wrap(err, "[InviteRepo.Consume] exists check")
		}
		if !exists {
			return invites.ErrNotFound
		}
		return invites.ErrAlreadyConsumed
	}
	return nil
}

func (r *InviteRepo) Release(ctx context.Context, tokenID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE admin_invites SET consumed = FALSE, consumed_at = NULL
		 WHERE token_id = $1`,
		tokenID)
	if err != nil {
		return errors.Wrap(err, "[InviteRepo.Release] Exec")
	}
	if tag.RowsAffected() == 0 {
		return invites.ErrNotFound
	}
	return nil
}
