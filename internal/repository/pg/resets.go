package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/tableside/admin-auth/resets"
)

var _ resets.Repo = (*ResetRepo)(nil)

type ResetRepo struct {
	db *DB
}

func NewResetRepo(db *DB) *ResetRepo {
	return &ResetRepo{db: db}
}

func (r *ResetRepo) Create(ctx context.Context, reset *resets.Reset) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO password_resets (token_id, restaurant_id, admin_id, issued_at, expires_at, consumed, consumed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		reset.TokenID, reset.RestaurantID, reset.AdminID,
		reset.IssuedAt, reset.ExpiresAt, reset.Consumed, reset.ConsumedAt,
	)
	return errors.Wrap(err, "[ResetRepo.Create] Exec")
}

func (r *ResetRepo) Get(ctx context.Context, tokenID string) (*resets.Reset, error) {
	row := r.db.QueryRow(ctx,
		`SELECT token_id, restaurant_id, admin_id, issued_at, expires_at, consumed, consumed_at
		 FROM password_resets WHERE token_id = $1`, tokenID)

	var reset resets.Reset
	err := row.Scan(&reset.TokenID, &reset.RestaurantID, &reset.AdminID,
		&reset.IssuedAt, &reset.ExpiresAt, &reset.Consumed, &reset.ConsumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resets.ErrNotFound
		}
		return nil, errors.Wrap(err, "[ResetRepo.Get] Scan")
	}
	return &reset, nil
}

// Consume is a conditional update on the consumed flag: exactly one of any
// set of concurrent confirmations wins the row.
func (r *ResetRepo) Consume(ctx context.Context, tokenID string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE password_resets SET consumed = TRUE, consumed_at = $2
		 WHERE token_id = $1 AND NOT consumed`,
		tokenID, at)
	if err != nil {
		return errors.Wrap(err, "[ResetRepo.Consume] Exec")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM password_resets WHERE token_id = $1)`, tokenID).Scan(&exists); err != nil {
			return errors.Wrap(err, "[ResetRepo.Consume] exists check")
		}
		if !exists {
			return resets.ErrNotFound
		}
		return resets.ErrAlreadyConsumed
	}
	return nil
}

func (r *ResetRepo) Release(ctx context.Context, tokenID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE password_resets SET consumed = FALSE, consumed_at = NULL
		 WHERE token_id = $1`,
		tokenID)
	if err != nil {
		return errors.Wrap(err, "[ResetRepo.Release] Exec")
	}
	if tag.RowsAffected() == 0 {
		return resets.ErrNotFound
	}
	return nil
}
