package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/tableside/admin-auth/sessions"
)

var _ sessions.Repo = (*SessionRepo)(nil)

type SessionRepo struct {
	db *DB
}

func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

const sessionColumns = "id, restaurant_id, admin_id, admin_email, secret_hash, issued_at, expires_at, ip, user_agent, revoked, revoked_at"

func (r *SessionRepo) Create(ctx context.Context, session *sessions.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO admin_sessions (id, restaurant_id, admin_id, admin_email, secret_hash, issued_at, expires_at, ip, user_agent, revoked, revoked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		session.ID, session.RestaurantID, session.AdminID, session.AdminEmail,
		session.SecretHash, session.IssuedAt, session.ExpiresAt,
		session.IP, session.UserAgent, session.Revoked, session.RevokedAt,
	)
	return errors.Wrap(err, "[SessionRepo.Create] Exec")
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*sessions.Session, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM admin_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *SessionRepo) GetBySecretHash(ctx context.Context, hash string) (*sessions.Session, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM admin_sessions WHERE secret_hash = $1`, hash)
	return scanSession(row)
}

func (r *SessionRepo) ListByAdmin(ctx context.Context, restaurantID int, adminID string) ([]*sessions.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM admin_sessions
		 WHERE restaurant_id = $1 AND admin_id = $2
		 ORDER BY issued_at DESC`,
		restaurantID, adminID)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.ListByAdmin] Query")
	}
	return collectSessions(rows)
}

func (r *SessionRepo) ListByRestaurant(ctx context.Context, restaurantID int) ([]*sessions.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM admin_sessions
		 WHERE restaurant_id = $1
		 ORDER BY issued_at DESC`,
		restaurantID)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.ListByRestaurant] Query")
	}
	return collectSessions(rows)
}

// Revoke is a conditional update: already revoked rows are untouched, so
// revoked_at always records the first revocation.
func (r *SessionRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE admin_sessions SET revoked = TRUE, revoked_at = $2
		 WHERE id = $1 AND NOT revoked`,
		id, at)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Revoke] Exec")
	}
	if tag.RowsAffected() == 0 {
		// Distinguish idempotent re-revocation from an unknown session.
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM admin_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return errors.Wrap(err, "[SessionRepo.Revoke] exists check")
		}
		if !exists {
			return sessions.ErrNotFound
		}
	}
	return nil
}

func (r *SessionRepo) RevokeAllExcept(ctx context.Context, restaurantID int, adminID, keepID string, at time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE admin_sessions SET revoked = TRUE, revoked_at = $4
		 WHERE restaurant_id = $1 AND admin_id = $2 AND id <> $3 AND NOT revoked`,
		restaurantID, adminID, keepID, at)
	if err != nil {
		return 0, errors.Wrap(err, "[SessionRepo.RevokeAllExcept] Exec")
	}
	return int(tag.RowsAffected()), nil
}

func (r *SessionRepo) ExtendExpiry(ctx context.Context, id string, until time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE admin_sessions SET expires_at = $2
		 WHERE id = $1 AND NOT revoked AND expires_at < $2`,
		id, until)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.ExtendExpiry] Exec")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM admin_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return errors.Wrap(err, "[SessionRepo.ExtendExpiry] exists check")
		}
		if !exists {
			return sessions.ErrNotFound
		}
	}
	return nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM admin_sessions WHERE revoked AND expires_at < $1`, before)
	if err != nil {
		return 0, errors.Wrap(err, "[SessionRepo.DeleteExpired] Exec")
	}
	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*sessions.Session, error) {
	var s sessions.Session
	err := row.Scan(&s.ID, &s.RestaurantID, &s.AdminID, &s.AdminEmail, &s.SecretHash,
		&s.IssuedAt, &s.ExpiresAt, &s.IP, &s.UserAgent, &s.Revoked, &s.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sessions.ErrNotFound
		}
		return nil, errors.Wrap(err, "[scanSession] Scan")
	}
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]*sessions.Session, error) {
	defer rows.Close()

	var out []*sessions.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}
