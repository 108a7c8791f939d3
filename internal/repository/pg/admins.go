package pg

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/tableside/admin-auth/admins"
)

var _ admins.Repo = (*AdminRepo)(nil)

type AdminRepo struct {
	db *DB
}

func NewAdminRepo(db *DB) *AdminRepo {
	return &AdminRepo{db: db}
}

const adminColumns = "id, restaurant_id, email, password_hash, role, active, created_at"

func (r *AdminRepo) Create(ctx context.Context, account *admins.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO admin_accounts (id, restaurant_id, email, password_hash, role, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID, account.RestaurantID, strings.ToLower(account.Email),
		account.PasswordHash, string(account.Role), account.Active, account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return admins.ErrDuplicateEmail
		}
		return errors.Wrap(err, "[AdminRepo.Create] Exec")
	}
	return nil
}

func (r *AdminRepo) GetByEmail(ctx context.Context, restaurantID int, email string) (*admins.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admin_accounts
		 WHERE restaurant_id = $1 AND LOWER(email) = LOWER($2)`,
		restaurantID, email)
	return scanAccount(row)
}

func (r *AdminRepo) GetByID(ctx context.Context, id string) (*admins.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admin_accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *AdminRepo) UpdatePasswordHash(ctx context.Context, adminID, newHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE admin_accounts SET password_hash = $2 WHERE id = $1`, adminID, newHash)
	if err != nil {
		return errors.Wrap(err, "[AdminRepo.UpdatePasswordHash] Exec")
	}
	if tag.RowsAffected() == 0 {
		return admins.ErrNotFound
	}
	return nil
}

func (r *AdminRepo) SetActive(ctx context.Context, adminID string, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE admin_accounts SET active = $2 WHERE id = $1`, adminID, active)
	if err != nil {
		return errors.Wrap(err, "[AdminRepo.SetActive] Exec")
	}
	if tag.RowsAffected() == 0 {
		return admins.ErrNotFound
	}
	return nil
}

func (r *AdminRepo) ListByRestaurant(ctx context.Context, restaurantID int) ([]*admins.Account, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+adminColumns+` FROM admin_accounts
		 WHERE restaurant_id = $1 ORDER BY created_at`, restaurantID)
	if err != nil {
		return nil, errors.Wrap(err, "[AdminRepo.ListByRestaurant] Query")
	}
	defer rows.Close()

	var out []*admins.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (*admins.Account, error) {
	var a admins.Account
	var role string
	err := row.Scan(&a.ID, &a.RestaurantID, &a.Email, &a.PasswordHash, &role, &a.Active, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, admins.ErrNotFound
		}
		return nil, errors.Wrap(err, "[scanAccount] Scan")
	}
	a.Role = admins.Role(role)
	return &a, nil
}
