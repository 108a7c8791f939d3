package pg

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/tableside/admin-auth/audit"
)

var _ audit.Repo = (*AuditRepo)(nil)

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Append(ctx context.Context, entry audit.Entry) error {
	var payload []byte
	if entry.Payload != nil {
		var err error
		if payload, err = json.Marshal(entry.Payload); err != nil {
			return errors.Wrap(err, "[AuditRepo.Append] Marshal payload")
		}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_log (restaurant_id, actor_email, action, payload, ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.RestaurantID, entry.ActorEmail, entry.Action, payload, entry.IP, entry.CreatedAt,
	)
	return errors.Wrap(err, "[AuditRepo.Append] Exec")
}

func (r *AuditRepo) ListByRestaurant(ctx context.Context, restaurantID int, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT restaurant_id, actor_email, action, payload, ip, created_at
		 FROM audit_log
		 WHERE restaurant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		restaurantID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "[AuditRepo.ListByRestaurant] Query")
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var entry audit.Entry
		var payload []byte
		if err := rows.Scan(&entry.RestaurantID, &entry.ActorEmail, &entry.Action, &payload, &entry.IP, &entry.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "[AuditRepo.ListByRestaurant] Scan")
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Payload); err != nil {
				return nil, errors.Wrap(err, "[AuditRepo.ListByRestaurant] Unmarshal payload")
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
