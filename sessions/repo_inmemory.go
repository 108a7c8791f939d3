package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a mutex-guarded in-memory implementation of Repo. All
// conditional updates happen under the write lock, which makes them
// linearizable per session.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	bySecret map[string]string // secret hash -> session ID
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]*Session),
		bySecret: make(map[string]string),
	}
}

func (r *InMemoryRepo) Create(_ context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	stored := *session
	r.sessions[stored.ID] = &stored
	if stored.SecretHash != "" {
		r.bySecret[stored.SecretHash] = stored.ID
	}
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *InMemoryRepo) GetBySecretHash(_ context.Context, hash string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySecret[hash]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *r.sessions[id]
	return &copied, nil
}

func (r *InMemoryRepo) ListByAdmin(_ context.Context, restaurantID int, adminID string) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0)
	for _, session := range r.sessions {
		if session.RestaurantID != restaurantID || session.AdminID != adminID {
			continue
		}
		copied := *session
		out = append(out, &copied)
	}
	sortByIssuedAtDesc(out)
	return out, nil
}

func (r *InMemoryRepo) ListByRestaurant(_ context.Context, restaurantID int) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0)
	for _, session := range r.sessions {
		if session.RestaurantID != restaurantID {
			continue
		}
		copied := *session
		out = append(out, &copied)
	}
	sortByIssuedAtDesc(out)
	return out, nil
}

func (r *InMemoryRepo) Revoke(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if session.Revoked {
		return nil
	}
	session.Revoked = true
	revokedAt := at
	session.RevokedAt = &revokedAt
	return nil
}

func (r *InMemoryRepo) RevokeAllExcept(_ context.Context, restaurantID int, adminID, keepID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	revoked := 0
	for _, session := range r.sessions {
		if session.RestaurantID != restaurantID || session.AdminID != adminID {
			continue
		}
		if session.ID == keepID || session.Revoked {
			continue
		}
		session.Revoked = true
		revokedAt := at
		session.RevokedAt = &revokedAt
		revoked++
	}
	return revoked, nil
}

func (r *InMemoryRepo) ExtendExpiry(_ context.Context, id string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if until.After(session.ExpiresAt) {
		session.ExpiresAt = until
	}
	return nil
}

func (r *InMemoryRepo) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if !session.Revoked || session.ExpiresAt.After(before) {
			continue
		}
		delete(r.sessions, id)
		delete(r.bySecret, session.SecretHash)
		removed++
	}
	return removed, nil
}

func sortByIssuedAtDesc(list []*Session) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].IssuedAt.After(list[j].IssuedAt)
	})
}
