package admins

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a mutex-guarded in-memory implementation of Repo, used in
// tests and single-node deployments without a database.
type InMemoryRepo struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	emailIds map[string]string // (restaurant, lowercased email) -> account ID
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		accounts: make(map[string]*Account),
		emailIds: make(map[string]string),
	}
}

func emailKey(restaurantID int, email string) string {
	return fmt.Sprintf("%d/%s", restaurantID, strings.ToLower(email))
}

func (r *InMemoryRepo) Create(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := emailKey(account.RestaurantID, account.Email)
	if _, ok := r.emailIds[key]; ok {
		return ErrDuplicateEmail
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	stored := *account
	r.accounts[stored.ID] = &stored
	r.emailIds[key] = stored.ID
	return nil
}

func (r *InMemoryRepo) GetByEmail(_ context.Context, restaurantID int, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.emailIds[emailKey(restaurantID, email)]
	if !ok {
		return nil, ErrNotFound
	}
	account := *r.accounts[id]
	return &account, nil
}

func (r *InMemoryRepo) GetByID(_ context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *InMemoryRepo) UpdatePasswordHash(_ context.Context, adminID, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[adminID]
	if !ok {
		return ErrNotFound
	}
	account.PasswordHash = newHash
	return nil
}

func (r *InMemoryRepo) SetActive(_ context.Context, adminID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[adminID]
	if !ok {
		return ErrNotFound
	}
	account.Active = active
	return nil
}

func (r *InMemoryRepo) ListByRestaurant(_ context.Context, restaurantID int) ([]*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Account, 0)
	for _, account := range r.accounts {
		if account.RestaurantID != restaurantID {
			continue
		}
		copied := *account
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
