package invites

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a mutex-guarded in-memory implementation of Repo. Consume
// runs under the write lock, which gives it compare-and-swap semantics.
type InMemoryRepo struct {
	mu      sync.RWMutex
	byToken map[string]*Invite
	byEmail map[string]string // (restaurant, lowercased email) -> token ID
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		byToken: make(map[string]*Invite),
		byEmail: make(map[string]string),
	}
}

func inviteKey(restaurantID int, email string) string {
	return fmt.Sprintf("%d/%s", restaurantID, strings.ToLower(email))
}

func (r *InMemoryRepo) Upsert(_ context.Context, invite *Invite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := inviteKey(invite.RestaurantID, invite.Email)
	if oldToken, ok := r.byEmail[key]; ok {
		delete(r.byToken, oldToken)
	}

	stored := *invite
	r.byToken[stored.TokenID] = &stored
	r.byEmail[key] = stored.TokenID
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, tokenID string) (*Invite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	invite, ok := r.byToken[tokenID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *invite
	return &copied, nil
}

func (r *InMemoryRepo) Consume(_ context.Context, tokenID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	invite, ok := r.byToken[tokenID]
	if !ok {
		return ErrNotFound
	}
	if invite.Consumed {
		return ErrAlreadyConsumed
	}
	invite.Consumed = true
	consumedAt := at
	invite.ConsumedAt = &consumedAt
	return nil
}

func (r *InMemoryRepo) Release(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	invite, ok := r.byToken[tokenID]
	if !ok {
		return ErrNotFound
	}
	invite.Consumed = false
	invite.ConsumedAt = nil
	return nil
}
