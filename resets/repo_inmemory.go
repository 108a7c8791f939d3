package resets

import (
	"context"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a mutex-guarded in-memory implementation of Repo. Consume
// runs under the write lock, which gives it compare-and-swap semantics.
type InMemoryRepo struct {
	mu      sync.RWMutex
	byToken map[string]*Reset
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{byToken: make(map[string]*Reset)}
}

func (r *InMemoryRepo) Create(_ context.Context, reset *Reset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *reset
	r.byToken[stored.TokenID] = &stored
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, tokenID string) (*Reset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reset, ok := r.byToken[tokenID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *reset
	return &copied, nil
}

func (r *InMemoryRepo) Consume(_ context.Context, tokenID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reset, ok := r.byToken[tokenID]
	if !ok {
		return ErrNotFound
	}
	if reset.Consumed {
		return ErrAlreadyConsumed
	}
	reset.Consumed = true
	consumedAt := at
	reset.ConsumedAt = &consumedAt
	return nil
}

func (r *InMemoryRepo) Release(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reset, ok := r.byToken[tokenID]
	if !ok {
		return ErrNotFound
	}
	reset.Consumed = false
	reset.ConsumedAt = nil
	return nil
}
