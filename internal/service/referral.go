package service

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"smash-rewards/internal/repository"
)

// ReferralResolver maps referral codes to the ids of the activated accounts
// that own them. A code never changes owner once assigned, so hits are cached.
type ReferralResolver struct {
	store AccountStore
	cache *lru.Cache
}

// NewReferralResolver creates a resolver with an LRU of size entries.
func NewReferralResolver(store AccountStore, size int) (*ReferralResolver, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create referral cache: %w", err)
	}
	return &ReferralResolver{store: store, cache: cache}, nil
}

// Resolve returns the owner id of code, or ErrReferralNotFound.
func (r *ReferralResolver) Resolve(ctx context.Context, code string) (string, error) {
	if v, ok := r.cache.Get(code); ok {
		return v.(string), nil
	}

	acc, err := r.store.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", ErrReferralNotFound
		}
		return "", upstream("resolve referral code", err)
	}
	if !acc.IsActivated {
		return "", ErrReferralNotFound
	}

	r.cache.Add(code, acc.ID)
	return acc.ID, nil
}
