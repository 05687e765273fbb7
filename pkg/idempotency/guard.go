package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Guard marks ids as processed inside one scope for a fixed TTL.
type Guard struct {
	cache Cache
	scope string
	ttl   time.Duration
}

func NewGuard(cache Cache, scope string, ttl time.Duration) (*Guard, error) {
	if cache == nil {
		return nil, errors.New("idempotency cache is required")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Guard{cache: cache, scope: scope, ttl: ttl}, nil
}

// CheckAndMark returns true when id was already marked within the TTL and
// marks it otherwise.
func (g *Guard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	return g.CheckAndMarkWithin(ctx, id, 0)
}

// CheckAndMarkWithin behaves like CheckAndMark but shortens the mark to
// window when window is positive and below the guard TTL.
func (g *Guard) CheckAndMarkWithin(ctx context.Context, id string, window time.Duration) (bool, error) {
	if id == "" {
		return false, errors.New("id is required")
	}
	ttl := g.ttl
	if window > 0 && window < ttl {
		ttl = window
	}
	set, err := g.cache.SetNX(ctx, g.key(id), ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release forgets id so a retry is processed again.
func (g *Guard) Release(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	return g.cache.Delete(ctx, g.key(id))
}

func (g *Guard) key(id string) string {
	return g.scope + ":" + id
}
