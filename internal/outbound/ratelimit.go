package outbound

import (
	"context"
	"errors"
	"sync"
	"time"
)

// RateLimiter enforces the per-tenant send ceiling. When a send is refused,
// retryAfter estimates when capacity frees up.
type RateLimiter interface {
	Allow(ctx context.Context, tenantID string) (allowed bool, retryAfter time.Duration, err error)
}

// MemoryRateLimiter is a sliding-window limiter local to one process.
type MemoryRateLimiter struct {
	mu     sync.Mutex
	sends  map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewMemoryRateLimiter(limit int, window time.Duration) (*MemoryRateLimiter, error) {
	if err := validateLimit(limit, window); err != nil {
		return nil, err
	}
	return &MemoryRateLimiter{
		sends:  make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}, nil
}

func validateLimit(limit int, window time.Duration) error {
	if limit <= 0 {
		return errors.New("rate limit must be positive")
	}
	if window <= 0 {
		return errors.New("rate window must be positive")
	}
	return nil
}

func (l *MemoryRateLimiter) Allow(_ context.Context, tenantID string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)
	valid := l.sends[tenantID][:0]
	for _, at := range l.sends[tenantID] {
		if at.After(windowStart) {
			valid = append(valid, at)
		}
	}
	if len(valid) >= l.limit {
		l.sends[tenantID] = valid
		if len(valid) == 0 {
			return false, l.window, nil
		}
		return false, valid[0].Add(l.window).Sub(now), nil
	}
	l.sends[tenantID] = append(valid, now)
	return true, 0, nil
}

type fixedWindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, time.Duration, error)
}

// RedisRateLimiter shares the ceiling across processes with a fixed window
// counter.
type RedisRateLimiter struct {
	store  fixedWindowStore
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(store fixedWindowStore, limit int, window time.Duration) (*RedisRateLimiter, error) {
	if store == nil {
		return nil, errors.New("redis store required")
	}
	if err := validateLimit(limit, window); err != nil {
		return nil, err
	}
	return &RedisRateLimiter{store: store, limit: limit, window: window}, nil
}

func (l *RedisRateLimiter) Allow(ctx context.Context, tenantID string) (bool, time.Duration, error) {
	return l.store.FixedWindowAllow(ctx, "outbound:"+tenantID, int64(l.limit), l.window)
}
