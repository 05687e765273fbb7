package idempotency

import (
	"context"
	"time"
)

// Cache is a TTL key store used to remember already-seen work. Backends are
// best-effort: callers must stay correct when an entry is lost.
type Cache interface {
	// SetNX stores key for ttl unless it is already present. It returns true
	// when this call stored the key.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
