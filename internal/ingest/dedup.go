package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/wacart-backend/pkg/idempotency"
)

// Deduplicator suppresses redelivered webhook events. Events with a provider
// id are keyed on it; events without one fall back to phone plus content for
// a shorter window.
type Deduplicator struct {
	cache         idempotency.Cache
	eventWindow   time.Duration
	contentWindow time.Duration
}

func NewDeduplicator(cache idempotency.Cache, eventWindow, contentWindow time.Duration) (*Deduplicator, error) {
	if cache == nil {
		return nil, errors.New("dedup cache required")
	}
	if eventWindow <= 0 || contentWindow <= 0 {
		return nil, errors.New("dedup windows must be positive")
	}
	return &Deduplicator{cache: cache, eventWindow: eventWindow, contentWindow: contentWindow}, nil
}

// Key returns the dedup key for an event and the window it is held for.
func (d *Deduplicator) Key(eventID, phone, text string) (string, time.Duration) {
	if id := strings.TrimSpace(eventID); id != "" {
		return "inbound:event:" + id, d.eventWindow
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return "inbound:content:" + phone + ":" + hex.EncodeToString(sum[:]), d.contentWindow
}

// Seen marks key and reports whether it was already marked.
func (d *Deduplicator) Seen(ctx context.Context, key string, window time.Duration) (bool, error) {
	set, err := d.cache.SetNX(ctx, key, window)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release forgets key so the provider's retry is processed again.
func (d *Deduplicator) Release(ctx context.Context, key string) error {
	return d.cache.Delete(ctx, key)
}
