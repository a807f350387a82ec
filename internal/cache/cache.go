// Package cache is the local TTL cache for catalog payloads. Expired entries are
// kept, not evicted, so they can still be served as a stale fallback.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
)

const keyPrefix = "cache_"

// Store reads and writes CacheEntry records through a KV backend
type Store struct {
	kv  store.KV
	now func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a cache store on top of kv
func NewStore(kv store.KV, opts ...Option) *Store {
	s := &Store{kv: kv, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the entry only while it is fresh
func (s *Store) Get(ctx context.Context, key string) (*models.CacheEntry, bool, error) {
	entry, ok, err := s.load(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if !entry.Fresh(s.now()) {
		return nil, false, nil
	}
	return entry, true, nil
}

// GetStale returns the entry regardless of age
func (s *Store) GetStale(ctx context.Context, key string) (*models.CacheEntry, bool, error) {
	return s.load(ctx, key)
}

// Put overwrites the entry for key, stamping it with the current time
func (s *Store) Put(ctx context.Context, key string, payload any, ttl time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload for %s: %w", key, err)
	}
	entry := models.CacheEntry{
		Key:       key,
		Payload:   raw,
		FetchedAt: s.now(),
		TTL:       ttl,
	}
	return store.SaveJSON(ctx, s.kv, keyPrefix+key, entry)
}

// Invalidate drops the entry for key
func (s *Store) Invalidate(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, keyPrefix+key)
}

func (s *Store) load(ctx context.Context, key string) (*models.CacheEntry, bool, error) {
	entry, found, err := store.LoadJSON[models.CacheEntry](ctx, s.kv, keyPrefix+key)
	if err != nil || !found {
		return nil, false, err
	}
	return &entry, true, nil
}
