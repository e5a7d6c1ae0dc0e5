package gate

import (
	"context"
	"sync"
	"time"
)

// CachedResolver memoizes another resolver's profiles for a fixed TTL.
// Lookup errors are not cached.
type CachedResolver[U comparable] struct {
	inner ProfileResolver[U]
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[U]cacheEntry
}

type cacheEntry struct {
	profile Profile
	expires time.Time
}

// CacheOption customizes a CachedResolver.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *cacheConfig) { c.now = now }
}

// NewCachedResolver wraps inner. A non-positive ttl disables caching.
func NewCachedResolver[U comparable](inner ProfileResolver[U], ttl time.Duration, opts ...CacheOption) *CachedResolver[U] {
	cfg := cacheConfig{now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	return &CachedResolver[U]{
		inner:   inner,
		ttl:     ttl,
		now:     cfg.now,
		entries: make(map[U]cacheEntry),
	}
}

// Resolve returns the cached profile of user, fetching it when absent or
// expired.
func (r *CachedResolver[U]) Resolve(ctx context.Context, user U) (Profile, error) {
	if r.ttl <= 0 {
		return r.inner.Resolve(ctx, user)
	}
	now := r.now()

	r.mu.RLock()
	e, ok := r.entries[user]
	r.mu.RUnlock()
	if ok && now.Before(e.expires) {
		return e.profile, nil
	}

	profile, err := r.inner.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.entries[user] = cacheEntry{profile: profile, expires: now.Add(r.ttl)}
	r.mu.Unlock()
	return profile, nil
}

// Invalidate drops user's entry, e.g. after a profile reassignment.
func (r *CachedResolver[U]) Invalidate(user U) {
	r.mu.Lock()
	delete(r.entries, user)
	r.mu.Unlock()
}

// InvalidateAll drops every entry, e.g. after a profile's permissions change.
func (r *CachedResolver[U]) InvalidateAll() {
	r.mu.Lock()
	clear(r.entries)
	r.mu.Unlock()
}

// Len is the number of cached entries, expired ones included.
func (r *CachedResolver[U]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
