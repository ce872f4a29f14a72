package directory

import (
	"context"
	"sync"
	"time"

	"dispatch-chat/errors"
)

// CachedDirectory memoizes successful lookups for a TTL so rendering a
// conversation list does not hit the directory once per room. Failures are
// not cached; the next render retries.
type CachedDirectory struct {
	inner DriverDirectory
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	profile   Profile
	expiresAt time.Time
}

func NewCachedDirectory(inner DriverDirectory, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{inner: inner, ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *CachedDirectory) Lookup(ctx context.Context, driverID string) (Profile, error) {
	c.mu.RLock()
	entry, ok := c.entries[driverID]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.profile, nil
	}

	profile, err := c.inner.Lookup(ctx, driverID)
	if err != nil {
		return Profile{}, err
	}

	c.mu.Lock()
	c.entries[driverID] = cacheEntry{profile: profile, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return profile, nil
}

// Static is a fixed in-memory directory used in tests and local runs.
type Static map[string]Profile

func (s Static) Lookup(_ context.Context, driverID string) (Profile, error) {
	profile, ok := s[driverID]
	if !ok {
		return Profile{}, errors.ErrNotFound
	}
	return profile, nil
}
