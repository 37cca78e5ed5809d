// Package cache provides the in-process result cache for hybrid recommendations.
package cache

import (
	"context"
	"hybridReco/domain"
	"sync"
	"time"
)

const defaultMaxEntries = 10000

type key struct {
	userID uint64
	limit  int
}

type entry struct {
	recs      []domain.Recommendation
	expiresAt time.Time
}

// Stats tracks cache performance.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// ResultCache keys results by (user, limit). Entries live for ttl measured on the injected
// clock, independently of the recommendations' own expiry.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[key]entry
	ttl        time.Duration
	now        func() time.Time
	maxEntries int
	stats      Stats
}

// New returns a cache with the given ttl. A nil clock means time.Now.
func New(ttl time.Duration, now func() time.Time) *ResultCache {
	if now == nil {
		now = time.Now
	}
	return &ResultCache{
		entries:    make(map[key]entry),
		ttl:        ttl,
		now:        now,
		maxEntries: defaultMaxEntries,
	}
}

func (c *ResultCache) Get(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, bool) {
	k := key{userID: userID, limit: limit}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, k)
		c.stats.Misses++
		c.stats.Evictions++
		return nil, false
	}

	c.stats.Hits++
	return copyRecs(e.recs), true
}

func (c *ResultCache) Set(ctx context.Context, userID uint64, limit int, recs []domain.Recommendation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.sweepLocked()
	}
	c.entries[key{userID: userID, limit: limit}] = entry{
		recs:      copyRecs(recs),
		expiresAt: c.now().Add(c.ttl),
	}
}

// InvalidateUser drops every limit variant cached for the user.
func (c *ResultCache) InvalidateUser(ctx context.Context, userID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if k.userID == userID {
			delete(c.entries, k)
		}
	}
}

// Sweep removes expired entries and returns how many were dropped.
func (c *ResultCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

func (c *ResultCache) sweepLocked() int {
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	c.stats.Evictions += int64(n)
	return n
}

func (c *ResultCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.Entries = len(c.entries)
	return s
}

func copyRecs(in []domain.Recommendation) []domain.Recommendation {
	if in == nil {
		return nil
	}
	out := make([]domain.Recommendation, len(in))
	copy(out, in)
	return out
}
