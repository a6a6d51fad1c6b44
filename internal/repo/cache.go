// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides a small presence cache that front-runs
// the "does this chat have a user/shop row" queries fired on every webhook
// event.
//
// The cache is best-effort: entries expire after a TTL, the map is capped in
// size, and writes to the underlying tables invalidate the affected chat. A
// cold or evicted entry always falls back to a store query.
package repo

import (
	"sync"
	"time"
)

type presenceEntry struct {
	userExists bool
	shopExists bool
	expires    time.Time
}

// PresenceCache caches per-chat existence flags with a TTL and a hard size
// bound. It is safe for concurrent use.
type PresenceCache struct {
	mu      sync.Mutex
	entries map[string]presenceEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// NewPresenceCache builds a cache holding at most maxSize chats, each entry
// valid for ttl. Zero or negative arguments fall back to sane defaults.
func NewPresenceCache(maxSize int, ttl time.Duration) *PresenceCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PresenceCache{
		entries: make(map[string]presenceEntry, maxSize),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached flags for chatID. ok is false for a cold or expired
// entry; expired entries are removed on the way out.
func (c *PresenceCache) Get(chatID string) (userExists, shopExists, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[chatID]
	if !found {
		return false, false, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, chatID)
		return false, false, false
	}
	return e.userExists, e.shopExists, true
}

// Put stores the flags for chatID. When the cache is full, the entry closest
// to expiry is evicted; a linear scan is fine at this size.
func (c *PresenceCache) Put(chatID string, userExists, shopExists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[chatID]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[chatID] = presenceEntry{
		userExists: userExists,
		shopExists: shopExists,
		expires:    c.now().Add(c.ttl),
	}
}

// Invalidate drops the entry for chatID, forcing the next lookup back to the
// store. Called after any write touching that chat's rows.
func (c *PresenceCache) Invalidate(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, chatID)
}

// Len reports the current number of cached chats.
func (c *PresenceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *PresenceCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.expires.Before(oldest) {
			oldestKey, oldest = k, e.expires
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
