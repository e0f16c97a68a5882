// Package cache provides a small thread-safe in-memory TTL cache.
//
// It is an explicit, injectable service rather than a process-wide singleton:
// each component owns its own TTL and tests can swap the clock.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a key→value cache whose entries expire after a fixed lifetime.
// Expired entries are never returned; Evict (or Run) reclaims their memory.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration

	// Now returns the current time. Tests replace it with a fake clock.
	Now func() time.Time
}

// New creates a TTL cache whose entries live for ttl.
func New[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		Now:     time.Now,
	}
}

// Get returns the live value stored under key.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache's default TTL, overwriting any
// previous value (last writer wins).
func (c *TTL[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with an explicit lifetime.
func (c *TTL[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.Now().Add(ttl)}
}

// Delete removes key. Deleting a missing key is a no-op.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Evict removes all expired entries and returns how many were dropped.
func (c *TTL[V]) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.Now()
	n := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Run evicts expired entries every interval until ctx is cancelled.
func (c *TTL[V]) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Evict()
		}
	}
}
