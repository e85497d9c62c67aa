// Package cache holds a process-local, size- and time-bounded cache of recent chat windows.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

const (
	// DefaultTTL bounds how long a cached window is served.
	DefaultTTL = 5 * time.Minute
	// DefaultSize bounds how many windows are held.
	DefaultSize = 1024
)

// Key addresses a cached window.
type Key struct {
	ConversationID string
	UserID         string
}

// Window is a cached list of turns together with the time it was computed.
type Window struct {
	Timestamp time.Time
	Messages  []types.ChatTurn
}

// WindowCache caches recent turns per conversation. Concurrent misses may recompute the
// same window; the last Put wins.
type WindowCache struct {
	lru *expirable.LRU[Key, Window]
	ttl time.Duration
	now func() time.Time
}

// Option configures a WindowCache.
type Option func(*WindowCache)

// WithClock overrides the clock used to stamp and age entries.
func WithClock(now func() time.Time) Option {
	return func(c *WindowCache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache holding at most size windows for ttl each.
func New(size int, ttl time.Duration, opts ...Option) *WindowCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &WindowCache{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	// The LRU's own expiry only reclaims memory; freshness is judged against the stored timestamp.
	c.lru = expirable.NewLRU[Key, Window](size, nil, ttl)
	return c
}

// Get returns the cached turns when younger than the TTL.
func (c *WindowCache) Get(key Key) ([]types.ChatTurn, bool) {
	w, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(w.Timestamp) >= c.ttl {
		c.lru.Remove(key)
		return nil, false
	}
	return cloneTurns(w.Messages), true
}

// Put stores turns stamped with the current time.
func (c *WindowCache) Put(key Key, messages []types.ChatTurn) {
	c.lru.Add(key, Window{Timestamp: c.now(), Messages: cloneTurns(messages)})
}

// Invalidate drops the window for key.
func (c *WindowCache) Invalidate(key Key) {
	c.lru.Remove(key)
}

// Len reports the number of held windows, including ones not yet reclaimed.
func (c *WindowCache) Len() int {
	return c.lru.Len()
}

func cloneTurns(in []types.ChatTurn) []types.ChatTurn {
	if in == nil {
		return nil
	}
	out := make([]types.ChatTurn, len(in))
	copy(out, in)
	return out
}
