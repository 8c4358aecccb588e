package gps

import (
	"context"
	"sync"
	"time"

	"potholeserver/internal/model"
)

// DefaultMaxCacheSize is the per-session fix limit used when none is configured.
const DefaultMaxCacheSize = 100

// sessionState holds the fixes of one session in arrival order.
type sessionState struct {
	mu       sync.Mutex
	fixes    []model.GpsFix
	lastSeen time.Time
	removed  bool // set by Expire; writers holding a stale pointer must re-resolve
}

// Stats summarises the cache contents.
type Stats struct {
	Sessions int
	Points   int
}

// Cache stores recent GPS fixes per session, bounded per session.
// The map lock only guards session lookup; each session serialises its own writes.
type Cache struct {
	sessions    map[string]*sessionState
	sessionsMux sync.RWMutex
	maxSize     int
	idleTTL     time.Duration
	now         func() time.Time
}

// NewCache creates a cache keeping at most maxSize fixes per session.
// A zero idleTTL disables session expiry.
func NewCache(maxSize int, idleTTL time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxCacheSize
	}
	return &Cache{
		sessions: make(map[string]*sessionState),
		maxSize:  maxSize,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Record appends fix to the session, evicting the oldest-inserted fixes past the limit.
// It returns the session length after eviction.
func (c *Cache) Record(sessionID string, fix model.GpsFix) int {
	for {
		state := c.getOrCreate(sessionID)

		state.mu.Lock()
		if state.removed {
			state.mu.Unlock()
			continue
		}

		state.fixes = append(state.fixes, fix)
		if over := len(state.fixes) - c.maxSize; over > 0 {
			n := copy(state.fixes, state.fixes[over:])
			clear(state.fixes[n:])
			state.fixes = state.fixes[:n]
		}
		state.lastSeen = c.now()
		size := len(state.fixes)
		state.mu.Unlock()

		return size
	}
}

// Snapshot returns a copy of the session's fixes in insertion order.
func (c *Cache) Snapshot(sessionID string) []model.GpsFix {
	state := c.get(sessionID)
	if state == nil {
		return []model.GpsFix{}
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	out := make([]model.GpsFix, len(state.fixes))
	copy(out, state.fixes)
	return out
}

// Len returns the number of fixes cached for a session.
func (c *Cache) Len(sessionID string) int {
	state := c.get(sessionID)
	if state == nil {
		return 0
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return len(state.fixes)
}

// Stats counts sessions and cached points across the cache.
func (c *Cache) Stats() Stats {
	c.sessionsMux.RLock()
	states := make([]*sessionState, 0, len(c.sessions))
	for _, state := range c.sessions {
		states = append(states, state)
	}
	c.sessionsMux.RUnlock()

	stats := Stats{Sessions: len(states)}
	for _, state := range states {
		state.mu.Lock()
		stats.Points += len(state.fixes)
		state.mu.Unlock()
	}
	return stats
}

// Expire drops sessions idle for longer than the configured TTL and returns how many were removed.
func (c *Cache) Expire() int {
	if c.idleTTL <= 0 {
		return 0
	}
	cutoff := c.now().Add(-c.idleTTL)

	c.sessionsMux.Lock()
	defer c.sessionsMux.Unlock()

	removed := 0
	for id, state := range c.sessions {
		state.mu.Lock()
		if state.lastSeen.Before(cutoff) {
			state.removed = true
			delete(c.sessions, id)
			removed++
		}
		state.mu.Unlock()
	}
	return removed
}

// RunJanitor calls Expire every interval until ctx is done.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration, onExpire func(removed int)) {
	if c.idleTTL <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Expire(); removed > 0 && onExpire != nil {
				onExpire(removed)
			}
		}
	}
}

func (c *Cache) get(sessionID string) *sessionState {
	c.sessionsMux.RLock()
	defer c.sessionsMux.RUnlock()
	return c.sessions[sessionID]
}

// getOrCreate returns the session state, creating it when absent.
func (c *Cache) getOrCreate(sessionID string) *sessionState {
	if state := c.get(sessionID); state != nil {
		return state
	}

	c.sessionsMux.Lock()
	defer c.sessionsMux.Unlock()
	// Double-check (may have been created by another goroutine)
	if state, exists := c.sessions[sessionID]; exists {
		return state
	}

	state := &sessionState{
		fixes: make([]model.GpsFix, 0, c.maxSize+1),
	}
	c.sessions[sessionID] = state
	return state
}
