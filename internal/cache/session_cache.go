package cache

import (
	"strings"
	"sync"
	"time"

	"fleetfusion/internal/domain"
	"fleetfusion/pkg/logger"
)

// SessionKey builds the composite session cache key. Both parts have already
// passed identifier validation, so the "-" separator cannot be forged into
// either side.
func SessionKey(userID, orgID string) string {
	return userID + "-" + orgID
}

// SessionCache sits directly in front of authorization decisions. Its TTL is
// deliberately much shorter than the data cache's, since authorization
// decisions are more sensitive to staleness than raw profile data.
type SessionCache struct {
	mu      sync.Mutex
	entries map[string]entry[*domain.AuthorizationContext]

	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
	log      logger.Logger
}

func NewSessionCache(ttl, sweepInterval time.Duration, log logger.Logger) *SessionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if sweepInterval <= 0 {
		sweepInterval = 2 * time.Minute
	}
	c := &SessionCache{
		entries: make(map[string]entry[*domain.AuthorizationContext]),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
		log:     log,
	}
	go c.sweepLoop(sweepInterval)
	return c
}

// Get returns the cached context for a session key, or nil on miss or
// expiry. Expired entries are removed on discovery.
func (c *SessionCache) Get(key string) *domain.AuthorizationContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if e.expired(c.now(), c.ttl) {
		delete(c.entries, key)
		return nil
	}
	return e.data
}

func (c *SessionCache) Set(key string, ctx *domain.AuthorizationContext) {
	if ctx == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[*domain.AuthorizationContext]{data: ctx, storedAt: c.now()}
}

// InvalidateUser drops every session for the user; a user may hold sessions
// in multiple organizations.
func (c *SessionCache) InvalidateUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := userID + "-"
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// InvalidateOrganization drops every session scoped to the organization.
func (c *SessionCache) InvalidateOrganization(orgID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	suffix := "-" + orgID
	for key := range c.entries {
		if strings.HasSuffix(key, suffix) {
			delete(c.entries, key)
		}
	}
}

// InvalidateSession drops exactly one session. Security-incident hook
// (force-logout).
func (c *SessionCache) InvalidateSession(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *SessionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[*domain.AuthorizationContext])
}

func (c *SessionCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop cancels the sweeper and clears the cache.
func (c *SessionCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.Clear()
}

func (c *SessionCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *SessionCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now, c.ttl) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 && c.log != nil {
		c.log.Debug("Swept expired session cache entries", "removed", removed)
	}
}
