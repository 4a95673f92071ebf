// Package cache implements the authorization caching core: a multi-region
// data cache for user, organization, and permission-list payloads, and a much
// shorter-lived session cache sitting directly in front of authorization
// decisions. Both caches are TTL-based, never return stale entries, and are
// invalidated explicitly when the identity provider reports changes.
package cache

import (
	"sync"
	"time"

	"fleetfusion/internal/domain"
	"fleetfusion/pkg/logger"
)

type entry[T any] struct {
	data     T
	storedAt time.Time
}

func (e entry[T]) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.storedAt) >= ttl
}

// Stats reports the live size of each region.
type Stats struct {
	UserEntries       int `json:"user_cache_size"`
	OrgEntries        int `json:"org_cache_size"`
	PermissionEntries int `json:"permission_cache_size"`
}

// AuthCache holds three parallel regions keyed by user or organization id.
// User and permission entries are lifecycle-linked: invalidating a user drops
// both. Organization invalidation cascades to every user entry whose cached
// context references that organization, because the user payload denormalizes
// the organization id rather than holding a reference.
type AuthCache struct {
	mu    sync.Mutex
	users map[string]entry[*domain.AuthorizationContext]
	orgs  map[string]entry[*domain.OrganizationMetadata]
	perms map[string]entry[[]string]

	userTTL time.Duration
	orgTTL  time.Duration
	permTTL time.Duration

	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
	log      logger.Logger
}

// Options carries the region TTLs and the sweep cadence. Zero values fall
// back to the defaults (5m users, 10m organizations, 5m permissions, 2m
// sweep).
type Options struct {
	UserTTL       time.Duration
	OrgTTL        time.Duration
	PermissionTTL time.Duration
	SweepInterval time.Duration
}

func NewAuthCache(opts Options, log logger.Logger) *AuthCache {
	if opts.UserTTL <= 0 {
		opts.UserTTL = 5 * time.Minute
	}
	if opts.OrgTTL <= 0 {
		opts.OrgTTL = 10 * time.Minute
	}
	if opts.PermissionTTL <= 0 {
		opts.PermissionTTL = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 2 * time.Minute
	}

	c := &AuthCache{
		users:   make(map[string]entry[*domain.AuthorizationContext]),
		orgs:    make(map[string]entry[*domain.OrganizationMetadata]),
		perms:   make(map[string]entry[[]string]),
		userTTL: opts.UserTTL,
		orgTTL:  opts.OrgTTL,
		permTTL: opts.PermissionTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
		log:     log,
	}
	go c.sweepLoop(opts.SweepInterval)
	return c
}

// GetUser returns the cached authorization context for a user id, or nil on
// miss. Reading an expired entry removes it; stale data is never returned.
func (c *AuthCache) GetUser(id string) *domain.AuthorizationContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.users[id]
	if !ok {
		return nil
	}
	if e.expired(c.now(), c.userTTL) {
		delete(c.users, id)
		return nil
	}
	return e.data
}

func (c *AuthCache) SetUser(id string, ctx *domain.AuthorizationContext) {
	if ctx == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[id] = entry[*domain.AuthorizationContext]{data: ctx, storedAt: c.now()}
}

func (c *AuthCache) GetOrganization(id string) *domain.OrganizationMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.orgs[id]
	if !ok {
		return nil
	}
	if e.expired(c.now(), c.orgTTL) {
		delete(c.orgs, id)
		return nil
	}
	return e.data
}

func (c *AuthCache) SetOrganization(id string, meta *domain.OrganizationMetadata) {
	if meta == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orgs[id] = entry[*domain.OrganizationMetadata]{data: meta, storedAt: c.now()}
}

func (c *AuthCache) GetPermissions(userID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.perms[userID]
	if !ok {
		return nil
	}
	if e.expired(c.now(), c.permTTL) {
		delete(c.perms, userID)
		return nil
	}
	return e.data
}

func (c *AuthCache) SetPermissions(userID string, perms []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perms[userID] = entry[[]string]{data: perms, storedAt: c.now()}
}

// InvalidateUser drops the user entry and its permission-list entry.
func (c *AuthCache) InvalidateUser(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
	delete(c.perms, id)
}

// InvalidateOrganization drops the organization entry and cascades to every
// user entry whose cached context references the organization. The linear
// scan is bounded by the active-session count, not total users.
func (c *AuthCache) InvalidateOrganization(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.orgs, id)
	for userID, e := range c.users {
		if e.data != nil && e.data.OrganizationID == id {
			delete(c.users, userID)
			delete(c.perms, userID)
		}
	}
}

// Clear drops all three regions.
func (c *AuthCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = make(map[string]entry[*domain.AuthorizationContext])
	c.orgs = make(map[string]entry[*domain.OrganizationMetadata])
	c.perms = make(map[string]entry[[]string])
}

func (c *AuthCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		UserEntries:       len(c.users),
		OrgEntries:        len(c.orgs),
		PermissionEntries: len(c.perms),
	}
}

// Stop cancels the sweeper and clears all regions. Wired to graceful
// shutdown so the process exits without a dangling timer.
func (c *AuthCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.Clear()
}

func (c *AuthCache) sweepLoop(interval time.Duration) {
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

// sweep removes expired entries regardless of access patterns, bounding
// memory for identifiers that are cached but never re-read. Only timestamp
// comparisons happen under the lock.
func (c *AuthCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for id, e := range c.users {
		if e.expired(now, c.userTTL) {
			delete(c.users, id)
			removed++
		}
	}
	for id, e := range c.orgs {
		if e.expired(now, c.orgTTL) {
			delete(c.orgs, id)
			removed++
		}
	}
	for id, e := range c.perms {
		if e.expired(now, c.permTTL) {
			delete(c.perms, id)
			removed++
		}
	}
	if removed > 0 && c.log != nil {
		c.log.Debug("Swept expired auth cache entries", "removed", removed)
	}
}
