package cache

import (
	"testing"
	"time"

	"fleetfusion/pkg/logger"
)

func newTestSessionCache(t *testing.T) (*SessionCache, *time.Time) {
	t.Helper()
	c := NewSessionCache(30*time.Second, 2*time.Minute, logger.Nop())
	t.Cleanup(c.Stop)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestSessionKey(t *testing.T) {
	if got := SessionKey("u1", "orgA"); got != "u1-orgA" {
		t.Errorf("SessionKey = %q, want %q", got, "u1-orgA")
	}
}

func TestSessionCacheTTL(t *testing.T) {
	c, now := newTestSessionCache(t)

	key := SessionKey("u1", "orgA")
	c.Set(key, userCtx("u1", "orgA"))

	if c.Get(key) == nil {
		t.Fatal("expected hit inside the TTL")
	}

	*now = now.Add(31 * time.Second)

	if c.Get(key) != nil {
		t.Fatal("expected miss after 30s TTL")
	}
	if c.Size() != 0 {
		t.Errorf("size = %d, want 0 after expired read", c.Size())
	}
}

func TestSessionCacheInvalidateUserAcrossOrgs(t *testing.T) {
	c, _ := newTestSessionCache(t)

	c.Set(SessionKey("u1", "orgA"), userCtx("u1", "orgA"))
	c.Set(SessionKey("u1", "orgB"), userCtx("u1", "orgB"))
	c.Set(SessionKey("u2", "orgA"), userCtx("u2", "orgA"))

	c.InvalidateUser("u1")

	if c.Get(SessionKey("u1", "orgA")) != nil || c.Get(SessionKey("u1", "orgB")) != nil {
		t.Error("expected every session for u1 removed")
	}
	if c.Get(SessionKey("u2", "orgA")) == nil {
		t.Error("expected u2's session untouched")
	}
}

func TestSessionCacheInvalidateOrganization(t *testing.T) {
	c, _ := newTestSessionCache(t)

	c.Set(SessionKey("u1", "orgA"), userCtx("u1", "orgA"))
	c.Set(SessionKey("u2", "orgA"), userCtx("u2", "orgA"))
	c.Set(SessionKey("u1", "orgB"), userCtx("u1", "orgB"))

	c.InvalidateOrganization("orgA")

	if c.Get(SessionKey("u1", "orgA")) != nil || c.Get(SessionKey("u2", "orgA")) != nil {
		t.Error("expected every orgA session removed")
	}
	if c.Get(SessionKey("u1", "orgB")) == nil {
		t.Error("expected orgB session untouched")
	}
}

func TestSessionCacheInvalidateSingleSession(t *testing.T) {
	c, _ := newTestSessionCache(t)

	c.Set(SessionKey("u1", "orgA"), userCtx("u1", "orgA"))
	c.Set(SessionKey("u1", "orgB"), userCtx("u1", "orgB"))

	c.InvalidateSession(SessionKey("u1", "orgA"))

	if c.Get(SessionKey("u1", "orgA")) != nil {
		t.Error("expected the revoked session removed")
	}
	if c.Get(SessionKey("u1", "orgB")) == nil {
		t.Error("expected the other session untouched")
	}
}

func TestSessionCacheSweep(t *testing.T) {
	c, now := newTestSessionCache(t)

	c.Set(SessionKey("u1", "orgA"), userCtx("u1", "orgA"))
	c.Set(SessionKey("u2", "orgA"), userCtx("u2", "orgA"))

	*now = now.Add(time.Minute)
	c.sweep()

	if c.Size() != 0 {
		t.Errorf("size = %d, want 0 after sweep", c.Size())
	}
}
