package cache

import (
	"testing"
	"time"

	"fleetfusion/internal/domain"
	"fleetfusion/pkg/logger"
)

func newTestAuthCache(t *testing.T) (*AuthCache, *time.Time) {
	t.Helper()
	c := NewAuthCache(Options{}, logger.Nop())
	t.Cleanup(c.Stop)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func userCtx(userID, orgID string) *domain.AuthorizationContext {
	return &domain.AuthorizationContext{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           domain.RoleDispatcher,
		Permissions:    domain.PermissionsForRole(domain.RoleDispatcher),
		IsActive:       true,
	}
}

func TestAuthCacheSetGet(t *testing.T) {
	c, _ := newTestAuthCache(t)

	c.SetUser("u1", userCtx("u1", "orgA"))
	got := c.GetUser("u1")
	if got == nil || got.UserID != "u1" {
		t.Fatalf("GetUser = %+v, want cached context", got)
	}

	if c.GetUser("missing") != nil {
		t.Error("expected miss for unknown user")
	}
}

func TestAuthCacheTTLExpiry(t *testing.T) {
	c, now := newTestAuthCache(t)

	c.SetUser("u1", userCtx("u1", "orgA"))
	if c.GetUser("u1") == nil {
		t.Fatal("expected hit immediately after set")
	}

	*now = now.Add(5*time.Minute + time.Second)

	if c.GetUser("u1") != nil {
		t.Fatal("expected miss after user TTL elapsed")
	}
	// The expired entry must actually be removed, not just ignored.
	if stats := c.Stats(); stats.UserEntries != 0 {
		t.Errorf("user region size = %d, want 0 after expired read", stats.UserEntries)
	}
}

func TestAuthCacheRegionTTLsDiffer(t *testing.T) {
	c, now := newTestAuthCache(t)

	c.SetUser("u1", userCtx("u1", "orgA"))
	c.SetOrganization("orgA", &domain.OrganizationMetadata{ID: "orgA", SubscriptionTier: "pro"})

	// Past the 5m user TTL but inside the 10m organization TTL.
	*now = now.Add(7 * time.Minute)

	if c.GetUser("u1") != nil {
		t.Error("expected user entry expired at 7m")
	}
	if c.GetOrganization("orgA") == nil {
		t.Error("expected organization entry still live at 7m")
	}

	*now = now.Add(4 * time.Minute)
	if c.GetOrganization("orgA") != nil {
		t.Error("expected organization entry expired past 10m")
	}
}

func TestAuthCacheInvalidateUser(t *testing.T) {
	c, _ := newTestAuthCache(t)

	c.SetUser("u1", userCtx("u1", "orgA"))
	c.SetPermissions("u1", []string{"dispatch:view"})

	c.InvalidateUser("u1")

	if c.GetUser("u1") != nil {
		t.Error("expected user entry removed")
	}
	if c.GetPermissions("u1") != nil {
		t.Error("expected permission entry removed with the user")
	}
}

func TestAuthCacheInvalidateOrganizationCascades(t *testing.T) {
	c, _ := newTestAuthCache(t)

	c.SetUser("u1", userCtx("u1", "orgA"))
	c.SetUser("u2", userCtx("u2", "orgB"))
	c.SetPermissions("u1", []string{"dispatch:view"})
	c.SetOrganization("orgA", &domain.OrganizationMetadata{ID: "orgA"})
	c.SetOrganization("orgB", &domain.OrganizationMetadata{ID: "orgB"})

	c.InvalidateOrganization("orgA")

	if c.GetOrganization("orgA") != nil {
		t.Error("expected orgA entry removed")
	}
	if c.GetUser("u1") != nil {
		t.Error("expected cascade to remove u1 (references orgA)")
	}
	if c.GetPermissions("u1") != nil {
		t.Error("expected cascade to remove u1's permissions")
	}
	if c.GetUser("u2") == nil {
		t.Error("expected u2 (different org) to be unaffected")
	}
	if c.GetOrganization("orgB") == nil {
		t.Error("expected orgB to be unaffected")
	}
}

func TestAuthCacheSweep(t *testing.T) {
	c, now := newTestAuthCache(t)

	c.SetUser("u1", userCtx("u1", "orgA"))
	c.SetOrganization("orgA", &domain.OrganizationMetadata{ID: "orgA"})
	c.SetPermissions("u1", []string{"dispatch:view"})

	*now = now.Add(11 * time.Minute)
	c.sweep()

	stats := c.Stats()
	if stats.UserEntries != 0 || stats.OrgEntries != 0 || stats.PermissionEntries != 0 {
		t.Errorf("expected all regions swept, stats = %+v", stats)
	}
}

func TestAuthCacheClearAndStats(t *testing.T) {
	c, _ := newTestAuthCache(t)

	c.SetUser("u1", userCtx("u1", "orgA"))
	c.SetOrganization("orgA", &domain.OrganizationMetadata{ID: "orgA"})
	c.SetPermissions("u1", []string{"dispatch:view"})

	stats := c.Stats()
	if stats.UserEntries != 1 || stats.OrgEntries != 1 || stats.PermissionEntries != 1 {
		t.Fatalf("stats = %+v, want 1/1/1", stats)
	}

	c.Clear()
	stats = c.Stats()
	if stats.UserEntries != 0 || stats.OrgEntries != 0 || stats.PermissionEntries != 0 {
		t.Errorf("stats after clear = %+v, want empty", stats)
	}
}
