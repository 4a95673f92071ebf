package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetfusion/internal/cache"
	"fleetfusion/internal/domain"
	"fleetfusion/internal/middleware"
	"fleetfusion/internal/service"
	"fleetfusion/pkg/logger"
)

// AdminHandler exposes the monitoring and administrative hooks of the rate
// limiter and the caches. All routes are gated on admin:manage.
type AdminHandler struct {
	rateLimitService service.RateLimitService
	authService      service.AuthService
	audit            service.AuditService
	data             *cache.AuthCache
	sessions         *cache.SessionCache
	log              logger.Logger
}

func NewAdminHandler(
	rateLimitService service.RateLimitService,
	authService service.AuthService,
	audit service.AuditService,
	data *cache.AuthCache,
	sessions *cache.SessionCache,
	log logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		rateLimitService: rateLimitService,
		authService:      authService,
		audit:            audit,
		data:             data,
		sessions:         sessions,
		log:              log,
	}
}

func (h *AdminHandler) RateLimitStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.rateLimitService.Stats())
}

type rateLimitResetRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Scope      string `json:"scope"`
}

// RateLimitReset clears counters for one identifier. With a scope it removes
// exactly that scope's window; without one it removes every window the
// identifier has.
func (h *AdminHandler) RateLimitReset(c *gin.Context) {
	var req rateLimitResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier is required"})
		return
	}
	if !domain.ValidIdentifier(req.Identifier) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier format"})
		return
	}

	if req.Scope != "" {
		h.rateLimitService.ResetScope(req.Scope, req.Identifier)
	} else {
		h.rateLimitService.Reset(req.Identifier)
	}

	userID, orgID := adminActor(c)
	h.audit.RecordInvalidation(c.Request.Context(), domain.EventTypeRateLimitReset, userID, orgID,
		map[string]interface{}{"identifier": req.Identifier, "scope": req.Scope})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type rateLimitStatusRequest struct {
	Identifier string `form:"identifier" binding:"required"`
	Scope      string `form:"scope"`
}

// RateLimitStatus is a read-only peek that never consumes budget.
func (h *AdminHandler) RateLimitStatus(c *gin.Context) {
	var req rateLimitStatusRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier is required"})
		return
	}
	scope := req.Scope
	if scope == "" {
		scope = domain.RateLimitScopeDefault
	}

	result, ok := h.rateLimitService.Status(scope, req.Identifier)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active window for identifier"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) CacheStats(c *gin.Context) {
	stats := h.data.Stats()
	c.JSON(http.StatusOK, gin.H{
		"user_cache_size":       stats.UserEntries,
		"org_cache_size":        stats.OrgEntries,
		"permission_cache_size": stats.PermissionEntries,
		"session_cache_size":    h.sessions.Size(),
	})
}

type cacheInvalidateRequest struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// CacheInvalidate force-drops cache entries. With both ids set it revokes the
// single session; with one id it invalidates that user or organization
// everywhere.
func (h *AdminHandler) CacheInvalidate(c *gin.Context) {
	var req cacheInvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.UserID == "" && req.OrganizationID == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id or organization_id is required"})
		return
	}
	if req.UserID != "" && !domain.ValidIdentifier(req.UserID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id format"})
		return
	}
	if req.OrganizationID != "" && !domain.ValidIdentifier(req.OrganizationID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization_id format"})
		return
	}

	userID, orgID := adminActor(c)
	switch {
	case req.UserID != "" && req.OrganizationID != "":
		h.authService.InvalidateSession(req.UserID, req.OrganizationID)
		h.audit.RecordInvalidation(c.Request.Context(), domain.EventTypeSessionRevoked, userID, orgID,
			map[string]interface{}{"user_id": req.UserID, "organization_id": req.OrganizationID})
	case req.UserID != "":
		h.authService.InvalidateUser(req.UserID)
		h.audit.RecordInvalidation(c.Request.Context(), domain.EventTypeUserInvalidated, userID, orgID,
			map[string]interface{}{"user_id": req.UserID})
	default:
		h.authService.InvalidateOrganization(req.OrganizationID)
		h.audit.RecordInvalidation(c.Request.Context(), domain.EventTypeOrgInvalidated, userID, orgID,
			map[string]interface{}{"organization_id": req.OrganizationID})
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RulesReload re-reads rate limit rule overrides from storage.
func (h *AdminHandler) RulesReload(c *gin.Context) {
	if err := h.rateLimitService.ReloadRules(c.Request.Context()); err != nil {
		h.log.Error("Failed to reload rate limit rules", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload rules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func adminActor(c *gin.Context) (userID, orgID *string) {
	authCtx := middleware.AuthContext(c)
	if authCtx == nil {
		return nil, nil
	}
	uid := authCtx.UserID
	userID = &uid
	if authCtx.OrganizationID != "" {
		oid := authCtx.OrganizationID
		orgID = &oid
	}
	return userID, orgID
}
