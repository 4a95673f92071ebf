package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleetfusion/internal/limiter"
	"fleetfusion/internal/service"
	"fleetfusion/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	audit            service.AuditService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, audit service.AuditService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		audit:            audit,
		log:              log,
	}
}

// Limit enforces the named scope's budget against the process-local limiter.
// The identifier is the authenticated user id when present, the client IP
// otherwise.
func (m *RateLimitMiddleware) Limit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := m.identifier(c)

		result, err := m.rateLimitService.Check(scope, identifier)
		if err != nil {
			m.log.Error("Rate limit check failed", "scope", scope, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			c.Abort()
			return
		}

		m.finish(c, scope, identifier, result)
	}
}

// LimitGlobal enforces the cross-instance sliding-window budget. A backend
// error denies the request (fail closed).
func (m *RateLimitMiddleware) LimitGlobal() gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := m.identifier(c)

		result, err := m.rateLimitService.CheckGlobal(c.Request.Context(), identifier)
		if err != nil {
			m.log.Error("Global rate limit backend unavailable, denying", "error", err)
			setRateLimitHeaders(c, result)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Rate limit exceeded",
				"code":    "RATE_LIMIT_EXCEEDED",
			})
			c.Abort()
			return
		}

		m.finish(c, "global", identifier, result)
	}
}

func (m *RateLimitMiddleware) finish(c *gin.Context, scope, identifier string, result limiter.Result) {
	setRateLimitHeaders(c, result)

	if !result.Allowed {
		userID, orgID := actorFromContext(c)
		m.audit.RecordRateLimitExceeded(c.Request.Context(), scope, identifier, userID, orgID)

		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":   false,
			"error":     "Rate limit exceeded",
			"code":      "RATE_LIMIT_EXCEEDED",
			"resetTime": result.Reset.UnixMilli(),
			"remaining": result.Remaining,
		})
		c.Abort()
		return
	}

	c.Next()
}

func (m *RateLimitMiddleware) identifier(c *gin.Context) string {
	if authCtx := AuthContext(c); authCtx != nil {
		return authCtx.UserID
	}
	return c.ClientIP()
}

// setRateLimitHeaders attaches the budget headers to denied and successful
// responses alike, so clients can track their remaining budget.
func setRateLimitHeaders(c *gin.Context, result limiter.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.UnixMilli(), 10))
}

func actorFromContext(c *gin.Context) (userID, orgID *string) {
	authCtx := AuthContext(c)
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
