package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetfusion/internal/domain"
	"fleetfusion/internal/service"
	"fleetfusion/pkg/logger"
)

// ContextKeyAuth is the gin context key under which the resolved
// authorization context is stored.
const ContextKeyAuth = "auth_context"

type AuthMiddleware struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthMiddleware(authService service.AuthService, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		log:         log,
	}
}

// RequireAuth resolves the bearer token into an authorization context. Every
// failure path aborts with 401; there is no partially-authenticated state.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		authCtx, err := m.authService.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			m.log.Debug("Token validation failed", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyAuth, authCtx)
		c.Set("user_id", authCtx.UserID)
		c.Set("organization_id", authCtx.OrganizationID)
		c.Set("user_role", string(authCtx.Role))
		c.Next()
	}
}

// RequirePermission gates a route on one permission token. Must run after
// RequireAuth.
func (m *AuthMiddleware) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx := AuthContext(c)
		if authCtx == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}
		if !authCtx.HasPermission(permission) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuthContext extracts the resolved authorization context, or nil when the
// request is unauthenticated.
func AuthContext(c *gin.Context) *domain.AuthorizationContext {
	value, ok := c.Get(ContextKeyAuth)
	if !ok {
		return nil
	}
	authCtx, ok := value.(*domain.AuthorizationContext)
	if !ok {
		return nil
	}
	return authCtx
}
