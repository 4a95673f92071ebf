package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetfusion/internal/domain"
	"fleetfusion/internal/service"
	"fleetfusion/pkg/logger"
)

// WebhookHandler receives identity-provider events and turns them into cache
// invalidations, so role and organization changes take effect promptly
// instead of waiting out the TTL.
type WebhookHandler struct {
	authService service.AuthService
	audit       service.AuditService
	secret      []byte
	log         logger.Logger
}

func NewWebhookHandler(authService service.AuthService, audit service.AuditService, secret string, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		authService: authService,
		audit:       audit,
		secret:      []byte(secret),
		log:         log,
	}
}

type identityEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		UserID         string `json:"user_id"`
		OrganizationID string `json:"organization_id"`
	} `json:"data"`
}

// Identity handles POST /webhooks/identity. The payload must carry a valid
// HMAC-SHA256 signature; everything else is rejected before any invalidation
// runs.
func (h *WebhookHandler) Identity(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if !h.verifySignature(body, c.GetHeader("X-Webhook-Signature")) {
		h.log.Warn("Rejected webhook with bad signature", "client_ip", c.ClientIP())
		h.audit.RecordInvalidation(c.Request.Context(), domain.EventTypeWebhookRejected, nil, nil,
			map[string]interface{}{"client_ip": c.ClientIP()})
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid signature"})
		return
	}

	var event identityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	userID := event.Data.UserID
	if userID == "" {
		userID = event.Data.ID
	}
	orgID := event.Data.OrganizationID
	if orgID == "" && (event.Type == "organization.updated" || event.Type == "organization.deleted") {
		orgID = event.Data.ID
	}

	// Ids coming off the wire pass the same identifier check as claims.
	if userID != "" && !domain.ValidIdentifier(userID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	if orgID != "" && !domain.ValidIdentifier(orgID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid organization id"})
		return
	}

	switch event.Type {
	case "user.updated", "user.deleted":
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user id"})
			return
		}
		h.authService.InvalidateUser(userID)
		h.audit.RecordInvalidation(c.Request.Context(), domain.EventTypeUserInvalidated, nil, nil,
			map[string]interface{}{"user_id": userID, "webhook_type": event.Type})

	case "organization.updated", "organization.deleted":
		if orgID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing organization id"})
			return
		}
		h.authService.InvalidateOrganization(orgID)
		h.audit.RecordInvalidation(c.Request.Context(), domain.EventTypeOrgInvalidated, nil, nil,
			map[string]interface{}{"organization_id": orgID, "webhook_type": event.Type})

	case "organizationMembership.updated", "organizationMembership.deleted":
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user id"})
			return
		}
		h.authService.InvalidateUser(userID)
		h.audit.RecordInvalidation(c.Request.Context(), domain.EventTypeUserInvalidated, nil, nil,
			map[string]interface{}{"user_id": userID, "organization_id": orgID, "webhook_type": event.Type})

	case "session.revoked":
		if userID == "" || orgID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user or organization id"})
			return
		}
		h.authService.InvalidateSession(userID, orgID)
		h.audit.RecordInvalidation(c.Request.Context(), domain.EventTypeSessionRevoked, nil, nil,
			map[string]interface{}{"user_id": userID, "organization_id": orgID})

	default:
		// Unknown event types are acknowledged and ignored so the
		// provider does not retry them forever.
		h.log.Debug("Ignoring webhook event", "type", event.Type)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
