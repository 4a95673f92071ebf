package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID             int64                  `json:"id"`
	EventID        uuid.UUID              `json:"event_id"`
	EventTime      time.Time              `json:"event_time"`
	ActorUserID    *string                `json:"actor_user_id,omitempty"`
	OrganizationID *string                `json:"organization_id,omitempty"`
	EventType      string                 `json:"event_type"`
	Payload        map[string]interface{} `json:"payload"`
}

const (
	EventTypeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	EventTypeRateLimitReset    = "RATE_LIMIT_RESET"
	EventTypeUserInvalidated   = "USER_CACHE_INVALIDATED"
	EventTypeOrgInvalidated    = "ORG_CACHE_INVALIDATED"
	EventTypeSessionRevoked    = "SESSION_REVOKED"
	EventTypeWebhookRejected   = "WEBHOOK_REJECTED"
)
