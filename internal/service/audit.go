package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fleetfusion/internal/domain"
	"fleetfusion/internal/repository"
	"fleetfusion/pkg/logger"
)

type AuditService interface {
	RecordRateLimitExceeded(ctx context.Context, scope, identifier string, userID, orgID *string)
	RecordInvalidation(ctx context.Context, eventType string, userID, orgID *string, payload map[string]interface{})
}

type auditService struct {
	repo repository.AuditRepository
	log  logger.Logger
}

func NewAuditService(repo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{repo: repo, log: log}
}

// RecordRateLimitExceeded writes a denial event. Audit failures are logged
// and swallowed; auditing never blocks or fails the request path.
func (s *auditService) RecordRateLimitExceeded(ctx context.Context, scope, identifier string, userID, orgID *string) {
	entry := &domain.AuditLog{
		EventID:        uuid.New(),
		EventTime:      time.Now(),
		ActorUserID:    userID,
		OrganizationID: orgID,
		EventType:      domain.EventTypeRateLimitExceeded,
		Payload: map[string]interface{}{
			"scope":      scope,
			"identifier": identifier,
		},
	}
	if err := s.repo.CreateLog(ctx, entry); err != nil {
		s.log.Warn("Failed to record rate limit audit event", "scope", scope, "error", err)
	}
}

func (s *auditService) RecordInvalidation(ctx context.Context, eventType string, userID, orgID *string, payload map[string]interface{}) {
	entry := &domain.AuditLog{
		EventID:        uuid.New(),
		EventTime:      time.Now(),
		ActorUserID:    userID,
		OrganizationID: orgID,
		EventType:      eventType,
		Payload:        payload,
	}
	if err := s.repo.CreateLog(ctx, entry); err != nil {
		s.log.Warn("Failed to record invalidation audit event", "event_type", eventType, "error", err)
	}
}
