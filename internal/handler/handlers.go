package handler

import (
	"fleetfusion/internal/cache"
	"fleetfusion/internal/config"
	"fleetfusion/internal/service"
	"fleetfusion/pkg/logger"
)

type Handlers struct {
	Health  *HealthHandler
	Me      *MeHandler
	Admin   *AdminHandler
	Webhook *WebhookHandler
}

func NewHandlers(
	services *service.Services,
	data *cache.AuthCache,
	sessions *cache.SessionCache,
	cfg *config.Config,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(cfg),
		Me:      NewMeHandler(log),
		Admin:   NewAdminHandler(services.RateLimit, services.Auth, services.Audit, data, sessions, log),
		Webhook: NewWebhookHandler(services.Auth, services.Audit, cfg.Webhook.Secret, log),
	}
}
