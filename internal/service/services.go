package service

import (
	"fleetfusion/internal/cache"
	"fleetfusion/internal/config"
	"fleetfusion/internal/limiter"
	"fleetfusion/internal/repository"
	"fleetfusion/pkg/logger"
)

type Services struct {
	Auth      AuthService
	RateLimit RateLimitService
	Audit     AuditService
}

func NewServices(
	repos *repository.Repositories,
	sessions *cache.SessionCache,
	data *cache.AuthCache,
	store *limiter.Store,
	cfg *config.Config,
	log logger.Logger,
) (*Services, error) {
	sliding, err := limiter.NewSliding(repos.Counter, cfg.RateLimit.GlobalLimit, cfg.RateLimit.GlobalWindow, log)
	if err != nil {
		return nil, err
	}

	rateLimit, err := NewRateLimitService(store, sliding, repos.RateLimitRules, cfg.RateLimit, log)
	if err != nil {
		return nil, err
	}

	return &Services{
		Auth:      NewAuthService(sessions, data, cfg.JWT, log),
		RateLimit: rateLimit,
		Audit:     NewAuditService(repos.Audit, log),
	}, nil
}
