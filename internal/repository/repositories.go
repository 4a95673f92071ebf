package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"fleetfusion/internal/limiter"
	"fleetfusion/pkg/logger"
)

type Repositories struct {
	RateLimitRules RateLimitRuleRepository
	Audit          AuditRepository
	Counter        limiter.WindowCounter
}

func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		RateLimitRules: NewRateLimitRuleRepository(db, log),
		Audit:          NewAuditRepository(db, log),
		Counter:        NewSlidingCounter(rdb, log),
	}
}
