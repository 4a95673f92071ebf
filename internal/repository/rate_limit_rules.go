package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetfusion/internal/domain"
	"fleetfusion/pkg/logger"
)

type RateLimitRuleRepository interface {
	GetByScope(ctx context.Context, scope, key string) (*domain.RateLimitRule, error)
	ListEnabled(ctx context.Context) ([]domain.RateLimitRule, error)
	Upsert(ctx context.Context, rule *domain.RateLimitRule) error
}

type rateLimitRuleRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRateLimitRuleRepository(db *pgxpool.Pool, log logger.Logger) RateLimitRuleRepository {
	return &rateLimitRuleRepository{db: db, log: log}
}

func (r *rateLimitRuleRepository) GetByScope(ctx context.Context, scope, key string) (*domain.RateLimitRule, error) {
	query := `
		SELECT id, scope, key, interval, "limit", enabled, description, created_at, updated_at
		FROM rate_limit_rules
		WHERE scope = $1 AND key = $2 AND enabled = true
	`

	var rule domain.RateLimitRule
	err := r.db.QueryRow(ctx, query, scope, key).Scan(
		&rule.ID, &rule.Scope, &rule.Key, &rule.Interval, &rule.Limit,
		&rule.Enabled, &rule.Description, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to get rate limit rule", "scope", scope, "key", key, "error", err)
		return nil, err
	}

	return &rule, nil
}

func (r *rateLimitRuleRepository) ListEnabled(ctx context.Context) ([]domain.RateLimitRule, error) {
	query := `
		SELECT id, scope, key, interval, "limit", enabled, description, created_at, updated_at
		FROM rate_limit_rules
		WHERE enabled = true
		ORDER BY scope, key
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.Error("Failed to list rate limit rules", "error", err)
		return nil, err
	}
	defer rows.Close()

	var rules []domain.RateLimitRule
	for rows.Next() {
		var rule domain.RateLimitRule
		if err := rows.Scan(
			&rule.ID, &rule.Scope, &rule.Key, &rule.Interval, &rule.Limit,
			&rule.Enabled, &rule.Description, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func (r *rateLimitRuleRepository) Upsert(ctx context.Context, rule *domain.RateLimitRule) error {
	query := `
		INSERT INTO rate_limit_rules (scope, key, interval, "limit", enabled, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (scope, key) DO UPDATE
		SET interval = EXCLUDED.interval, "limit" = EXCLUDED."limit",
		    enabled = EXCLUDED.enabled, description = EXCLUDED.description,
		    updated_at = now()
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		rule.Scope, rule.Key, rule.Interval, rule.Limit, rule.Enabled, rule.Description,
	).Scan(&rule.ID)
	if err != nil {
		r.log.Error("Failed to upsert rate limit rule", "scope", rule.Scope, "key", rule.Key, "error", err)
		return err
	}

	return nil
}
