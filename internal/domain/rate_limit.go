package domain

import (
	"time"
)

// RateLimitRule is a per-scope override of the configured default budgets,
// managed by operators through the admin surface and stored in Postgres.
type RateLimitRule struct {
	ID          int64     `json:"id"`
	Scope       string    `json:"scope"`
	Key         string    `json:"key"`
	Interval    string    `json:"interval"`
	Limit       int       `json:"limit"`
	Enabled     bool      `json:"enabled"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	RateLimitScopeGlobal  = "global"
	RateLimitScopeDefault = "default"
	RateLimitScopeAuth    = "auth"
	RateLimitScopeReports = "reports"
	RateLimitScopeWebhook = "webhook"
)
