package service

import (
	"context"
	"fmt"
	"sync"

	"fleetfusion/internal/config"
	"fleetfusion/internal/domain"
	"fleetfusion/internal/limiter"
	"fleetfusion/internal/repository"
	"fleetfusion/pkg/logger"
)

type RateLimitService interface {
	// Check decides one call for identifier under the named scope using
	// the process-local fixed-window limiter.
	Check(scope, identifier string) (limiter.Result, error)
	// CheckGlobal decides one call against the cross-instance sliding
	// window. Backend errors deny (fail closed) and are returned.
	CheckGlobal(ctx context.Context, identifier string) (limiter.Result, error)
	Status(scope, identifier string) (limiter.Result, bool)
	Reset(identifier string)
	ResetScope(scope, identifier string)
	Stats() limiter.Stats
	// ReloadRules re-reads per-scope overrides from storage and rebuilds
	// the affected limiters.
	ReloadRules(ctx context.Context) error
}

type rateLimitService struct {
	mu       sync.RWMutex
	limiters map[string]*limiter.Limiter

	store    *limiter.Store
	sliding  *limiter.Sliding
	rules    repository.RateLimitRuleRepository
	defaults map[string]config.Budget
	log      logger.Logger
}

// NewRateLimitService builds the per-scope local limiters from config
// defaults, then applies any enabled rule overrides from storage. Override
// rows with a bad interval are skipped with a warning rather than failing
// startup; the validated config default stays in effect for that scope.
func NewRateLimitService(
	store *limiter.Store,
	sliding *limiter.Sliding,
	rules repository.RateLimitRuleRepository,
	cfg config.RateLimitConfig,
	log logger.Logger,
) (RateLimitService, error) {
	defaults := map[string]config.Budget{
		domain.RateLimitScopeDefault: cfg.Default,
		domain.RateLimitScopeAuth:    cfg.Auth,
		domain.RateLimitScopeReports: cfg.Reports,
	}

	s := &rateLimitService{
		limiters: make(map[string]*limiter.Limiter),
		store:    store,
		sliding:  sliding,
		rules:    rules,
		defaults: defaults,
		log:      log,
	}

	for scope, budget := range defaults {
		lim, err := limiter.New(store, limiter.Config{Interval: budget.Interval, Limit: budget.Limit})
		if err != nil {
			return nil, fmt.Errorf("rate limit scope %s: %w", scope, err)
		}
		s.limiters[scope] = lim
	}

	return s, nil
}

func (s *rateLimitService) Check(scope, identifier string) (limiter.Result, error) {
	lim, err := s.limiterFor(scope)
	if err != nil {
		return limiter.Result{}, err
	}
	return lim.Check(identifier), nil
}

func (s *rateLimitService) CheckGlobal(ctx context.Context, identifier string) (limiter.Result, error) {
	return s.sliding.Check(ctx, identifier)
}

func (s *rateLimitService) Status(scope, identifier string) (limiter.Result, bool) {
	lim, err := s.limiterFor(scope)
	if err != nil {
		return limiter.Result{}, false
	}
	return lim.Status(identifier)
}

func (s *rateLimitService) Reset(identifier string) {
	s.store.Reset(identifier)
}

func (s *rateLimitService) ResetScope(scope, identifier string) {
	lim, err := s.limiterFor(scope)
	if err != nil {
		return
	}
	s.store.ResetInterval(identifier, lim.Interval())
}

func (s *rateLimitService) Stats() limiter.Stats {
	return s.store.Stats()
}

func (s *rateLimitService) ReloadRules(ctx context.Context) error {
	if s.rules == nil {
		return nil
	}
	rules, err := s.rules.ListEnabled(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rule := range rules {
		lim, err := limiter.New(s.store, limiter.Config{Interval: rule.Interval, Limit: rule.Limit})
		if err != nil {
			s.log.Warn("Skipping rate limit rule with invalid budget",
				"scope", rule.Scope, "key", rule.Key, "error", err)
			continue
		}
		s.limiters[rule.Scope] = lim
		s.log.Info("Applied rate limit rule override",
			"scope", rule.Scope, "interval", rule.Interval, "limit", rule.Limit)
	}
	return nil
}

func (s *rateLimitService) limiterFor(scope string) (*limiter.Limiter, error) {
	s.mu.RLock()
	lim, ok := s.limiters[scope]
	s.mu.RUnlock()
	if ok {
		return lim, nil
	}

	// Unknown scopes fall back to the default budget rather than running
	// unlimited.
	s.mu.RLock()
	lim, ok = s.limiters[domain.RateLimitScopeDefault]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no rate limiter configured for scope %q", scope)
	}
	return lim, nil
}
