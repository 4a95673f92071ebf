package limiter

import (
	"context"
	"fmt"
	"time"

	"fleetfusion/pkg/logger"
)

// WindowCounter is the atomic backend behind the distributed limiter. Take
// must atomically decide and count one call for key within the sliding
// window: it returns whether the call is admitted and the weighted count
// observed after the decision. Implementations live in the repository layer;
// the Redis implementation runs the whole read/weigh/increment cycle in a
// single Lua script.
type WindowCounter interface {
	Take(ctx context.Context, key string, limit int64, window time.Duration) (allowed bool, used int64, err error)
}

// Sliding is the cross-instance limiter: a weighted sliding window with one
// fixed global budget, enforced through a shared atomic counter store so that
// every server process observes the same counts.
//
// Backend failure policy is fail-closed: if the counter store is unreachable
// the call is denied and the error propagated. A lockout under backend outage
// was judged safer than an unprotected surface.
type Sliding struct {
	counter WindowCounter
	limit   int
	window  time.Duration
	now     func() time.Time
	log     logger.Logger
}

// NewSliding validates the budget and returns a distributed limiter.
func NewSliding(counter WindowCounter, limit int, window time.Duration, log logger.Logger) (*Sliding, error) {
	if counter == nil {
		return nil, fmt.Errorf("sliding limiter requires a counter store")
	}
	if limit < 1 {
		return nil, fmt.Errorf("invalid rate limit %d: must be at least 1", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("invalid rate limit window %s: must be positive", window)
	}
	return &Sliding{
		counter: counter,
		limit:   limit,
		window:  window,
		now:     time.Now,
		log:     log,
	}, nil
}

// Check decides one call for identifier against the global budget.
func (s *Sliding) Check(ctx context.Context, identifier string) (Result, error) {
	now := s.now()
	reset := now.Truncate(s.window).Add(s.window)

	allowed, used, err := s.counter.Take(ctx, identifier, int64(s.limit), s.window)
	if err != nil {
		s.log.Error("Distributed rate limit check failed, denying", "identifier", identifier, "error", err)
		return Result{Allowed: false, Limit: s.limit, Remaining: 0, Reset: reset}, err
	}

	remaining := s.limit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   allowed,
		Limit:     s.limit,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}
