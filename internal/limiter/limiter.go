// Package limiter provides the rate-limiting core: a process-local
// fixed-window limiter backed by a shared in-memory store, and a distributed
// sliding-window limiter backed by an atomic counter store (Redis in
// production, a fake in tests).
//
// The local limiter is a fixed-window counter, not a sliding log: a burst at
// the boundary of two windows can admit up to twice the configured limit in a
// short span. That is a deliberate simplicity/performance tradeoff carried
// over from the original design. The distributed limiter uses a weighted
// sliding window and does not have this property.
package limiter

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// intervalPattern is the compact interval grammar accepted in configuration:
// a positive integer followed by s, m, h, or d.
var intervalPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseInterval converts an interval string such as "30s", "5m", "1h" or "7d"
// into a duration. Malformed strings are a configuration error and must be
// rejected before any traffic is limited by them.
func ParseInterval(s string) (time.Duration, error) {
	m := intervalPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid rate limit interval %q: must match ^\\d+[smhd]$", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid rate limit interval %q: count must be positive", s)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

// Config declares one rate-limit budget: at most Limit calls per Interval.
type Config struct {
	Interval string
	Limit    int
}

// Result is the outcome of a single rate-limit decision.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// Limiter enforces one configured budget against a shared Store.
type Limiter struct {
	store    *Store
	interval string
	window   time.Duration
	limit    int
}

// New validates the config and returns a limiter bound to store. The interval
// grammar and the positive-limit requirement are checked here, at
// construction, so a bad config can never silently become always-allow or
// always-deny under traffic.
func New(store *Store, cfg Config) (*Limiter, error) {
	window, err := ParseInterval(cfg.Interval)
	if err != nil {
		return nil, err
	}
	if cfg.Limit < 1 {
		return nil, fmt.Errorf("invalid rate limit %d: must be at least 1", cfg.Limit)
	}
	return &Limiter{
		store:    store,
		interval: cfg.Interval,
		window:   window,
		limit:    cfg.Limit,
	}, nil
}

// Check records one call for identifier and reports whether it is allowed
// within the current window. Denied calls do not consume budget.
func (l *Limiter) Check(identifier string) Result {
	return l.store.take(identifier+":"+l.interval, l.limit, l.window)
}

// Status is a read-only peek that never increments. The second return value
// is false when no live entry exists for the identifier.
func (l *Limiter) Status(identifier string) (Result, bool) {
	count, reset, ok := l.store.Status(identifier, l.interval)
	if !ok {
		return Result{}, false
	}
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count < l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     reset,
	}, true
}

// Interval returns the raw interval string this limiter was configured with.
func (l *Limiter) Interval() string {
	return l.interval
}

// Limit returns the configured maximum calls per window.
func (l *Limiter) Limit() int {
	return l.limit
}
