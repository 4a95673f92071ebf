package limiter

import (
	"strings"
	"sync"
	"time"

	"fleetfusion/pkg/logger"
)

type entry struct {
	count   int
	resetAt time.Time
}

// Stats classifies the stored entries relative to now. Expired entries are
// those whose window has passed but which have not been swept yet.
type Stats struct {
	Total   int `json:"total_entries"`
	Active  int `json:"active_entries"`
	Expired int `json:"expired_entries"`
}

// Store holds fixed-window counters for every limiter sharing it, keyed by
// "identifier:interval". Entries expire lazily on access and are also removed
// by a background sweep so that identifiers that stop sending traffic do not
// leak memory.
//
// The original design swept opportunistically on a random 10% of calls; this
// implementation uses a fixed periodic sweep instead, which costs the same
// amortized work with more predictable memory behavior.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	now           func() time.Time
	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
	log           logger.Logger
}

// NewStore constructs a store and starts its sweep goroutine. Callers own the
// store's lifecycle and must call Stop on shutdown.
func NewStore(sweepInterval time.Duration, log logger.Logger) *Store {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	s := &Store{
		entries:       make(map[string]*entry),
		now:           time.Now,
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
		log:           log,
	}
	go s.sweepLoop()
	return s
}

// take implements the fixed-window decision for one composite key. A fresh or
// expired entry starts a new window with count 1; an entry at the limit is
// denied without mutating the stored count.
func (s *Store) take(key string, limit int, window time.Duration) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(window)}
		s.entries[key] = e
		return Result{Allowed: true, Limit: limit, Remaining: limit - 1, Reset: e.resetAt}
	}

	if e.count >= limit {
		return Result{Allowed: false, Limit: limit, Remaining: 0, Reset: e.resetAt}
	}

	e.count++
	return Result{Allowed: true, Limit: limit, Remaining: limit - e.count, Reset: e.resetAt}
}

// Status reports the stored count and reset time for identifier under the
// given interval without incrementing. Discovering an expired entry removes
// it and reports a miss.
func (s *Store) Status(identifier, interval string) (count int, reset time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identifier + ":" + interval
	e, found := s.entries[key]
	if !found {
		return 0, time.Time{}, false
	}
	if !s.now().Before(e.resetAt) {
		delete(s.entries, key)
		return 0, time.Time{}, false
	}
	return e.count, e.resetAt, true
}

// Reset deletes every entry for identifier across all intervals ever used
// with it. Administrative and test hook.
func (s *Store) Reset(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := identifier + ":"
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
}

// ResetInterval deletes exactly one composite entry.
func (s *Store) ResetInterval(identifier, interval string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, identifier+":"+interval)
}

// Stats classifies every stored entry as active or expired without mutating
// the store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := Stats{Total: len(s.entries)}
	for _, e := range s.entries {
		if now.Before(e.resetAt) {
			stats.Active++
		} else {
			stats.Expired++
		}
	}
	return stats
}

// Stop cancels the sweep goroutine and drops all entries. Safe to call more
// than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.resetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 && s.log != nil {
		s.log.Debug("Swept expired rate limit entries", "removed", removed, "remaining", len(s.entries))
	}
}
