package limiter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fleetfusion/pkg/logger"
)

// fakeCounter mirrors the Redis script's weighted sliding window in memory.
type fakeCounter struct {
	counts map[string]int64
	now    func() time.Time
}

func newFakeCounter(now func() time.Time) *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64), now: now}
}

func (f *fakeCounter) Take(_ context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	nowMs := f.now().UnixMilli()
	windowMs := window.Milliseconds()
	curWindow := nowMs / windowMs

	curKey := fmt.Sprintf("%s:%d", key, curWindow)
	prevKey := fmt.Sprintf("%s:%d", key, curWindow-1)

	cur := f.counts[curKey]
	prev := f.counts[prevKey]

	elapsed := float64(nowMs%windowMs) / float64(windowMs)
	weighted := int64(float64(prev)*(1-elapsed)) + cur

	if weighted >= limit {
		return false, weighted, nil
	}
	f.counts[curKey] = cur + 1
	return true, weighted + 1, nil
}

type errCounter struct{}

func (errCounter) Take(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return false, 0, errors.New("connection refused")
}

func TestNewSlidingRejectsBadConfig(t *testing.T) {
	counter := newFakeCounter(time.Now)
	if _, err := NewSliding(nil, 10, time.Minute, logger.Nop()); err == nil {
		t.Error("expected error for nil counter")
	}
	if _, err := NewSliding(counter, 0, time.Minute, logger.Nop()); err == nil {
		t.Error("expected error for zero limit")
	}
	if _, err := NewSliding(counter, 10, 0, logger.Nop()); err == nil {
		t.Error("expected error for zero window")
	}
}

func TestSlidingEnforcesBudget(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 30, 0, time.UTC)
	counter := newFakeCounter(func() time.Time { return now })

	s, err := NewSliding(counter, 5, time.Minute, logger.Nop())
	if err != nil {
		t.Fatalf("NewSliding: %v", err)
	}
	s.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		res, err := s.Check(context.Background(), "org1")
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
	}

	res, err := s.Check(context.Background(), "org1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Allowed {
		t.Error("expected denial past the budget")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
}

func TestSlidingWeighsPreviousWindow(t *testing.T) {
	// Fill the budget in window N, then step 30s into window N+1: half of
	// the previous window still counts, so half the budget is available.
	now := time.Date(2026, 8, 1, 12, 0, 59, 0, time.UTC)
	counter := newFakeCounter(func() time.Time { return now })

	s, err := NewSliding(counter, 10, time.Minute, logger.Nop())
	if err != nil {
		t.Fatalf("NewSliding: %v", err)
	}
	s.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		if res, _ := s.Check(context.Background(), "org1"); !res.Allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
	}

	now = time.Date(2026, 8, 1, 12, 1, 30, 0, time.UTC)

	allowed := 0
	for i := 0; i < 10; i++ {
		res, err := s.Check(context.Background(), "org1")
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if res.Allowed {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("allowed %d calls mid-window, want 5 (previous window weighted at 50%%)", allowed)
	}
}

func TestSlidingIdentifierIsolation(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	counter := newFakeCounter(func() time.Time { return now })

	s, _ := NewSliding(counter, 2, time.Minute, logger.Nop())
	s.now = func() time.Time { return now }

	s.Check(context.Background(), "a")
	s.Check(context.Background(), "a")
	if res, _ := s.Check(context.Background(), "a"); res.Allowed {
		t.Fatal("expected a to be exhausted")
	}

	if res, _ := s.Check(context.Background(), "b"); !res.Allowed {
		t.Error("expected b to be unaffected by a")
	}
}

func TestSlidingFailsClosedOnBackendError(t *testing.T) {
	s, err := NewSliding(errCounter{}, 50, time.Minute, logger.Nop())
	if err != nil {
		t.Fatalf("NewSliding: %v", err)
	}

	res, err := s.Check(context.Background(), "org1")
	if err == nil {
		t.Fatal("expected backend error to propagate")
	}
	if res.Allowed {
		t.Error("backend outage must deny, not allow")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0 on failure", res.Remaining)
	}
}
