package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetfusion/pkg/logger"
)

// Integration test against a local Redis; skipped when none is reachable.
func TestSlidingCounterIntegration(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping integration test: Redis not available (%v)", err)
	}

	counter := NewSlidingCounter(client, logger.Nop())

	t.Run("EnforcesBudget", func(t *testing.T) {
		key := fmt.Sprintf("it_%d", time.Now().UnixNano())
		window := 10 * time.Second

		for i := 0; i < 3; i++ {
			allowed, _, err := counter.Take(ctx, key, 3, window)
			if err != nil {
				t.Fatalf("Take %d: %v", i+1, err)
			}
			if !allowed {
				t.Fatalf("call %d should be allowed", i+1)
			}
		}

		allowed, used, err := counter.Take(ctx, key, 3, window)
		if err != nil {
			t.Fatalf("Take: %v", err)
		}
		if allowed {
			t.Error("fourth call should be denied")
		}
		if used < 3 {
			t.Errorf("used = %d, want at least 3", used)
		}
	})

	t.Run("SharedAcrossInstances", func(t *testing.T) {
		key := fmt.Sprintf("dist_%d", time.Now().UnixNano())
		window := 10 * time.Second

		// Two counter instances over the same Redis stand in for two
		// server processes.
		counterA := NewSlidingCounter(client, logger.Nop())
		counterB := NewSlidingCounter(client, logger.Nop())

		if allowed, _, err := counterA.Take(ctx, key, 1, window); err != nil || !allowed {
			t.Fatalf("instance A: allowed=%v err=%v", allowed, err)
		}

		allowed, _, err := counterB.Take(ctx, key, 1, window)
		if err != nil {
			t.Fatalf("instance B: %v", err)
		}
		if allowed {
			t.Error("instance B should see the budget consumed by instance A")
		}
	})
}
