package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetfusion/internal/limiter"
	"fleetfusion/pkg/logger"
)

//go:embed sliding_window.lua
var slidingWindowScript string

// slidingCounter implements limiter.WindowCounter on top of Redis. The whole
// read/weigh/increment cycle runs inside one Lua script, so concurrent calls
// from multiple server processes observe a single consistent count.
type slidingCounter struct {
	client *redis.Client
	script *redis.Script
	prefix string
	log    logger.Logger
}

// NewSlidingCounter returns the Redis-backed counter store for the
// distributed limiter. Keys are namespaced under "ratelimit:".
func NewSlidingCounter(client *redis.Client, log logger.Logger) limiter.WindowCounter {
	return &slidingCounter{
		client: client,
		script: redis.NewScript(slidingWindowScript),
		prefix: "ratelimit:",
		log:    log,
	}
}

func (r *slidingCounter) Take(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	nowMs := time.Now().UnixMilli()
	windowMs := window.Milliseconds()

	result, err := r.script.Run(ctx, r.client, []string{r.prefix + key}, limit, windowMs, nowMs).Result()
	if err != nil {
		r.log.Error("Failed to run sliding window script", "key", key, "error", err)
		return false, 0, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected sliding window script response: %v", result)
	}
	allowed, _ := values[0].(int64)
	used, _ := values[1].(int64)
	return allowed == 1, used, nil
}
