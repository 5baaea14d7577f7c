package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/copperline/barback/internal/pkg/logger"
)

// Lua script for an atomic fixed-window rate limit. GET then INCR as
// separate commands would race under concurrent requests.
const fixedWindowLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")

if current + 1 > limit then
    return {0, current}
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end

return {1, newVal}
`

// RateLimiter enforces a per-caller requests-per-minute cap backed by
// Redis. It fails open: an unreachable Redis logs a warning and allows
// the request rather than taking the search API down with it.
type RateLimiter struct {
	redis     *redis.Client
	script    *redis.Script
	perMinute int
}

// NewRateLimiter creates a limiter. client may be nil, which disables
// limiting entirely.
func NewRateLimiter(client *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{
		redis:     client,
		script:    redis.NewScript(fixedWindowLuaScript),
		perMinute: perMinute,
	}
}

// Allow reports whether one more request fits the caller's current
// minute window.
func (rl *RateLimiter) Allow(ctx context.Context, caller string) bool {
	if rl == nil || rl.redis == nil || rl.perMinute <= 0 {
		return true
	}

	key := fmt.Sprintf("barback:ratelimit:%s:%d", caller, time.Now().Unix()/60)
	result, err := rl.script.Run(ctx, rl.redis, []string{key},
		rl.perMinute,
		120, // window is a minute; TTL double that so clocks can skew
	).Slice()
	if err != nil {
		logger.Warn("rate limiter unavailable, allowing request", "error", err.Error())
		return true
	}
	if len(result) < 1 {
		return true
	}

	allowed, _ := result[0].(int64)
	return allowed == 1
}
