// Package ratelimit implements sliding-window quota enforcement over a
// shared Redis store with a process-local fallback.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

type redisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// Entries older than the window slide out before the count; the new entry
// is only recorded when the request is admitted, so an aborted call never
// consumes quota. Runs as one script so concurrent callers cannot both
// observe count == limit-1.
var slideScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])
if count >= limit then
  return {0, count}
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return {1, count + 1}
`)

func NewRedisLimiter(addr, password string, db int, now func() time.Time) (domain.RateLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if now == nil {
		now = time.Now
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisLimiter{client: client, now: now}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	now := r.now()
	nonce := uuid.NewString()
	result, err := slideScript.Run(ctx, r.client, []string{key}, now.UnixMilli(), windowMillis, limit, nonce).Result()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return domain.RateLimitDecision{}, errors.New("unexpected redis rate limit response")
	}
	admitted, ok := values[0].(int64)
	if !ok {
		return domain.RateLimitDecision{}, errors.New("invalid redis admission response")
	}
	count, ok := values[1].(int64)
	if !ok {
		return domain.RateLimitDecision{}, errors.New("invalid redis counter response")
	}
	decision := domain.RateLimitDecision{
		Allowed:   admitted == 1,
		Limit:     limit,
		Remaining: limit - int(count),
		ResetAt:   now.Add(window),
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if !decision.Allowed {
		decision.Remaining = 0
		decision.RetryAfter = window
	}
	return decision, nil
}

func (r *redisLimiter) Close() error {
	return r.client.Close()
}
