package ratelimit

import (
	"context"
	"io"
	"time"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/logging"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/metrics"
)

// FailoverLimiter prefers the shared store so the limit holds across
// processes, and falls back to local state when the shared store fails
// mid-operation. A fallback decision is marked Degraded; the failure
// itself never rejects a request.
type FailoverLimiter struct {
	shared  domain.RateLimiter
	local   domain.RateLimiter
	metrics metrics.GatewayMetrics
	now     func() time.Time
}

// NewFailoverLimiter wires the shared limiter (nil when unconfigured)
// in front of the local fallback.
func NewFailoverLimiter(shared, local domain.RateLimiter, m metrics.GatewayMetrics, now func() time.Time) *FailoverLimiter {
	if m == nil {
		m = metrics.Noop{}
	}
	if now == nil {
		now = time.Now
	}
	return &FailoverLimiter{shared: shared, local: local, metrics: m, now: now}
}

func (f *FailoverLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if f.shared != nil {
		decision, err := f.shared.Allow(ctx, key, limit, window)
		if err == nil {
			return decision, nil
		}
		logging.Warn("ratelimit", "shared quota store degraded, using local fallback", "key", key, "err", err)
		f.metrics.IncStoreDegraded("quota")
		decision, lerr := f.local.Allow(ctx, key, limit, window)
		if lerr != nil {
			return f.optimistic(limit, window), nil
		}
		decision.Degraded = true
		return decision, nil
	}

	decision, err := f.local.Allow(ctx, key, limit, window)
	if err != nil {
		logging.Warn("ratelimit", "local quota state unavailable, admitting", "key", key, "err", err)
		f.metrics.IncStoreDegraded("quota")
		return f.optimistic(limit, window), nil
	}
	return decision, nil
}

// optimistic is the decision of last resort: no usable quota state, so
// the request is admitted rather than blocked on infra trouble.
func (f *FailoverLimiter) optimistic(limit int, window time.Duration) domain.RateLimitDecision {
	remaining := limit - 1
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   f.now().Add(window),
		Degraded:  true,
	}
}

// Close releases both backends, tolerating limiters without a Close.
func (f *FailoverLimiter) Close() error {
	var firstErr error
	for _, limiter := range []domain.RateLimiter{f.shared, f.local} {
		if closer, ok := limiter.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
