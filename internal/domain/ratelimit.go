package domain

import (
	"context"
	"time"
)

// RateLimitDecision carries everything a response needs to advertise quota
// state: the limit, what is left, when the window resets, and (only when
// blocked) how long to wait. Degraded marks a decision computed from
// fallback state after a shared-store failure; it is logged, never
// surfaced to callers.
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Degraded   bool
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}

type Authorizer interface {
	Require(principal Principal, required RoleName, scope SiteID) error
}
