package usecase

import (
	"context"
	"time"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/logging"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/metrics"
)

// AccessRequest describes one guarded request: where it is going, what
// role the route demands, and the raw credentials presented.
type AccessRequest struct {
	Route        string
	Action       string
	RequiredRole domain.RoleName
	Scope        domain.SiteID
	Credentials  Credentials
	ClientAddr   string

	// Limit and Window override the gateway defaults when positive.
	Limit  int
	Window time.Duration
}

// DispatchResult is what a downstream handler reports back for auditing.
type DispatchResult struct {
	Success  bool
	Cost     *float64
	Metadata map[string]any
}

// DispatchFunc runs the downstream handler once the request is admitted.
type DispatchFunc func(ctx context.Context, principal domain.Principal) DispatchResult

// Outcome always carries the rate-limit decision so callers can attach
// quota headers to every response, admitted or rejected. Principal is
// set only when the request was dispatched.
type Outcome struct {
	Principal *domain.Principal
	Decision  domain.RateLimitDecision
}

// Gateway runs each request through resolve, rate-limit and authorize,
// in that order, then dispatches. Rate limiting runs before the role
// check so a throttled caller learns nothing about its credential's
// standing, and it runs even when resolution failed, keyed by client
// address, so anonymous traffic is throttled too.
type Gateway struct {
	Resolver PrincipalResolver
	Limiter  domain.RateLimiter
	Authz    domain.Authorizer
	Audit    AuditEmitter
	Metrics  metrics.GatewayMetrics

	DefaultLimit  int
	DefaultWindow time.Duration
	StoreTimeout  time.Duration
	Now           func() time.Time
}

const (
	outcomeDispatched      = "dispatched"
	outcomeUnauthenticated = "unauthenticated"
	outcomeForbidden       = "forbidden"
	outcomeRateLimited     = "rate_limited"
)

// Authorize decides one request. The returned error is nil when the
// handler ran; otherwise it is ErrUnauthenticated, ErrRateLimited, or an
// authorization error unwrapping to ErrForbidden. Exactly one audit
// event is emitted per call.
func (g *Gateway) Authorize(ctx context.Context, req AccessRequest, dispatch DispatchFunc) (Outcome, error) {
	principal, resolveErr := g.Resolver.Resolve(ctx, req.Credentials)

	identity := "anon:" + req.ClientAddr
	actorType := domain.AuditActorAnonymous
	actor := req.ClientAddr
	if resolveErr == nil {
		identity = principal.ID
		actor = principal.ID
		actorType = actorTypeFor(principal.Method)
	}

	limit, window := g.limitFor(req)
	decision := g.checkLimit(ctx, req.Route+":"+identity, limit, window)
	outcome := Outcome{Decision: decision}

	if !decision.Allowed {
		g.emit(req, actorType, actor, false, map[string]any{
			"reason": outcomeRateLimited,
			"limit":  limit,
		}, nil, nil)
		g.incDecision(req.Route, outcomeRateLimited)
		return outcome, domain.ErrRateLimited
	}

	if resolveErr != nil {
		g.emit(req, domain.AuditActorAnonymous, req.ClientAddr, false, map[string]any{
			"reason": outcomeUnauthenticated,
		}, nil, nil)
		g.incDecision(req.Route, outcomeUnauthenticated)
		return outcome, domain.ErrUnauthenticated
	}

	// An empty required role means any authenticated principal may pass.
	if err := g.requireRole(principal, req); err != nil {
		g.emit(req, actorType, actor, false, map[string]any{
			"reason":        outcomeForbidden,
			"required_role": string(req.RequiredRole),
			"scope":         string(req.Scope),
		}, nil, nil)
		g.incDecision(req.Route, outcomeForbidden)
		return outcome, err
	}

	start := g.now()
	result := dispatch(ctx, principal)
	latencyMs := g.now().Sub(start).Milliseconds()

	g.emit(req, actorType, actor, result.Success, result.Metadata, &latencyMs, result.Cost)
	g.incDecision(req.Route, outcomeDispatched)
	outcome.Principal = &principal
	return outcome, nil
}

func (g *Gateway) requireRole(principal domain.Principal, req AccessRequest) error {
	if req.RequiredRole == "" {
		return nil
	}
	return g.Authz.Require(principal, req.RequiredRole, req.Scope)
}

// checkLimit never blocks a request on limiter failure; a broken quota
// backend degrades to an optimistic allow.
func (g *Gateway) checkLimit(ctx context.Context, key string, limit int, window time.Duration) domain.RateLimitDecision {
	if g.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.StoreTimeout)
		defer cancel()
	}
	decision, err := g.Limiter.Allow(ctx, key, limit, window)
	if err != nil {
		logging.Warn("gateway", "rate limiter failed, admitting", "key", key, "err", err)
		if g.Metrics != nil {
			g.Metrics.IncStoreDegraded("quota")
		}
		remaining := limit - 1
		if remaining < 0 {
			remaining = 0
		}
		return domain.RateLimitDecision{
			Allowed:   true,
			Limit:     limit,
			Remaining: remaining,
			ResetAt:   g.now().Add(window),
			Degraded:  true,
		}
	}
	return decision
}

func (g *Gateway) limitFor(req AccessRequest) (int, time.Duration) {
	limit, window := g.DefaultLimit, g.DefaultWindow
	if req.Limit > 0 {
		limit = req.Limit
	}
	if req.Window > 0 {
		window = req.Window
	}
	return limit, window
}

func (g *Gateway) emit(req AccessRequest, actorType domain.AuditActorType, actor string, success bool, metadata map[string]any, latencyMs *int64, cost *float64) {
	if g.Audit == nil {
		return
	}
	g.Audit.Emit(domain.AuditEvent{
		Route:     req.Route,
		Action:    req.Action,
		ActorType: actorType,
		Actor:     actor,
		Success:   success,
		Metadata:  metadata,
		LatencyMs: latencyMs,
		Cost:      cost,
		CreatedAt: g.now(),
	})
}

func (g *Gateway) incDecision(route, outcome string) {
	if g.Metrics != nil {
		g.Metrics.IncDecision(route, outcome)
	}
}

func (g *Gateway) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func actorTypeFor(method domain.AuthMethod) domain.AuditActorType {
	if method == domain.AuthBearer {
		return domain.AuditActorToken
	}
	return domain.AuditActorUser
}
