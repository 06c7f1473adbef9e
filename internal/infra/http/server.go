package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Khaledaun/orion-content-sub000/internal/config"
	"github.com/Khaledaun/orion-content-sub000/internal/domain"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/auth/rbac"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/metrics"
	"github.com/Khaledaun/orion-content-sub000/internal/usecase"
)

// AuditReader serves the admin audit-trail listing.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEvent, error)
}

type Server struct {
	cfg      config.Config
	r        *gin.Engine
	gateway  *usecase.Gateway
	audit    AuditReader
	content  ContentHandler
	policies map[string]RoutePolicy
	metrics  metrics.GatewayMetrics
	throttle *clientThrottle

	dbAttached bool
}

type ServerDeps struct {
	Gateway    *usecase.Gateway
	Audit      AuditReader
	Content    ContentHandler
	Policies   []RoutePolicy
	Metrics    metrics.GatewayMetrics
	DBAttached bool
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	policies := deps.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}
	byID := make(map[string]RoutePolicy, len(policies))
	for _, policy := range policies {
		byID[policy.ID] = policy
	}

	m := deps.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	content := deps.Content
	if content == nil {
		content = NewMemoryContentHandler()
	}

	s := &Server{
		cfg:        cfg,
		r:          r,
		gateway:    deps.Gateway,
		audit:      deps.Audit,
		content:    content,
		policies:   byID,
		metrics:    m,
		dbAttached: deps.DBAttached,
	}
	r.Use(s.observe())
	if cfg.AnonRateRPS > 0 && cfg.AnonRateBurst > 0 {
		s.throttle = newClientThrottle(cfg.AnonRateRPS, cfg.AnonRateBurst, 2*time.Minute)
		r.Use(s.throttle.middleware())
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := "no-db"
		if s.dbAttached {
			mode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
	})
	if s.cfg.MetricsEnabled {
		s.r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	s.handle("auth.whoami", s.handleWhoami)
	s.handle("audit.list", s.handleListAuditEvents)
	s.handle("posts.create", s.handleCreatePost)
	s.handle("posts.list", s.handleListPosts)

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "not found")
	})
}

func (s *Server) handle(policyID string, handler guardedHandler) {
	policy, ok := s.policies[policyID]
	if !ok {
		return
	}
	s.r.Handle(policy.Method, policy.Path, s.guard(policy, handler))
}

// handlerResponse is what a guarded handler wants written once the
// gateway has attached the quota headers.
type handlerResponse struct {
	status int
	body   any
}

type guardedHandler func(c *gin.Context, principal domain.Principal) (handlerResponse, usecase.DispatchResult)

// guard runs the route's policy through the gateway. Quota headers go on
// every response, admitted or rejected, and the handler's body is only
// written after them.
func (s *Server) guard(policy RoutePolicy, handler guardedHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var scope domain.SiteID
		if policy.ScopeParam != "" {
			scope = domain.SiteID(c.Param(policy.ScopeParam))
		}

		var resp handlerResponse
		outcome, err := s.gateway.Authorize(c.Request.Context(), usecase.AccessRequest{
			Route:        policy.ID,
			Action:       policy.ID,
			RequiredRole: domain.RoleName(policy.Role),
			Scope:        scope,
			Credentials:  s.credentialsFor(c, policy),
			ClientAddr:   c.ClientIP(),
			Limit:        policy.Limit,
			Window:       policy.Window(),
		}, func(ctx context.Context, principal domain.Principal) usecase.DispatchResult {
			var result usecase.DispatchResult
			resp, result = handler(c, principal)
			return result
		})

		writeRateLimitHeaders(c, outcome.Decision)
		if err == nil {
			c.JSON(resp.status, resp.body)
			return
		}
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		case errors.Is(err, domain.ErrUnauthenticated):
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		default:
			writeAuthzError(c, err)
		}
	}
}

// credentialsFor extracts only the credential kinds the policy accepts,
// so a bearer token on a session-only route is simply not a credential.
func (s *Server) credentialsFor(c *gin.Context, policy RoutePolicy) usecase.Credentials {
	var creds usecase.Credentials
	if policy.allowsMethod(domain.AuthBearer) {
		creds.BearerToken = extractBearerToken(c.GetHeader("Authorization"))
	}
	if policy.allowsMethod(domain.AuthSession) {
		if cookie, err := c.Cookie(sessionCookieName); err == nil {
			creds.SessionArtifact = cookie
		}
	}
	return creds
}

const sessionCookieName = "orion_session"

func writeAuthzError(c *gin.Context, err error) {
	if authz, ok := rbac.IsAuthzError(err); ok {
		writeErrorCode(c, http.StatusForbidden, authz.Code, "forbidden")
		return
	}
	if errors.Is(err, domain.ErrForbidden) {
		writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "forbidden")
		return
	}
	writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// Handler exposes the engine so the caller can own the http.Server and
// its shutdown.
func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Close stops the throttle janitor.
func (s *Server) Close() {
	if s.throttle != nil {
		s.throttle.close()
	}
}
