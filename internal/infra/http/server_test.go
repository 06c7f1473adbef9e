package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Khaledaun/orion-content-sub000/internal/config"
	"github.com/Khaledaun/orion-content-sub000/internal/domain"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/auth/rbac"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/auth/session"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/ratelimit"
	"github.com/Khaledaun/orion-content-sub000/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memTokenRepo struct {
	byHash map[string]domain.ScopedToken
}

func (r *memTokenRepo) FindByValue(ctx context.Context, tokenValue string) (*domain.ScopedToken, error) {
	token, ok := r.byHash[domain.HashTokenValue(tokenValue)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &token, nil
}

type memRoleRepo struct {
	roles map[string][]domain.Role
}

func (r *memRoleRepo) RolesForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	return r.roles[userID], nil
}

type memSessionRepo struct {
	sessions map[string]domain.Session
}

func (r *memSessionRepo) Find(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

type syncEmitter struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (e *syncEmitter) Emit(event domain.AuditEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *syncEmitter) snapshot() []domain.AuditEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.AuditEvent, len(e.events))
	copy(out, e.events)
	return out
}

type memAuditReader struct {
	events []domain.AuditEvent
}

func (r *memAuditReader) ListRecent(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit > len(r.events) {
		limit = len(r.events)
	}
	return r.events[:limit], nil
}

type serverFixture struct {
	server   *Server
	emitter  *syncEmitter
	verifier *session.Verifier
	sessions *memSessionRepo
}

// newServerFixture wires a gateway over in-memory collaborators:
//   - bearer "admin-token" -> global admin user "admin-1"
//   - bearer "editor-token" -> EDITOR@site-1 user "editor-1"
//   - bearer "viewer-token" -> VIEWER@site-1 user "viewer-1"
func newServerFixture(t *testing.T, policies []RoutePolicy) *serverFixture {
	t.Helper()

	cfg := config.Config{
		SessionSigningSecret: "test-signing-secret",
	}
	verifier, err := session.NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	tokens := &memTokenRepo{byHash: map[string]domain.ScopedToken{
		domain.HashTokenValue("admin-token"):  {ID: "t-admin", OwnerID: "admin-1"},
		domain.HashTokenValue("editor-token"): {ID: "t-editor", OwnerID: "editor-1"},
		domain.HashTokenValue("viewer-token"): {ID: "t-viewer", OwnerID: "viewer-1"},
	}}
	roles := &memRoleRepo{roles: map[string][]domain.Role{
		"admin-1":  {{Name: domain.RoleAdmin}},
		"editor-1": {{Name: domain.RoleEditor, Scope: "site-1"}},
		"viewer-1": {{Name: domain.RoleViewer, Scope: "site-1"}},
	}}
	sessions := &memSessionRepo{sessions: map[string]domain.Session{}}

	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
	t.Cleanup(func() { limiter.Close() })

	emitter := &syncEmitter{}
	gateway := &usecase.Gateway{
		Resolver: &usecase.Resolver{
			Tokens:   tokens,
			Roles:    roles,
			Sessions: sessions,
			Verifier: verifier,
		},
		Limiter:       limiter,
		Authz:         rbac.NewEvaluator(),
		Audit:         emitter,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
	}

	server := NewServerWithDeps(cfg, ServerDeps{
		Gateway:  gateway,
		Audit:    &memAuditReader{},
		Policies: policies,
	})
	t.Cleanup(server.Close)

	return &serverFixture{server: server, emitter: emitter, verifier: verifier, sessions: sessions}
}

func (f *serverFixture) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestServer_AnonymousRequestIsRejectedWithHeaders(t *testing.T) {
	f := newServerFixture(t, nil)

	w := f.do(t, http.MethodGet, "/v1/sites/site-1/posts", "", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeError(t, w); resp.Code != "UNAUTHENTICATED" {
		t.Fatalf("expected UNAUTHENTICATED, got %q", resp.Code)
	}
	for _, header := range []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"} {
		if w.Header().Get(header) == "" {
			t.Fatalf("rejected responses still carry %s", header)
		}
	}

	events := f.emitter.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(events))
	}
	if events[0].ActorType != domain.AuditActorAnonymous {
		t.Fatalf("no actor should be resolved, got %+v", events[0])
	}
}

func TestServer_EditorForbiddenOnAdminRoute(t *testing.T) {
	f := newServerFixture(t, nil)

	w := f.do(t, http.MethodGet, "/v1/audit-events", "editor-token", "")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeError(t, w); resp.Code != rbac.CodeMissingRole {
		t.Fatalf("expected %s, got %q", rbac.CodeMissingRole, resp.Code)
	}
}

func TestServer_ScopedViewerAdmitted(t *testing.T) {
	f := newServerFixture(t, nil)

	w := f.do(t, http.MethodGet, "/v1/sites/site-1/posts", "viewer-token", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("RateLimit-Limit") == "" {
		t.Fatal("admitted responses carry quota headers too")
	}

	events := f.emitter.snapshot()
	if len(events) != 1 || !events[0].Success {
		t.Fatalf("expected one successful audit event, got %+v", events)
	}
	if events[0].Actor != "viewer-1" || events[0].LatencyMs == nil {
		t.Fatalf("dispatch audit must carry actor and latency, got %+v", events[0])
	}
}

func TestServer_ScopedViewerRejectedOnOtherSite(t *testing.T) {
	f := newServerFixture(t, nil)

	w := f.do(t, http.MethodGet, "/v1/sites/site-2/posts", "viewer-token", "")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeError(t, w); resp.Code != rbac.CodeScopeMismatch {
		t.Fatalf("expected %s, got %q", rbac.CodeScopeMismatch, resp.Code)
	}
}

func TestServer_BurstOverLimitReturns429(t *testing.T) {
	policies := DefaultPolicies()
	for i := range policies {
		if policies[i].ID == "posts.list" {
			policies[i].Limit = 10
			policies[i].WindowSeconds = 1
		}
	}
	f := newServerFixture(t, policies)

	var ok, limited int
	var retryAfters []string
	for i := 0; i < 12; i++ {
		w := f.do(t, http.MethodGet, "/v1/sites/site-1/posts", "viewer-token", "")
		switch w.Code {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			limited++
			retryAfters = append(retryAfters, w.Header().Get("Retry-After"))
			if w.Header().Get("RateLimit-Remaining") != "0" {
				t.Fatalf("blocked response must advertise zero remaining, got %q", w.Header().Get("RateLimit-Remaining"))
			}
		default:
			t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
		}
	}
	if ok != 10 || limited != 2 {
		t.Fatalf("expected 10 admitted / 2 limited, got %d/%d", ok, limited)
	}
	for _, retry := range retryAfters {
		if retry != retryAfters[0] {
			t.Fatalf("all throttled callers see the same Retry-After, got %v", retryAfters)
		}
	}
}

func TestServer_WhoamiViaSessionCookie(t *testing.T) {
	f := newServerFixture(t, nil)
	f.sessions.sessions["s-1"] = domain.Session{
		ID:        "s-1",
		UserID:    "editor-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	artifact, err := f.verifier.Issue("s-1", "editor-1", time.Hour)
	if err != nil {
		t.Fatalf("issue artifact: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/whoami", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: artifact})
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp whoamiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode whoami: %v", err)
	}
	if resp.ID != "editor-1" || resp.Method != string(domain.AuthSession) {
		t.Fatalf("unexpected whoami body: %+v", resp)
	}
	if len(resp.Roles) != 1 || resp.Roles[0].Name != string(domain.RoleEditor) {
		t.Fatalf("unexpected roles: %+v", resp.Roles)
	}
}

func TestServer_EditorCreatesPost(t *testing.T) {
	f := newServerFixture(t, nil)

	w := f.do(t, http.MethodPost, "/v1/sites/site-1/posts", "editor-token", `{"title":"hello"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var post Post
	if err := json.Unmarshal(w.Body.Bytes(), &post); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	if post.Author != "editor-1" || post.SiteID != "site-1" {
		t.Fatalf("unexpected post: %+v", post)
	}

	events := f.emitter.snapshot()
	if len(events) != 1 || events[0].Metadata["post_id"] != post.ID {
		t.Fatalf("dispatch metadata missing: %+v", events)
	}
}

func TestServer_GlobalAdminListsAuditEvents(t *testing.T) {
	f := newServerFixture(t, nil)

	w := f.do(t, http.MethodGet, "/v1/audit-events", "admin-token", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServer_Healthz(t *testing.T) {
	f := newServerFixture(t, nil)

	w := f.do(t, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no-db") {
		t.Fatalf("healthz should report no-db mode, got %s", w.Body.String())
	}
}

func TestServer_PreAuthThrottle(t *testing.T) {
	cfg := config.Config{
		SessionSigningSecret: "test-signing-secret",
		AnonRateRPS:          1,
		AnonRateBurst:        2,
	}
	verifier, err := session.NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
	t.Cleanup(func() { limiter.Close() })
	gateway := &usecase.Gateway{
		Resolver: &usecase.Resolver{
			Tokens:   &memTokenRepo{byHash: map[string]domain.ScopedToken{}},
			Roles:    &memRoleRepo{roles: map[string][]domain.Role{}},
			Sessions: &memSessionRepo{sessions: map[string]domain.Session{}},
			Verifier: verifier,
		},
		Limiter:       limiter,
		Authz:         rbac.NewEvaluator(),
		Audit:         &syncEmitter{},
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
	}
	server := NewServerWithDeps(cfg, ServerDeps{Gateway: gateway})
	t.Cleanup(server.Close)

	var throttled bool
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/sites/site-1/posts", nil)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			throttled = true
			if w.Header().Get("Retry-After") == "" {
				t.Fatal("throttled responses carry Retry-After")
			}
			break
		}
	}
	if !throttled {
		t.Fatal("burst above the anon bucket should be throttled")
	}
}
