package http

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
	"github.com/Khaledaun/orion-content-sub000/internal/usecase"
)

// ContentHandler is the downstream the gateway dispatches admitted
// content requests to. The CRUD behind it belongs to the content
// system, not the gateway.
type ContentHandler interface {
	CreatePost(ctx context.Context, site domain.SiteID, principal domain.Principal, req CreatePostRequest) (Post, error)
	ListPosts(ctx context.Context, site domain.SiteID) ([]Post, error)
}

type CreatePostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Post struct {
	ID        string    `json:"id"`
	SiteID    string    `json:"site_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type whoamiResponse struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Roles  []roleResponse `json:"roles"`
}

type roleResponse struct {
	Name  string `json:"name"`
	Scope string `json:"scope,omitempty"`
}

type auditEventResponse struct {
	ID        string         `json:"id"`
	Route     string         `json:"route"`
	Action    string         `json:"action"`
	ActorType string         `json:"actor_type"`
	Actor     string         `json:"actor"`
	Success   bool           `json:"success"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	LatencyMs *int64         `json:"latency_ms,omitempty"`
	Cost      *float64       `json:"cost,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (s *Server) handleWhoami(c *gin.Context, principal domain.Principal) (handlerResponse, usecase.DispatchResult) {
	roles := make([]roleResponse, 0, len(principal.Roles))
	for _, role := range principal.Roles {
		roles = append(roles, roleResponse{Name: string(role.Name), Scope: string(role.Scope)})
	}
	body := whoamiResponse{
		ID:     principal.ID,
		Method: string(principal.Method),
		Roles:  roles,
	}
	return handlerResponse{status: http.StatusOK, body: body}, usecase.DispatchResult{Success: true}
}

func (s *Server) handleListAuditEvents(c *gin.Context, principal domain.Principal) (handlerResponse, usecase.DispatchResult) {
	if s.audit == nil {
		return handlerResponse{
			status: http.StatusServiceUnavailable,
			body:   errorResponse{Code: "AUDIT_UNAVAILABLE", Message: "no audit sink configured"},
		}, usecase.DispatchResult{Success: false}
	}
	limit := 100
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return handlerResponse{
				status: http.StatusBadRequest,
				body:   errorResponse{Code: "INVALID_LIMIT", Message: "limit must be a positive integer"},
			}, usecase.DispatchResult{Success: false}
		}
		limit = parsed
	}
	events, err := s.audit.ListRecent(c.Request.Context(), limit)
	if err != nil {
		return handlerResponse{
			status: http.StatusInternalServerError,
			body:   errorResponse{Code: "INTERNAL", Message: "audit lookup failed"},
		}, usecase.DispatchResult{Success: false}
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, auditEventResponse{
			ID:        event.ID,
			Route:     event.Route,
			Action:    event.Action,
			ActorType: string(event.ActorType),
			Actor:     event.Actor,
			Success:   event.Success,
			Metadata:  event.Metadata,
			LatencyMs: event.LatencyMs,
			Cost:      event.Cost,
			CreatedAt: event.CreatedAt,
		})
	}
	return handlerResponse{status: http.StatusOK, body: gin.H{"events": out}},
		usecase.DispatchResult{Success: true, Metadata: map[string]any{"count": len(out)}}
}

func (s *Server) handleCreatePost(c *gin.Context, principal domain.Principal) (handlerResponse, usecase.DispatchResult) {
	site := domain.SiteID(c.Param("site_id"))
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		return handlerResponse{
			status: http.StatusBadRequest,
			body:   errorResponse{Code: "INVALID_JSON", Message: "title is required"},
		}, usecase.DispatchResult{Success: false}
	}
	post, err := s.content.CreatePost(c.Request.Context(), site, principal, req)
	if err != nil {
		return handlerResponse{
			status: http.StatusInternalServerError,
			body:   errorResponse{Code: "INTERNAL", Message: "create failed"},
		}, usecase.DispatchResult{Success: false}
	}
	return handlerResponse{status: http.StatusCreated, body: post},
		usecase.DispatchResult{Success: true, Metadata: map[string]any{"post_id": post.ID, "site": string(site)}}
}

func (s *Server) handleListPosts(c *gin.Context, principal domain.Principal) (handlerResponse, usecase.DispatchResult) {
	site := domain.SiteID(c.Param("site_id"))
	posts, err := s.content.ListPosts(c.Request.Context(), site)
	if err != nil {
		return handlerResponse{
			status: http.StatusInternalServerError,
			body:   errorResponse{Code: "INTERNAL", Message: "list failed"},
		}, usecase.DispatchResult{Success: false}
	}
	return handlerResponse{status: http.StatusOK, body: gin.H{"posts": posts}},
		usecase.DispatchResult{Success: true, Metadata: map[string]any{"count": len(posts), "site": string(site)}}
}

// MemoryContentHandler is the in-process downstream used when no real
// content system is wired.
type MemoryContentHandler struct {
	mu    sync.Mutex
	posts map[domain.SiteID][]Post
}

func NewMemoryContentHandler() *MemoryContentHandler {
	return &MemoryContentHandler{posts: make(map[domain.SiteID][]Post)}
}

func (m *MemoryContentHandler) CreatePost(ctx context.Context, site domain.SiteID, principal domain.Principal, req CreatePostRequest) (Post, error) {
	post := Post{
		ID:        uuid.NewString(),
		SiteID:    string(site),
		Title:     req.Title,
		Author:    principal.ID,
		CreatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.posts[site] = append(m.posts[site], post)
	m.mu.Unlock()
	return post, nil
}

func (m *MemoryContentHandler) ListPosts(ctx context.Context, site domain.SiteID) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Post, len(m.posts[site]))
	copy(out, m.posts[site])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
