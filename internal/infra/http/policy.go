package http

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

// RoutePolicy declares what one guarded route demands: the role and
// scope to check, which credential kinds it accepts, and its quota.
// A policy with an empty Role admits any authenticated principal.
type RoutePolicy struct {
	ID            string   `yaml:"id"`
	Method        string   `yaml:"method"`
	Path          string   `yaml:"path"`
	Role          string   `yaml:"role"`
	ScopeParam    string   `yaml:"scope_param"`
	AuthMethods   []string `yaml:"auth_methods"`
	Limit         int      `yaml:"limit"`
	WindowSeconds int      `yaml:"window_seconds"`
}

func (p RoutePolicy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

func (p RoutePolicy) allowsMethod(method domain.AuthMethod) bool {
	if len(p.AuthMethods) == 0 {
		return true
	}
	for _, m := range p.AuthMethods {
		if m == string(method) {
			return true
		}
	}
	return false
}

// DefaultPolicies are the built-in route declarations. A YAML policy
// file can tighten or loosen them per route id but cannot invent routes;
// a route id with no registered handler has nothing to guard.
func DefaultPolicies() []RoutePolicy {
	return []RoutePolicy{
		{
			ID:     "auth.whoami",
			Method: "GET",
			Path:   "/v1/auth/whoami",
		},
		{
			ID:     "audit.list",
			Method: "GET",
			Path:   "/v1/audit-events",
			Role:   string(domain.RoleAdmin),
		},
		{
			ID:         "posts.create",
			Method:     "POST",
			Path:       "/v1/sites/:site_id/posts",
			Role:       string(domain.RoleEditor),
			ScopeParam: "site_id",
		},
		{
			ID:         "posts.list",
			Method:     "GET",
			Path:       "/v1/sites/:site_id/posts",
			Role:       string(domain.RoleViewer),
			ScopeParam: "site_id",
		},
	}
}

type policyFile struct {
	Routes []RoutePolicy `yaml:"routes"`
}

// LoadPolicyFile reads route policy overrides. Each entry is matched to
// a built-in policy by id; Method, Path and ScopeParam stay as declared
// in code so an override cannot detach a policy from its handler.
func LoadPolicyFile(path string, defaults []RoutePolicy) ([]RoutePolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	byID := make(map[string]int, len(defaults))
	for i, policy := range defaults {
		byID[policy.ID] = i
	}
	out := make([]RoutePolicy, len(defaults))
	copy(out, defaults)

	for _, override := range file.Routes {
		i, ok := byID[override.ID]
		if !ok {
			return nil, fmt.Errorf("policy file names unknown route %q", override.ID)
		}
		if override.Role != "" {
			if _, err := domain.ParseRoleName(override.Role); err != nil {
				return nil, fmt.Errorf("route %q: %w", override.ID, err)
			}
			out[i].Role = override.Role
		}
		if len(override.AuthMethods) > 0 {
			for _, m := range override.AuthMethods {
				if m != string(domain.AuthBearer) && m != string(domain.AuthSession) {
					return nil, fmt.Errorf("route %q: unknown auth method %q", override.ID, m)
				}
			}
			out[i].AuthMethods = override.AuthMethods
		}
		if override.Limit > 0 {
			out[i].Limit = override.Limit
		}
		if override.WindowSeconds > 0 {
			out[i].WindowSeconds = override.WindowSeconds
		}
	}
	return out, nil
}
