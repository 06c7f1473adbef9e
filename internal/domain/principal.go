package domain

import "fmt"

// SiteID identifies one managed site. The zero value is ScopeGlobal and
// matches every site in role checks.
type SiteID string

const ScopeGlobal SiteID = ""

type RoleName string

const (
	RoleAdmin  RoleName = "ADMIN"
	RoleEditor RoleName = "EDITOR"
	RoleViewer RoleName = "VIEWER"
)

func ParseRoleName(value string) (RoleName, error) {
	switch RoleName(value) {
	case RoleAdmin, RoleEditor, RoleViewer:
		return RoleName(value), nil
	default:
		return "", fmt.Errorf("unknown role name %q", value)
	}
}

// Role grants a named capability either globally (Scope == ScopeGlobal) or
// for a single site. A global role subsumes the same role at any site.
type Role struct {
	Name  RoleName
	Scope SiteID
}

func (r Role) Global() bool {
	return r.Scope == ScopeGlobal
}

type AuthMethod string

const (
	AuthBearer  AuthMethod = "bearer"
	AuthSession AuthMethod = "session"
)

// Principal is the resolved identity behind one request. It is immutable
// for the lifetime of that request; Roles is never nil.
type Principal struct {
	ID     string
	Roles  []Role
	Method AuthMethod
}

func NewPrincipal(id string, roles []Role, method AuthMethod) Principal {
	if roles == nil {
		roles = []Role{}
	}
	return Principal{ID: id, Roles: roles, Method: method}
}
