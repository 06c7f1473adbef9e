package rbac

import (
	"errors"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

const (
	CodeMissingRole   = "MISSING_ROLE"
	CodeScopeMismatch = "SCOPE_MISMATCH"
)

type AuthzError struct {
	Code string
	Err  error
}

func (e *AuthzError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code
}

func (e *AuthzError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Evaluator decides whether a principal's role set satisfies a required
// role at a required scope. It is stateless and safe for concurrent use.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// HasRole returns true when the principal holds a global ADMIN role, or
// holds the required role either globally or at exactly the given scope.
func (e *Evaluator) HasRole(principal domain.Principal, required domain.RoleName, scope domain.SiteID) bool {
	for _, role := range principal.Roles {
		if role.Name == domain.RoleAdmin && role.Global() {
			return true
		}
	}
	for _, role := range principal.Roles {
		if role.Name != required {
			continue
		}
		if role.Global() || role.Scope == scope {
			return true
		}
	}
	return false
}

func (e *Evaluator) CanEdit(principal domain.Principal, scope domain.SiteID) bool {
	return e.HasRole(principal, domain.RoleAdmin, scope) || e.HasRole(principal, domain.RoleEditor, scope)
}

func (e *Evaluator) CanView(principal domain.Principal, scope domain.SiteID) bool {
	return e.CanEdit(principal, scope) || e.HasRole(principal, domain.RoleViewer, scope)
}

// Require fails with Forbidden when the check does not pass. By the time
// it runs a Principal exists, so it never reports Unauthenticated.
func (e *Evaluator) Require(principal domain.Principal, required domain.RoleName, scope domain.SiteID) error {
	if e.HasRole(principal, required, scope) {
		return nil
	}
	for _, role := range principal.Roles {
		if role.Name == required {
			return &AuthzError{Code: CodeScopeMismatch, Err: domain.ErrForbidden}
		}
	}
	return &AuthzError{Code: CodeMissingRole, Err: domain.ErrForbidden}
}

func IsAuthzError(err error) (*AuthzError, bool) {
	var authz *AuthzError
	if errors.As(err, &authz) {
		return authz, true
	}
	return nil, false
}
