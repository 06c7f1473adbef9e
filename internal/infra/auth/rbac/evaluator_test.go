package rbac

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

func TestGlobalAdminSubsumesEverything(t *testing.T) {
	eval := NewEvaluator()
	admin := domain.NewPrincipal("admin", []domain.Role{{Name: domain.RoleAdmin}}, domain.AuthSession)

	for _, required := range []domain.RoleName{domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer} {
		for _, scope := range []domain.SiteID{domain.ScopeGlobal, "site-1", "site-2"} {
			if !eval.HasRole(admin, required, scope) {
				t.Fatalf("global admin denied %s at %q", required, scope)
			}
		}
	}
}

func TestSiteScopedAdminIsNotGlobal(t *testing.T) {
	eval := NewEvaluator()
	principal := domain.NewPrincipal("user", []domain.Role{{Name: domain.RoleAdmin, Scope: "site-1"}}, domain.AuthSession)

	if !eval.HasRole(principal, domain.RoleAdmin, "site-1") {
		t.Fatal("expected admin at own site")
	}
	if eval.HasRole(principal, domain.RoleAdmin, "site-2") {
		t.Fatal("site-scoped admin must not match another site")
	}
	if eval.HasRole(principal, domain.RoleEditor, "site-2") {
		t.Fatal("site-scoped admin must not subsume other sites")
	}
}

func TestGlobalRoleMatchesEveryScope(t *testing.T) {
	eval := NewEvaluator()
	principal := domain.NewPrincipal("user", []domain.Role{{Name: domain.RoleEditor}}, domain.AuthBearer)

	if !eval.HasRole(principal, domain.RoleEditor, "site-9") {
		t.Fatal("global editor should match any site")
	}
	if eval.HasRole(principal, domain.RoleAdmin, "site-9") {
		t.Fatal("editor must not satisfy an admin check")
	}
}

func TestHasRoleProperty(t *testing.T) {
	eval := NewEvaluator()
	rng := rand.New(rand.NewSource(1))
	names := []domain.RoleName{domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer}
	scopes := []domain.SiteID{domain.ScopeGlobal, "s1", "s2", "s3"}

	for i := 0; i < 500; i++ {
		roles := make([]domain.Role, rng.Intn(5))
		for j := range roles {
			roles[j] = domain.Role{Name: names[rng.Intn(len(names))], Scope: scopes[rng.Intn(len(scopes))]}
		}
		principal := domain.NewPrincipal("p", roles, domain.AuthBearer)
		required := names[rng.Intn(len(names))]
		scope := scopes[rng.Intn(len(scopes))]

		globalAdmin := false
		for _, r := range roles {
			if r.Name == domain.RoleAdmin && r.Global() {
				globalAdmin = true
			}
		}
		want := globalAdmin
		if !want {
			for _, r := range roles {
				if r.Name == required && (r.Global() || r.Scope == scope) {
					want = true
				}
			}
		}
		if got := eval.HasRole(principal, required, scope); got != want {
			t.Fatalf("roles=%v required=%s scope=%q: got %v want %v", roles, required, scope, got, want)
		}
	}
}

func TestDerivedPredicates(t *testing.T) {
	eval := NewEvaluator()

	editor := domain.NewPrincipal("e", []domain.Role{{Name: domain.RoleEditor, Scope: "site-1"}}, domain.AuthBearer)
	if !eval.CanEdit(editor, "site-1") || !eval.CanView(editor, "site-1") {
		t.Fatal("editor should edit and view its site")
	}
	if eval.CanEdit(editor, "site-2") {
		t.Fatal("editor must not edit another site")
	}

	viewer := domain.NewPrincipal("v", []domain.Role{{Name: domain.RoleViewer, Scope: "site-1"}}, domain.AuthSession)
	if eval.CanEdit(viewer, "site-1") {
		t.Fatal("viewer must not edit")
	}
	if !eval.CanView(viewer, "site-1") {
		t.Fatal("viewer should view its site")
	}
}

func TestRequireCodes(t *testing.T) {
	eval := NewEvaluator()
	principal := domain.NewPrincipal("u", []domain.Role{{Name: domain.RoleEditor, Scope: "site-1"}}, domain.AuthBearer)

	if err := eval.Require(principal, domain.RoleEditor, "site-1"); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}

	err := eval.Require(principal, domain.RoleEditor, "site-2")
	authz, ok := IsAuthzError(err)
	if !ok {
		t.Fatalf("expected authz error, got %v", err)
	}
	if authz.Code != CodeScopeMismatch {
		t.Fatalf("expected SCOPE_MISMATCH, got %s", authz.Code)
	}
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatal("authz error should unwrap to ErrForbidden")
	}

	err = eval.Require(principal, domain.RoleAdmin, "site-1")
	authz, ok = IsAuthzError(err)
	if !ok {
		t.Fatalf("expected authz error, got %v", err)
	}
	if authz.Code != CodeMissingRole {
		t.Fatalf("expected MISSING_ROLE, got %s", authz.Code)
	}
}

func TestEmptyRoleSetDeniesEverything(t *testing.T) {
	eval := NewEvaluator()
	principal := domain.NewPrincipal("nobody", nil, domain.AuthSession)
	if principal.Roles == nil {
		t.Fatal("principal role set must never be nil")
	}
	if eval.HasRole(principal, domain.RoleViewer, domain.ScopeGlobal) {
		t.Fatal("empty role set should deny")
	}
}
