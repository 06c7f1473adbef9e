package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/logging"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/metrics"
)

// Credentials carries the raw material a request presented. Either field
// may be empty; bearer wins when both are present.
type Credentials struct {
	BearerToken     string
	SessionArtifact string
}

// Resolver resolves credentials in a fixed order: bearer token first,
// then session artifact. Any identity-store failure collapses to
// ErrUnauthenticated; authentication never fails open.
type Resolver struct {
	Tokens   TokenRepository
	Roles    RoleRepository
	Sessions SessionRepository
	Verifier SessionVerifier

	// StoreTimeout bounds each identity-store read. Zero disables the
	// per-call timeout.
	StoreTimeout time.Duration
	Metrics      metrics.GatewayMetrics
	Now          func() time.Time
}

func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (domain.Principal, error) {
	if token := strings.TrimSpace(creds.BearerToken); token != "" {
		return r.resolveBearer(ctx, token)
	}
	if artifact := strings.TrimSpace(creds.SessionArtifact); artifact != "" {
		return r.resolveSession(ctx, artifact)
	}
	return domain.Principal{}, domain.ErrUnauthenticated
}

func (r *Resolver) resolveBearer(ctx context.Context, tokenValue string) (domain.Principal, error) {
	ctx, cancel := r.storeContext(ctx)
	defer cancel()

	token, err := r.Tokens.FindByValue(ctx, tokenValue)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.reportStoreFailure("token lookup failed", err)
		}
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if token.Expired(r.now()) {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	// A site-scoped machine token never carries its owner's wider
	// grants; it acts as an editor for exactly that site.
	if token.SiteScope != domain.ScopeGlobal {
		roles := []domain.Role{{Name: domain.RoleEditor, Scope: token.SiteScope}}
		return domain.NewPrincipal(token.OwnerID, roles, domain.AuthBearer), nil
	}

	roles, err := r.Roles.RolesForUser(ctx, token.OwnerID)
	if err != nil {
		r.reportStoreFailure("role lookup failed", err)
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return domain.NewPrincipal(token.OwnerID, roles, domain.AuthBearer), nil
}

func (r *Resolver) resolveSession(ctx context.Context, artifact string) (domain.Principal, error) {
	sessionID, userID, err := r.Verifier.Verify(artifact)
	if err != nil {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	ctx, cancel := r.storeContext(ctx)
	defer cancel()

	session, err := r.Sessions.Find(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.reportStoreFailure("session lookup failed", err)
		}
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if session.UserID != userID || !session.Live(r.now()) {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	roles, err := r.Roles.RolesForUser(ctx, session.UserID)
	if err != nil {
		r.reportStoreFailure("role lookup failed", err)
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return domain.NewPrincipal(session.UserID, roles, domain.AuthSession), nil
}

func (r *Resolver) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.StoreTimeout)
}

func (r *Resolver) reportStoreFailure(msg string, err error) {
	logging.Warn("resolver", msg+", failing closed", "err", err)
	if r.Metrics != nil {
		r.Metrics.IncStoreDegraded("identity")
	}
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
