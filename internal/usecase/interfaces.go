package usecase

import (
	"context"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

// TokenRepository looks up bearer credentials in the identity store.
type TokenRepository interface {
	FindByValue(ctx context.Context, tokenValue string) (*domain.ScopedToken, error)
}

// RoleRepository loads the role set owned by the identity store.
type RoleRepository interface {
	RolesForUser(ctx context.Context, userID string) ([]domain.Role, error)
}

// SessionRepository reads server-side session records.
type SessionRepository interface {
	Find(ctx context.Context, sessionID string) (*domain.Session, error)
}

// SessionVerifier checks a signed session artifact without touching the
// store; the IDs it returns still need a live session record.
type SessionVerifier interface {
	Verify(artifact string) (sessionID string, userID string, err error)
}

// PrincipalResolver turns raw credentials into a Principal, or fails
// with domain.ErrUnauthenticated.
type PrincipalResolver interface {
	Resolve(ctx context.Context, creds Credentials) (domain.Principal, error)
}

// AuditWriter persists audit events. Implementations may block; the
// emitter keeps them off the request path.
type AuditWriter interface {
	Append(ctx context.Context, event domain.AuditEvent) error
}

// AuditEmitter accepts events best-effort; it must never fail or delay
// the request that produced the event.
type AuditEmitter interface {
	Emit(event domain.AuditEvent)
}
