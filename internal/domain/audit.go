package domain

import "time"

type AuditActorType string

const (
	AuditActorUser      AuditActorType = "user"
	AuditActorToken     AuditActorType = "token"
	AuditActorAnonymous AuditActorType = "anonymous"
)

// AuditEvent records one gateway decision. Events are append-only; the
// core never mutates or deletes them. Actor holds the principal id when
// resolution succeeded, otherwise the raw client identifier.
type AuditEvent struct {
	ID        string
	Route     string
	Action    string
	ActorType AuditActorType
	Actor     string
	Success   bool
	Metadata  map[string]any
	LatencyMs *int64
	Cost      *float64
	CreatedAt time.Time
}
