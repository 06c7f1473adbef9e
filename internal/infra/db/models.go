package db

import "time"

type ScopedTokenModel struct {
	ID        string     `gorm:"type:uuid;primaryKey"`
	TokenHash string     `gorm:"uniqueIndex;not null"`
	OwnerID   string     `gorm:"index;not null"`
	SiteScope *string
	ExpiresAt *time.Time
	CreatedAt time.Time  `gorm:"not null"`
}

func (ScopedTokenModel) TableName() string { return "scoped_tokens" }

type RoleGrantModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"index:idx_role_grants_user;not null"`
	RoleName  string    `gorm:"not null"`
	SiteScope *string   `gorm:"index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (RoleGrantModel) TableName() string { return "role_grants" }

type SessionModel struct {
	ID        string     `gorm:"type:uuid;primaryKey"`
	UserID    string     `gorm:"index;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time  `gorm:"not null"`
}

func (SessionModel) TableName() string { return "sessions" }

type AuditEventModel struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	Route        string    `gorm:"index;not null"`
	Action       string    `gorm:"not null"`
	ActorType    string    `gorm:"not null"`
	Actor        string    `gorm:"index;not null"`
	Success      bool      `gorm:"not null"`
	MetadataJSON []byte    `gorm:"column:metadata;type:jsonb"`
	LatencyMs    *int64
	Cost         *float64
	CreatedAt    time.Time `gorm:"index;not null"`
}

func (AuditEventModel) TableName() string { return "audit_events" }
