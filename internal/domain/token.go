package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ScopedToken is a bearer credential provisioned out of band. The raw
// secret is never stored; TokenHash holds its SHA-256 hex digest and
// lookups compare hashes. A token with SiteScope set is a machine token
// restricted to that site; one with ScopeGlobal acts as its owner.
type ScopedToken struct {
	ID        string
	TokenHash string
	OwnerID   string
	SiteScope SiteID
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (t ScopedToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// HashTokenValue digests a raw bearer secret for storage and lookup.
func HashTokenValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
