package domain

import "time"

// Session is the server-side record behind a signed session artifact.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Live reports whether the session can still authenticate a request.
func (s Session) Live(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}
