// Package session verifies browser session artifacts.
//
// A session artifact is a compact HS256 JWS carrying the session record
// ID ("sid") and the user ID ("sub"). Verifying the signature only proves
// the artifact was minted by us; callers must still check the referenced
// session record for expiry and revocation.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/Khaledaun/orion-content-sub000/internal/config"
	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

type Verifier struct {
	secret    []byte
	clockSkew time.Duration
}

func NewVerifier(cfg config.Config) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.SessionSigningSecret)
	if secret == "" {
		return nil, errors.New("SESSION_SIGNING_SECRET is required")
	}
	return &Verifier{
		secret:    []byte(secret),
		clockSkew: cfg.SessionClockSkew(),
	}, nil
}

// Verify checks the artifact signature and expiry and returns the session
// and user IDs it names. Any failure collapses to domain.ErrUnauthenticated
// so callers cannot distinguish a forged artifact from an expired one.
func (v *Verifier) Verify(artifact string) (sessionID string, userID string, err error) {
	artifact = strings.TrimSpace(artifact)
	if artifact == "" {
		return "", "", domain.ErrUnauthenticated
	}
	token, err := jwt.Parse(
		[]byte(artifact),
		jwt.WithKey(jwa.HS256, v.secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.clockSkew),
	)
	if err != nil {
		return "", "", domain.ErrUnauthenticated
	}
	userID = token.Subject()
	if sid, ok := token.Get("sid"); ok {
		sessionID, _ = sid.(string)
	}
	if sessionID == "" || userID == "" {
		return "", "", domain.ErrUnauthenticated
	}
	return sessionID, userID, nil
}

// Issue mints a signed artifact for an existing session record.
func (v *Verifier) Issue(sessionID, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Subject(userID).
		Claim("sid", sessionID).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, v.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}
