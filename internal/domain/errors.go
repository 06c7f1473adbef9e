package domain

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("rate limited")
	ErrStoreDegraded   = errors.New("store degraded")
	ErrNotFound        = errors.New("not found")
)
