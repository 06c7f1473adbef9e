package db

import (
	"errors"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

var errDBUnavailable = errors.New("db unavailable")

// Global scope is stored as NULL so the unique and filter semantics of
// SQL apply; empty string never reaches the column.
func siteScopePtr(scope domain.SiteID) *string {
	if scope == domain.ScopeGlobal {
		return nil
	}
	s := string(scope)
	return &s
}

func siteScopeValue(scope *string) domain.SiteID {
	if scope == nil {
		return domain.ScopeGlobal
	}
	return domain.SiteID(*scope)
}
