// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// SessionContext identifies the shop and staff member behind a request.
// It is populated from a validated embedded-app session token.
type SessionContext struct {
	Shop      string
	UserID    string
	SessionID string
}

type sessionContextKey struct{}

// WithSession adds SessionContext to context.
func WithSession(ctx context.Context, session *SessionContext) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// GetSession returns SessionContext from context.
func GetSession(ctx context.Context) *SessionContext {
	if v, ok := ctx.Value(sessionContextKey{}).(*SessionContext); ok {
		return v
	}
	return nil
}

// GetShop returns the shop domain from context or empty string.
func GetShop(ctx context.Context) string {
	if s := GetSession(ctx); s != nil {
		return s.Shop
	}
	return ""
}
