// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// SessionContext carries the admin session of the current request.
// The catalog API token lives here, never in a package-level variable, so
// concurrent requests from different sessions cannot observe each other's
// credentials.
type SessionContext struct {
	SessionID string
	Token     string
	Language  string
}

type sessionContextKey struct{}

// WithSession adds SessionContext to context.
func WithSession(ctx context.Context, sess *SessionContext) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// GetSession returns SessionContext from context.
func GetSession(ctx context.Context) *SessionContext {
	if v, ok := ctx.Value(sessionContextKey{}).(*SessionContext); ok {
		return v
	}
	return nil
}

// GetToken returns the bearer token from context or empty string.
func GetToken(ctx context.Context) string {
	if s := GetSession(ctx); s != nil {
		return s.Token
	}
	return ""
}

// GetLanguage returns the session language or the given fallback.
func GetLanguage(ctx context.Context, fallback string) string {
	if s := GetSession(ctx); s != nil && s.Language != "" {
		return s.Language
	}
	return fallback
}

// GetSessionID returns session ID from context or empty string.
func GetSessionID(ctx context.Context) string {
	if s := GetSession(ctx); s != nil {
		return s.SessionID
	}
	return ""
}
