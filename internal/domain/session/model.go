// Package session holds the server-side state of an admin browser session:
// the catalog API token, the content language, per-page view modes and a
// flash message.
package session

import (
	"time"

	appctx "vinoteka/internal/core/context"
	"vinoteka/internal/core/id"
	"vinoteka/internal/core/lang"
)

// FlashTTL is how long a flash message stays visible.
const FlashTTL = 5 * time.Second

// ViewMode is how a browse page lays out its items.
type ViewMode string

const (
	ViewTable ViewMode = "table"
	ViewGrid  ViewMode = "grid"
)

// ParseViewMode returns the mode named s, or ViewTable.
func ParseViewMode(s string) ViewMode {
	if ViewMode(s) == ViewGrid {
		return ViewGrid
	}
	return ViewTable
}

// FlashKind selects the toast style.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashInfo    FlashKind = "info"
)

// Flash is a one-shot toast message.
type Flash struct {
	Kind      FlashKind `json:"kind"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session is one admin browser session.
type Session struct {
	ID             id.SessionID
	Token          string
	TokenExpiresAt time.Time // zero when the token carries no exp
	Language       lang.Language
	ViewModes      map[string]ViewMode
	Flash          *Flash
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New creates an anonymous session.
func New(now time.Time) *Session {
	return &Session{
		ID:        id.NewSession(),
		Language:  lang.Default,
		ViewModes: make(map[string]ViewMode),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LoggedIn reports whether the session holds a token that has not expired.
func (s *Session) LoggedIn(now time.Time) bool {
	if s.Token == "" {
		return false
	}
	return s.TokenExpiresAt.IsZero() || now.Before(s.TokenExpiresAt)
}

// SignIn stores the catalog API token.
func (s *Session) SignIn(token string, expiresAt time.Time) {
	s.Token = token
	s.TokenExpiresAt = expiresAt
}

// SignOut forgets the token. Language and view modes survive.
func (s *Session) SignOut() {
	s.Token = ""
	s.TokenExpiresAt = time.Time{}
}

// ViewMode returns the mode chosen for page, ViewTable by default.
func (s *Session) ViewMode(page string) ViewMode {
	if m, ok := s.ViewModes[page]; ok {
		return m
	}
	return ViewTable
}

// SetViewMode remembers mode for page.
func (s *Session) SetViewMode(page string, mode ViewMode) {
	if s.ViewModes == nil {
		s.ViewModes = make(map[string]ViewMode)
	}
	s.ViewModes[page] = mode
}

// SetFlash replaces the flash message.
func (s *Session) SetFlash(kind FlashKind, message string, now time.Time) {
	s.Flash = &Flash{Kind: kind, Message: message, ExpiresAt: now.Add(FlashTTL)}
}

// TakeFlash returns the pending flash and clears it. An expired flash is
// dropped and nil is returned.
func (s *Session) TakeFlash(now time.Time) *Flash {
	f := s.Flash
	s.Flash = nil
	if f == nil || !now.Before(f.ExpiresAt) {
		return nil
	}
	return f
}

// Context returns the request-scoped view of the session.
func (s *Session) Context() *appctx.SessionContext {
	return &appctx.SessionContext{
		SessionID: s.ID.String(),
		Token:     s.Token,
		Language:  s.Language.String(),
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.ViewModes = make(map[string]ViewMode, len(s.ViewModes))
	for k, v := range s.ViewModes {
		cp.ViewModes[k] = v
	}
	if s.Flash != nil {
		f := *s.Flash
		cp.Flash = &f
	}
	return &cp
}
