// Package id provides identifier types.
//
// Catalog records are keyed by numeric ids issued by the catalog API; the
// admin never generates them. Sessions use UUIDv7 generated locally.
package id

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID is a server-assigned catalog record identifier.
type ID int64

// Parse converts a decimal string to ID. Zero and negative values are rejected.
func Parse(s string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be positive", s)
	}
	return ID(n), nil
}

// FromAny extracts an ID from a decoded JSON value (float64, json.Number,
// string or integer kinds).
func FromAny(v any) (ID, bool) {
	switch t := v.(type) {
	case ID:
		return t, t > 0
	case int:
		return ID(t), t > 0
	case int64:
		return ID(t), t > 0
	case float64:
		if t <= 0 || t != float64(int64(t)) {
			return 0, false
		}
		return ID(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil || n <= 0 {
			return 0, false
		}
		return ID(n), true
	case string:
		parsed, err := Parse(t)
		return parsed, err == nil
	}
	return 0, false
}

// String implements fmt.Stringer.
func (i ID) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// IsZero reports whether the id was never assigned.
func (i ID) IsZero() bool {
	return i == 0
}

// SessionID identifies an admin session.
type SessionID = uuid.UUID

// NewSession generates a new UUIDv7 session id.
func NewSession() SessionID {
	sid, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New()
	}
	return sid
}

// ParseSession converts string to SessionID with validation.
func ParseSession(s string) (SessionID, error) {
	return uuid.Parse(s)
}
