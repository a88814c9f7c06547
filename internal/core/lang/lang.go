// Package lang defines the catalog content languages and per-language values.
package lang

import "strings"

// Language is a catalog content language code.
type Language string

const (
	EN Language = "en"
	RU Language = "ru"
	FR Language = "fr"
)

// Default is used when nothing else is selected.
const Default = EN

// All lists supported languages in display order.
var All = []Language{EN, RU, FR}

// Parse normalises a language code. Unknown codes fall back to Default.
func Parse(s string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case RU:
		return RU
	case FR:
		return FR
	case EN:
		return EN
	}
	return Default
}

// Valid reports whether s names a supported language.
func Valid(s string) bool {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case EN, RU, FR:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (l Language) String() string { return string(l) }

// Localized holds one value per supported language. JSON keys are the
// language codes, matching the catalog API sub-objects.
type Localized[T any] struct {
	EN T `json:"en"`
	RU T `json:"ru"`
	FR T `json:"fr"`
}

// Get returns the value for l, falling back to English.
func (v Localized[T]) Get(l Language) T {
	switch l {
	case RU:
		return v.RU
	case FR:
		return v.FR
	}
	return v.EN
}

// Set stores the value for l. Unknown languages write English.
func (v *Localized[T]) Set(l Language, val T) {
	switch l {
	case RU:
		v.RU = val
	case FR:
		v.FR = val
	default:
		v.EN = val
	}
}
