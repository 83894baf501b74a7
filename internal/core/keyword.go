package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// NormalizeKeyword trims surrounding whitespace (and a byte order mark)
// and case-folds s. The registry applies it on both create and lookup, so
// matching is symmetric.
func NormalizeKeyword(s string) string {
	s = strings.TrimFunc(s, isTrimmable)
	if s == "" {
		return ""
	}
	// Casers carry state; one per call.
	return cases.Fold().String(s)
}
