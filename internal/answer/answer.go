// Package answer canonicalizes free-text answers and decides correctness.
package answer

import (
	"strings"
	"unicode"
)

// Normalize converts raw text into the canonical comparable form: lower-case,
// punctuation stripped, runs of whitespace collapsed to single spaces, and
// surrounding whitespace trimmed. It is total and deterministic; two strings a
// human would call "the same answer" must normalize identically.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Match reports whether a normalized submission is correct for the given
// accepted set. Correctness is exact membership: no fuzzy or substring
// matching, and an empty submission or empty set never matches.
func Match(normalized string, accepted map[string]struct{}) bool {
	if normalized == "" {
		return false
	}
	_, ok := accepted[normalized]
	return ok
}
