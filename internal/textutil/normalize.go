// Package textutil provides text normalization and token-level utilities
// used by the generation metrics.
package textutil

import (
	"strings"
	"unicode"
)

// Normalize lowercases text, strips punctuation, and collapses runs of
// whitespace into single spaces. The result is trimmed.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// Dropped entirely, not replaced with a space. "Hello, World!"
			// and "hello world" normalize to the same string.
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize normalizes text and splits it on whitespace.
// Returns an empty slice for blank input.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}
