// Package stringutil provides rune-aware string helpers shared by the
// dialog and rendering layers.
package stringutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fold applies NFKC and collapses every whitespace run to one space,
// trimming both ends. Full-width letters and digits become ASCII.
func Fold(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// Truncate cuts s to at most n runes and trims trailing space left by the
// cut. It returns "" for n <= 0.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return strings.TrimRight(s[:i], " ")
		}
		count++
	}
	return s
}

// Ellipsize shortens s to at most n runes, ending in "..." when cut.
// Limits of three or fewer runes are cut without the ellipsis.
func Ellipsize(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:max(n, 0)])
	}
	return string(runes[:n-3]) + "..."
}
