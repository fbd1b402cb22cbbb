package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most maxLen runes. A cut string keeps its first
// maxLen-3 runes, trailing whitespace removed, followed by an ellipsis.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	keep := max(maxLen-3, 0)
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:keep]), isSpace) + "…"
}

// FirstLine returns the first line of s.
func FirstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r")
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
