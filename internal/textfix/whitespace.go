package textfix

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	anySpace        = regexp.MustCompile(`\s+`)
)

// NormalizeSpace replaces non-breaking spaces, trims the value and collapses
// runs of horizontal whitespace. Line breaks are kept for the multiline
// repairs that run later.
func NormalizeSpace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = horizontalSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Trim(l, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// JoinLines collapses every whitespace run, line breaks included, into a
// single space.
func JoinLines(s string) string {
	return strings.TrimSpace(anySpace.ReplaceAllString(s, " "))
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Ellipsize shortens s to n runes and marks the cut with "...".
func Ellipsize(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return Truncate(s, n) + "..."
}
