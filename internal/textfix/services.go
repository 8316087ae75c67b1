package textfix

import (
	"regexp"
	"sort"
	"strings"

	"github.com/JonMunkholm/micareg/internal/schema"
)

var (
	listSeparators = regexp.MustCompile(`[|;,]`)
	serviceToken   = regexp.MustCompile(`^([a-jA-J])(?:\.|\s|$)`)
	outOfRange     = regexp.MustCompile(`[k-zK-Z]`)
)

// SplitList splits on pipe, semicolon or comma and drops empty tokens.
func SplitList(value string) []string {
	var out []string
	for _, part := range listSeparators.Split(value, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ServiceCodes extracts the distinct a-j codes from a service code value in
// first-seen order. suspicious is true when a token that is not a code
// contains letters outside a-j.
func ServiceCodes(value string) (codes []string, suspicious bool) {
	seen := make(map[string]bool)
	for _, tok := range SplitList(value) {
		m := serviceToken.FindStringSubmatch(tok)
		if m == nil {
			if outOfRange.MatchString(tok) {
				suspicious = true
			}
			continue
		}
		code := strings.ToLower(m[1])
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes, suspicious
}

// NormalizeServiceCodes renders the recognized codes as
// "a. <description> | b. <description>" in code order. ok is false when the
// value holds no recognizable code, in which case it must be left alone.
func NormalizeServiceCodes(value string) (string, bool) {
	codes, _ := ServiceCodes(value)
	if len(codes) == 0 {
		return value, false
	}
	sort.Strings(codes)

	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = c + ". " + schema.ServiceDescriptions[c]
	}
	return strings.Join(parts, " | "), true
}
