package textfix

import (
	"regexp"
	"strings"
)

var domainLike = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9]*\.[a-zA-Z]{2,}`)

// IsURL reports whether s looks like a URL or bare domain.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "www.") {
		return true
	}
	return domainLike.MatchString(s)
}

// HasNewline reports whether s contains a line break.
func HasNewline(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}

// SplitWebsites repairs a website value that was broken across lines. Each
// URL-like part gets an https:// scheme when it has none; parts are
// de-duplicated and joined with "|". When no part looks like a URL the
// parts are joined with single spaces instead.
func SplitWebsites(value string) string {
	parts := strings.Fields(value)
	if len(parts) == 0 {
		return ""
	}

	var urls []string
	seen := make(map[string]bool)
	for _, p := range parts {
		if !IsURL(p) && !strings.Contains(p, ".") {
			continue
		}
		lower := strings.ToLower(p)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			p = "https://" + p
		}
		if !seen[p] {
			seen[p] = true
			urls = append(urls, p)
		}
	}

	if len(urls) == 0 {
		return strings.Join(parts, " ")
	}
	return strings.Join(urls, "|")
}
