package textfix

import (
	"regexp"
	"sort"
	"strings"

	"github.com/JonMunkholm/micareg/internal/schema"
)

var countrySeparators = regexp.MustCompile(`[|;,\s]+`)

// InvalidCountryCodes returns the tokens of a country list that are not in
// the allow-list. Tokens are upper-cased before the check.
func InvalidCountryCodes(value string) []string {
	var bad []string
	for _, tok := range SplitList(value) {
		code := strings.ToUpper(tok)
		if !schema.IsCountryCode(code) {
			bad = append(bad, tok)
		}
	}
	return bad
}

// NormalizeCountries upper-cases, de-duplicates and sorts a country list and
// joins it with "|". EL, the ESMA code for Greece, is kept alongside the ISO
// code GR.
func NormalizeCountries(value string) string {
	set := make(map[string]bool)
	for _, tok := range countrySeparators.Split(strings.TrimSpace(value), -1) {
		code := strings.ToUpper(strings.TrimSpace(tok))
		if code == "" {
			continue
		}
		set[code] = true
		if code == "EL" {
			set["GR"] = true
		}
	}

	codes := make([]string, 0, len(set))
	for c := range set {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return strings.Join(codes, "|")
}
