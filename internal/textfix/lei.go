package textfix

import (
	"math/big"
	"regexp"
	"strings"
)

var leiPattern = regexp.MustCompile(`^[A-Z0-9]{20}$`)

// ValidLEI reports whether s is exactly 20 upper-case alphanumerics.
func ValidLEI(s string) bool {
	return leiPattern.MatchString(s)
}

// LEIFix names the repair applied by RepairLEI.
type LEIFix int

const (
	LEIUnchanged   LEIFix = iota // already valid or empty
	LEITrailingDot               // trailing dots stripped
	LEIExcel                     // scientific notation expanded
	LEICleaned                   // non-alphanumerics stripped
	LEIUnfixable                 // no repair yields a valid LEI
)

// RepairLEI runs the LEI repair cascade: strip trailing dots, expand Excel
// scientific notation, strip non-alphanumerics. The first step producing a
// valid LEI wins. A value in scientific notation that does not expand to
// 20 digits is left as is. The returned value equals raw unless fix is one
// of the repairing outcomes.
func RepairLEI(raw string) (string, LEIFix) {
	lei := strings.TrimSpace(raw)
	if lei == "" {
		return raw, LEIUnchanged
	}
	if ValidLEI(lei) {
		if lei != raw {
			return lei, LEICleaned
		}
		return raw, LEIUnchanged
	}

	if strings.HasSuffix(lei, ".") {
		if trimmed := strings.TrimRight(lei, "."); ValidLEI(trimmed) {
			return trimmed, LEITrailingDot
		}
	}

	if upper := strings.ToUpper(lei); strings.Contains(upper, "E+") || strings.Contains(upper, "E-") {
		if expanded, ok := expandScientific(strings.TrimRight(upper, ".")); ok && len(expanded) == 20 {
			return expanded, LEIExcel
		}
		return raw, LEIUnfixable
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(lei) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if cleaned := b.String(); ValidLEI(cleaned) {
		return cleaned, LEICleaned
	}

	return raw, LEIUnfixable
}

// expandScientific turns "9.60E+19" into "96000000000000000000".
func expandScientific(s string) (string, bool) {
	f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
	if err != nil || f.Sign() < 0 || !f.IsInt() {
		return "", false
	}
	i, _ := f.Int(nil)
	return i.String(), true
}
