package schema

import (
	"path/filepath"
	"strings"
	"time"
)

const fileDateLayout = "20060102"

// RawFileName returns the canonical download name, e.g. CASP20260123.csv.
func RawFileName(t RegisterType, date time.Time) string {
	return t.Prefix() + date.Format(fileDateLayout) + ".csv"
}

// CleanFileName returns the cleaned artifact name, e.g. CASP20260123_clean.csv.
func CleanFileName(t RegisterType, date time.Time) string {
	return t.Prefix() + date.Format(fileDateLayout) + "_clean.csv"
}

// ParseFileName recovers the register and date from a raw or cleaned file
// name. Longer prefixes are tried first so NCASP is not read as CASP.
func ParseFileName(path string) (RegisterType, time.Time, bool) {
	base := strings.ToUpper(filepath.Base(path))
	base = strings.TrimSuffix(base, ".CSV")
	base = strings.TrimSuffix(base, "_CLEAN")

	for _, t := range []RegisterType{NCASP, Other, CASP, ART, EMT} {
		prefix := t.Prefix()
		if !strings.HasPrefix(base, prefix) {
			continue
		}
		date, err := time.Parse(fileDateLayout, base[len(prefix):])
		if err != nil {
			return "", time.Time{}, false
		}
		return t, date, true
	}
	return "", time.Time{}, false
}
