package textfix

import (
	"regexp"
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

var (
	// DD/MM/.YYYY with an optional space before the dot.
	dateDotBeforeYear = regexp.MustCompile(`(\d{2}/\d{2})/\s*\.\s*(\d{4})`)
	// DD/MM.YYYY
	dateDotAsSlash = regexp.MustCompile(`(\d{2}/\d{2})\.(\d{4})`)
	// DD/MM .YYYY
	dateSpaceDot = regexp.MustCompile(`(\d{2}/\d{2})\s+\.\s*(\d{4})`)
)

// DateState classifies a raw date value.
type DateState int

const (
	DateOK DateState = iota
	DateRepairable
	DateUnparseable
)

// ClassifyDate checks a non-empty value against layout and ISO. A value that
// matches the dot-before-year pattern is repairable; hint is the repaired
// form in that case.
func ClassifyDate(value, layout string) (state DateState, hint string) {
	v := strings.TrimSpace(value)
	if _, ok := parseDate(v, layout); ok {
		return DateOK, ""
	}
	if dateDotBeforeYear.MatchString(v) {
		return DateRepairable, dateDotBeforeYear.ReplaceAllString(v, "$1/$2")
	}
	return DateUnparseable, ""
}

// RepairDate normalizes known malformations and reformats the result to
// layout. ok is false when the value cannot be parsed even after repair.
func RepairDate(value, layout string) (fixed string, ok bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return value, false
	}

	v = dateDotBeforeYear.ReplaceAllString(v, "$1/$2")
	v = dateDotAsSlash.ReplaceAllString(v, "$1/$2")
	v = dateSpaceDot.ReplaceAllString(v, "$1/$2")
	v = strings.TrimSpace(strings.TrimRight(v, "."))

	t, ok := parseDate(v, layout)
	if !ok {
		return value, false
	}
	return t.Format(layout), true
}

func parseDate(v, layout string) (time.Time, bool) {
	layouts := []string{layout, isoLayout}
	if layout == "02/01/2006" {
		// single-digit day or month
		layouts = append(layouts, "2/1/2006")
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
