package schema

import "strings"

// Boolean formats a FieldBool column may declare.
const (
	BoolYesNo     = "yes_no"
	BoolTrueFalse = "true_false"
)

var boolFormats = map[string][2]string{
	BoolYesNo:     {"YES", "NO"},
	BoolTrueFalse: {"TRUE", "FALSE"},
}

// ParseBool accepts YES/Y/1/TRUE and NO/N/0/FALSE in any case.
// ok is false for anything else, including the empty string.
func ParseBool(v string) (value, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "YES", "Y", "1", "TRUE":
		return true, true
	case "NO", "N", "0", "FALSE":
		return false, true
	}
	return false, false
}

// FormatBool renders b in the given format, falling back to yes_no.
func FormatBool(b bool, format string) string {
	pair, ok := boolFormats[format]
	if !ok {
		pair = boolFormats[BoolYesNo]
	}
	if b {
		return pair[0]
	}
	return pair[1]
}
