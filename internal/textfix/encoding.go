package textfix

import (
	"regexp"
	"strings"
)

const (
	replacementChar = "\ufffd"
	// U+FFFD encoded as UTF-8 and then read back as Latin-1.
	replacementMisread = "\u00ef\u00bf\u00bd"
)

// mojibakeReplacer maps UTF-8 sequences that were decoded as Windows-1252
// back to the intended characters. Longer keys come first so the replacer
// prefers them over the bare "â€" prefix.
var mojibakeReplacer = strings.NewReplacer(
	"\u00e2\u20ac\u0153", "\"", // left double quote
	"\u00e2\u20ac\u009d", "\"", // right double quote
	"\u00e2\u20ac\u2122", "'", // right single quote
	"\u00e2\u20ac\u02dc", "'", // left single quote
	"\u00e2\u20ac\u201c", "\u2013", // en dash
	"\u00e2\u20ac", "\"",
	"\u00c3\u00a4", "\u00e4", // ä
	"\u00c3\u00b6", "\u00f6", // ö
	"\u00c3\u00bc", "\u00fc", // ü
	"\u00c3\u201e", "\u00c4", // Ä
	"\u00c3\u2013", "\u00d6", // Ö
	"\u00c3\u0153", "\u00dc", // Ü
	"\u00c3\u0178", "\u00df", // ß
	"\u00c3\u00a9", "\u00e9", // é
	"\u00c3\u00a8", "\u00e8", // è
	"\u00c3\u00a1", "\u00e1", // á
	"\u00c3\u00b3", "\u00f3", // ó
	"\u00c3\u00b1", "\u00f1", // ñ
	"\u00c3\u00a7", "\u00e7", // ç
)

// lossReplacer restores characters lost to U+FFFD where the surrounding
// word makes the original unambiguous.
var lossReplacer = strings.NewReplacer(
	"Stra"+replacementChar+"e", "Stra\u00dfe",
	"stra"+replacementChar+"e", "stra\u00dfe",
	"L"+replacementChar+"w", "L\u00f6w",
	"l"+replacementChar+"w", "l\u00f6w",
)

// German street names that lost the sharp s entirely. Swiss "strasse" is
// correct spelling and is left alone.
var streetReplacer = strings.NewReplacer(
	"Strae", "Stra\u00dfe",
	"strae", "stra\u00dfe",
)

var quotedLoss = regexp.MustCompile(`\(` + replacementChar + `([^)` + replacementChar + `]+)` + replacementChar + `\)`)

// HasReplacementChar reports whether s carries U+FFFD, either decoded or as
// its Latin-1 misreading.
func HasReplacementChar(s string) bool {
	return strings.Contains(s, replacementChar) || strings.Contains(s, replacementMisread)
}

// HasMojibake reports whether s shows UTF-8/Latin-1 round-trip artifacts.
func HasMojibake(s string) bool {
	return strings.Contains(s, "\u00c3") || strings.Contains(s, "\u00c2") || strings.Contains(s, "\u00e2\u20ac")
}

// EncodingSuspect reports whether s carries any encoding damage.
func EncodingSuspect(s string) bool {
	return HasReplacementChar(s) || HasMojibake(s)
}

// FixEncoding applies the substitution tables. Values with no known damage
// are returned unchanged. The caller checks HasReplacementChar on the result
// to learn whether data loss remains.
func FixEncoding(s string) string {
	out := strings.ReplaceAll(s, replacementMisread, replacementChar)
	out = mojibakeReplacer.Replace(out)

	if strings.Contains(out, replacementChar) {
		out = lossReplacer.Replace(out)
		if strings.Contains(out, "chen") || strings.Contains(out, "ster") {
			out = strings.ReplaceAll(out, "M"+replacementChar+"n", "M\u00fcn")
		}
		out = quotedLoss.ReplaceAllString(out, `("$1")`)
	}

	return streetReplacer.Replace(out)
}
