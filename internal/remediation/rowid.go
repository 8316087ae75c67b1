package remediation

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/schema"
)

// Identify derives the identifier of row (0-based) in t. Rows with an LEI
// are keyed on it, with authority and passport countries kept for
// disambiguation. Rows without one get a synthetic id.
func Identify(t *csvio.Table, row int) RowIdentifier {
	id := RowIdentifier{
		LEI:                t.Cell(row, schema.ColumnLEI),
		CompetentAuthority: t.Cell(row, schema.ColumnCompetentAuthority),
		ServiceCountry:     t.Cell(row, schema.ColumnServiceCountries),
	}
	if id.LEI == "" {
		id.SyntheticID = syntheticID(t, row)
	}
	return id
}

// syntheticID hashes the descriptive fields and the row index.
func syntheticID(t *csvio.Table, row int) string {
	key := strings.Join([]string{
		t.Value(row, t.Index(schema.ColumnLEIName)),
		t.Value(row, t.Index(schema.ColumnCommercialName)),
		t.Value(row, t.Index(schema.ColumnCompetentAuthority)),
		t.Value(row, t.Index(schema.ColumnHomeMemberState)),
		strconv.Itoa(row),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

// FindRow resolves id against the live table and returns the 0-based row.
// An LEI shared by several rows falls back to the authority and country
// composite; the match must be unique. Synthetic ids are recomputed for
// every row without an LEI.
func FindRow(t *csvio.Table, id RowIdentifier) (int, bool) {
	if id.LEI != "" {
		var matches []int
		for i := range t.Rows {
			if t.Cell(i, schema.ColumnLEI) == id.LEI {
				matches = append(matches, i)
			}
		}
		switch {
		case len(matches) == 1:
			return matches[0], true
		case len(matches) > 1 && id.CompetentAuthority != "" && id.ServiceCountry != "":
			found := -1
			for _, i := range matches {
				if t.Cell(i, schema.ColumnCompetentAuthority) != id.CompetentAuthority ||
					t.Cell(i, schema.ColumnServiceCountries) != id.ServiceCountry {
					continue
				}
				if found >= 0 {
					return -1, false
				}
				found = i
			}
			return found, found >= 0
		}
		return -1, false
	}

	if id.SyntheticID == "" {
		return -1, false
	}
	for i := range t.Rows {
		if t.Cell(i, schema.ColumnLEI) != "" {
			continue
		}
		if syntheticID(t, i) == id.SyntheticID {
			return i, true
		}
	}
	return -1, false
}
