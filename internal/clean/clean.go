package clean

import (
	"strings"

	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/schema"
	"github.com/JonMunkholm/micareg/internal/textfix"
)

// fixer is one step of the repair chain.
type fixer func(c *cleaner)

// fixers run in this order. Later steps rely on earlier ones, e.g. the
// multiline repair expects whitespace to be normalized already.
var fixers = []fixer{
	fixWhitespace,
	fixEncodingLoss,
	fixEncoding,
	fixDates,
	fixMultiline,
	fixCountries,
	fixLEIs,
	fixAddressWebsite,
	fixServiceCodes,
	fixCommercialNames,
	fixBooleans,
}

type cleaner struct {
	table   *csvio.Table
	desc    schema.Descriptor
	changes []Change
}

// Result is the cleaned table and its audit report. The caller fills
// InputFile, OutputFile and GeneratedAt on the report.
type Result struct {
	Table  *csvio.Table
	Report *Report
}

// Clean runs the repair chain on a copy of t. Rows are padded or truncated
// to header width; the row count never changes.
func Clean(t *csvio.Table, d schema.Descriptor) *Result {
	work := t.Clone()
	work.Normalize()

	c := &cleaner{table: work, desc: d, changes: []Change{}}
	for _, f := range fixers {
		f(c)
	}

	summary := Summary{
		TotalChanges:  len(c.changes),
		ChangesByType: make(map[string]int),
	}
	for _, ch := range c.changes {
		summary.ChangesByType[ch.Type]++
	}

	return &Result{
		Table: work,
		Report: &Report{
			Version:  ReportVersion,
			Register: d.Type,
			Encoding: t.Encoding,
			Stats: Stats{
				RowsBefore: len(t.Rows),
				RowsAfter:  len(work.Rows),
				Columns:    work.Width(),
			},
			Changes: c.changes,
			Summary: summary,
		},
	}
}

// columns returns the header positions whose type matches pred.
func (c *cleaner) columns(pred func(schema.FieldType) bool) []int {
	var out []int
	for i, h := range c.table.Header {
		if pred(c.desc.TypeOf(strings.TrimSpace(h))) {
			out = append(out, i)
		}
	}
	return out
}

func (c *cleaner) columnsOf(types ...schema.FieldType) []int {
	return c.columns(func(ft schema.FieldType) bool {
		for _, t := range types {
			if ft == t {
				return true
			}
		}
		return false
	})
}

// each calls fn for every non-empty cell of column col.
func (c *cleaner) each(col int, fn func(row int, value string)) {
	for i, row := range c.table.Rows {
		if v := row[col]; v != "" {
			fn(i, v)
		}
	}
}

// set writes value and records the change when it differs.
func (c *cleaner) set(kind string, row, col int, value string) {
	old := c.table.Rows[row][col]
	if old == value {
		return
	}
	c.table.Rows[row][col] = value
	c.changes = append(c.changes, Change{
		Type:     kind,
		Row:      row + 2,
		Column:   strings.TrimSpace(c.table.Header[col]),
		OldValue: textfix.Truncate(old, maxChangeValue),
		NewValue: textfix.Truncate(value, maxChangeValue),
	})
}

// warn records a cell that was left alone.
func (c *cleaner) warn(kind string, row, col int) {
	v := c.table.Rows[row][col]
	c.changes = append(c.changes, Change{
		Type:     kind,
		Row:      row + 2,
		Column:   strings.TrimSpace(c.table.Header[col]),
		OldValue: textfix.Truncate(v, maxChangeValue),
		NewValue: textfix.Truncate(v, maxChangeValue),
		Warning:  true,
	})
}

func fixWhitespace(c *cleaner) {
	cols := c.columns(func(ft schema.FieldType) bool {
		return ft != schema.FieldDate && ft != schema.FieldLEI
	})
	for _, col := range cols {
		c.each(col, func(row int, v string) {
			c.set(WhitespaceFixed, row, col, textfix.NormalizeSpace(v))
		})
	}
}

func fixEncodingLoss(c *cleaner) {
	for _, col := range c.columnsOf(schema.FieldText, schema.FieldURL) {
		c.each(col, func(row int, v string) {
			if !textfix.HasReplacementChar(v) {
				return
			}
			fixed := textfix.FixEncoding(v)
			if textfix.HasReplacementChar(fixed) {
				c.warn(EncodingDataLossWarning, row, col)
				return
			}
			c.set(EncodingDataLossFixed, row, col, fixed)
		})
	}
}

func fixEncoding(c *cleaner) {
	for _, col := range c.columnsOf(schema.FieldText, schema.FieldURL) {
		c.each(col, func(row int, v string) {
			// Unresolved data loss was already flagged; leave it alone.
			if textfix.HasReplacementChar(v) {
				return
			}
			c.set(EncodingFixed, row, col, textfix.FixEncoding(v))
		})
	}
}

func fixDates(c *cleaner) {
	layout := c.desc.Layout()
	for _, col := range c.columnsOf(schema.FieldDate) {
		c.each(col, func(row int, v string) {
			if strings.TrimSpace(v) == "" {
				c.set(WhitespaceFixed, row, col, "")
				return
			}
			fixed, ok := textfix.RepairDate(v, layout)
			if !ok {
				c.warn(DateWarning, row, col)
				return
			}
			c.set(DateFixed, row, col, fixed)
		})
	}
}

func fixMultiline(c *cleaner) {
	cols := c.columns(func(ft schema.FieldType) bool {
		return ft != schema.FieldDate && ft != schema.FieldLEI
	})
	for _, col := range cols {
		isURL := c.desc.TypeOf(strings.TrimSpace(c.table.Header[col])) == schema.FieldURL
		c.each(col, func(row int, v string) {
			if !textfix.HasNewline(v) {
				return
			}
			if isURL {
				c.set(MultilineWebsiteFixed, row, col, textfix.SplitWebsites(v))
			} else {
				c.set(MultilineFixed, row, col, textfix.JoinLines(v))
			}
		})
	}
}

func fixCountries(c *cleaner) {
	for _, col := range c.columnsOf(schema.FieldCountryList) {
		c.each(col, func(row int, v string) {
			if strings.TrimSpace(v) == "" {
				return
			}
			c.set(CountryCodeNormalized, row, col, textfix.NormalizeCountries(v))
		})
	}
}

var leiChangeTypes = map[textfix.LEIFix]string{
	textfix.LEITrailingDot: LEITrailingDotRemoved,
	textfix.LEIExcel:       LEIExcelNotationFixed,
	textfix.LEICleaned:     LEICleaned,
}

func fixLEIs(c *cleaner) {
	for _, col := range c.columnsOf(schema.FieldLEI) {
		c.each(col, func(row int, v string) {
			if strings.TrimSpace(v) == "" {
				c.set(WhitespaceFixed, row, col, "")
				return
			}
			fixed, fix := textfix.RepairLEI(v)
			switch fix {
			case textfix.LEIUnchanged:
			case textfix.LEIUnfixable:
				c.warn(LEIWarning, row, col)
			default:
				c.set(leiChangeTypes[fix], row, col, fixed)
			}
		})
	}
}

// fixAddressWebsite moves address fragments that landed in the website
// column back into the address.
func fixAddressWebsite(c *cleaner) {
	addrCol := c.table.Index(schema.ColumnAddress)
	webCol := c.table.Index(schema.ColumnWebsite)
	if addrCol < 0 || webCol < 0 {
		return
	}

	for i, row := range c.table.Rows {
		website := strings.TrimSpace(row[webCol])
		if website == "" || textfix.IsURL(website) {
			continue
		}
		address := strings.TrimSpace(row[addrCol])
		if address == "" {
			continue
		}
		c.set(AddressParsingFixed, i, addrCol, address+", "+website)
		c.set(WebsiteParsingFixed, i, webCol, "")
	}
}

func fixServiceCodes(c *cleaner) {
	for _, col := range c.columnsOf(schema.FieldServiceCodes) {
		c.each(col, func(row int, v string) {
			if fixed, ok := textfix.NormalizeServiceCodes(v); ok {
				c.set(ServiceCodeNormalized, row, col, fixed)
			}
		})
	}
}

func fixCommercialNames(c *cleaner) {
	col := c.table.Index(schema.ColumnCommercialName)
	if col < 0 {
		return
	}
	c.each(col, func(row int, v string) {
		c.set(CommercialNameNormalized, row, col, textfix.NormalizeCommercialName(v))
	})
}

func fixBooleans(c *cleaner) {
	for _, col := range c.columnsOf(schema.FieldBool) {
		spec, _ := c.desc.Spec(strings.TrimSpace(c.table.Header[col]))
		c.each(col, func(row int, v string) {
			if b, ok := schema.ParseBool(v); ok {
				c.set(BooleanNormalized, row, col, schema.FormatBool(b, spec.Bool))
			}
		})
	}
}
