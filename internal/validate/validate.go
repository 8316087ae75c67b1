package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/schema"
	"github.com/JonMunkholm/micareg/internal/textfix"
)

// check inspects the input and returns its findings.
type check func(in *input) []Issue

// checks run in report order.
var checks = []check{
	checkStructure,
	checkSchema,
	checkLEI,
	checkDates,
	checkServiceCodes,
	checkCountryCodes,
	checkMultiline,
	checkEncoding,
}

type input struct {
	table *csvio.Table
	desc  schema.Descriptor
	// columns maps each distinct trimmed header to its first position.
	columns []column
}

type column struct {
	name  string
	index int
}

// Validate runs every check against t and returns the report. The caller
// fills InputFile and GeneratedAt.
func Validate(t *csvio.Table, d schema.Descriptor) *Report {
	in := &input{table: t, desc: d}
	seen := make(map[string]bool, len(t.Header))
	for i, h := range t.Header {
		name := strings.TrimSpace(h)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		in.columns = append(in.columns, column{name: name, index: i})
	}

	r := &Report{
		Version:  ReportVersion,
		Register: d.Type,
		Encoding: t.Encoding,
		Issues:   []Issue{},
		Stats: Stats{
			RowsTotal:  len(t.Rows) + 1,
			RowsParsed: len(t.Rows),
			Columns:    len(t.Header),
			Header:     append([]string(nil), t.Header...),
		},
	}

	for _, c := range checks {
		r.Issues = append(r.Issues, c(in)...)
	}

	for _, is := range r.Issues {
		switch is.Severity {
		case SeverityError:
			r.Stats.Errors++
		case SeverityWarning:
			r.Stats.Warnings++
		}
		if is.Code == CodeRowColumnCountMismatch {
			r.Stats.RowsParsed -= len(is.Rows)
		}
	}

	return r
}

// values calls fn for every non-empty trimmed value of column.
func (in *input) values(col column, fn func(rowNum int, value string)) {
	for i := range in.table.Rows {
		v := strings.TrimSpace(in.table.Value(i, col.index))
		if v != "" {
			fn(i+2, v)
		}
	}
}

// rawValues calls fn for every non-empty value of column as read.
func (in *input) rawValues(col column, fn func(rowNum int, value string)) {
	for i := range in.table.Rows {
		if v := in.table.Value(i, col.index); v != "" {
			fn(i+2, v)
		}
	}
}

func (in *input) columnsOfType(types ...schema.FieldType) []column {
	var out []column
	for _, c := range in.columns {
		ft := in.desc.TypeOf(c.name)
		for _, t := range types {
			if ft == t {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (in *input) column(name string) (column, bool) {
	for _, c := range in.columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

// collector accumulates affected rows and a bounded set of examples.
type collector struct {
	rows       []int
	examples   []string
	count      int
	rowCap     int
	exampleCap int
}

func newCollector(rowCap, exampleCap int) *collector {
	return &collector{rows: []int{}, examples: []string{}, rowCap: rowCap, exampleCap: exampleCap}
}

func (c *collector) add(row int, example string) {
	c.count++
	if c.rowCap == 0 || len(c.rows) < c.rowCap {
		c.rows = append(c.rows, row)
	}
	if example != "" && len(c.examples) < c.exampleCap {
		c.examples = append(c.examples, example)
	}
}

func (c *collector) issue(sev Severity, code, column, message string) Issue {
	return Issue{
		Severity: sev,
		Code:     code,
		Message:  message,
		Column:   column,
		Rows:     c.rows,
		Examples: c.examples,
	}
}

func checkStructure(in *input) []Issue {
	width := in.table.Width()
	c := newCollector(0, 3)
	for i, row := range in.table.Rows {
		if len(row) == width {
			continue
		}
		n := len(row)
		if n > 3 {
			n = 3
		}
		preview := textfix.Truncate(strings.Join(row[:n], ","), 120)
		c.add(i+2, fmt.Sprintf("Row %d: %s...", i+2, preview))
	}
	if c.count == 0 {
		return nil
	}
	msg := fmt.Sprintf("Found %d row(s) with column count mismatch (expected %d columns)", c.count, width)
	return []Issue{c.issue(SeverityError, CodeRowColumnCountMismatch, "", msg)}
}

func checkSchema(in *input) []Issue {
	var issues []Issue

	var missing []string
	for _, req := range in.desc.RequiredColumns() {
		if _, ok := in.column(req); !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     CodeSchemaMissingColumn,
			Message:  "Missing required column(s): " + strings.Join(missing, ", "),
			Rows:     []int{},
			Examples: missing,
		})
	}

	counts := make(map[string]int)
	var dups []string
	for _, h := range in.table.Header {
		name := strings.TrimSpace(h)
		counts[name]++
		if counts[name] == 2 {
			dups = append(dups, name)
		}
	}
	if len(dups) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     CodeSchemaDuplicateColumn,
			Message:  "Duplicate column(s): " + strings.Join(dups, ", "),
			Rows:     []int{},
			Examples: dups,
		})
	}

	var padded []string
	for _, h := range in.table.Header {
		if h != strings.TrimSpace(h) {
			padded = append(padded, fmt.Sprintf("%q", h))
		}
	}
	if len(padded) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Code:     CodeSchemaHeaderWhitespace,
			Message:  fmt.Sprintf("%d column header(s) have leading or trailing whitespace", len(padded)),
			Rows:     []int{},
			Examples: capStrings(padded, MaxExamples),
		})
	}

	return issues
}

func checkLEI(in *input) []Issue {
	col, ok := in.column(schema.ColumnLEI)
	if !ok {
		return nil
	}

	var issues []Issue
	invalid := newCollector(0, MaxExamples)
	byLEI := make(map[string][]int)
	var order []string

	in.values(col, func(rowNum int, v string) {
		if !textfix.ValidLEI(v) {
			invalid.add(rowNum, textfix.Truncate(v, 50))
		}
		if _, seen := byLEI[v]; !seen {
			order = append(order, v)
		}
		byLEI[v] = append(byLEI[v], rowNum)
	})

	if invalid.count > 0 {
		msg := fmt.Sprintf("Found %d invalid LEI(s) (expected 20 alphanumeric characters)", invalid.count)
		issues = append(issues, invalid.issue(SeverityError, CodeLEIInvalidFormat, col.name, msg))
	}

	var dupLEIs []string
	var dupRows []int
	for _, lei := range order {
		if rows := byLEI[lei]; len(rows) > 1 {
			dupLEIs = append(dupLEIs, lei)
			dupRows = append(dupRows, rows...)
		}
	}
	if len(dupLEIs) > 0 {
		sort.Ints(dupRows)
		msg := fmt.Sprintf("Found %d duplicate LEI(s) across %d rows", len(dupLEIs), len(dupRows))
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Code:     CodeLEIDuplicate,
			Message:  msg,
			Column:   col.name,
			Rows:     capInts(dupRows, maxRows),
			Examples: capStrings(dupLEIs, MaxExamples),
		})
	}

	return issues
}

func checkDates(in *input) []Issue {
	layout := in.desc.Layout()
	var repairable, unparsable []Issue

	for _, col := range in.columnsOfType(schema.FieldDate) {
		fix := newCollector(0, 3)
		bad := newCollector(0, 3)
		in.values(col, func(rowNum int, v string) {
			switch state, hint := textfix.ClassifyDate(v, layout); state {
			case textfix.DateRepairable:
				fix.add(rowNum, v+" → "+hint)
			case textfix.DateUnparseable:
				bad.add(rowNum, textfix.Truncate(v, 50))
			}
		})
		if fix.count > 0 {
			msg := fmt.Sprintf("Column '%s': %d date(s) need normalization", col.name, fix.count)
			repairable = append(repairable, fix.issue(SeverityWarning, CodeDateNeedsNormalization, col.name, msg))
		}
		if bad.count > 0 {
			msg := fmt.Sprintf("Column '%s': %d unparsable date(s)", col.name, bad.count)
			unparsable = append(unparsable, bad.issue(SeverityError, CodeDateUnparsable, col.name, msg))
		}
	}

	return append(repairable, unparsable...)
}

func checkServiceCodes(in *input) []Issue {
	var issues []Issue
	for _, col := range in.columnsOfType(schema.FieldServiceCodes) {
		invalid := newCollector(0, 3)
		suspicious := newCollector(0, 3)
		in.values(col, func(rowNum int, v string) {
			codes, odd := textfix.ServiceCodes(v)
			switch {
			case len(codes) == 0:
				invalid.add(rowNum, textfix.Truncate(v, 100))
			case odd:
				suspicious.add(rowNum, textfix.Truncate(v, 100))
			}
		})
		if invalid.count > 0 {
			msg := fmt.Sprintf("Found %d row(s) with invalid service codes (no valid codes a-j found)", invalid.count)
			issues = append(issues, invalid.issue(SeverityError, CodeServiceCodeInvalid, col.name, msg))
		}
		if suspicious.count > 0 {
			msg := fmt.Sprintf("Found %d row(s) with suspicious service code format (contains letters outside a-j)", suspicious.count)
			issues = append(issues, suspicious.issue(SeverityWarning, CodeServiceCodeSuspicious, col.name, msg))
		}
	}
	return issues
}

func checkCountryCodes(in *input) []Issue {
	var issues []Issue
	for _, col := range in.columnsOfType(schema.FieldCountryList) {
		c := newCollector(0, MaxExamples)
		in.values(col, func(rowNum int, v string) {
			if bad := textfix.InvalidCountryCodes(v); len(bad) > 0 {
				c.add(rowNum, strings.Join(bad, ", "))
			}
		})
		if c.count > 0 {
			msg := fmt.Sprintf("Found %d row(s) with invalid country codes", c.count)
			issues = append(issues, c.issue(SeverityError, CodeCountryCodeInvalid, col.name, msg))
		}
	}
	return issues
}

func checkMultiline(in *input) []Issue {
	var issues []Issue
	for _, col := range in.columns {
		c := newCollector(maxRows, 3)
		in.rawValues(col, func(rowNum int, v string) {
			if textfix.HasNewline(v) {
				c.add(rowNum, textfix.Truncate(v, 100))
			}
		})
		if c.count == 0 {
			continue
		}
		if in.desc.TypeOf(col.name) == schema.FieldURL {
			msg := fmt.Sprintf("Column '%s': %d value(s) span multiple lines", col.name, c.count)
			issues = append(issues, c.issue(SeverityWarning, CodeMultilineWebsite, col.name, msg))
		} else {
			msg := fmt.Sprintf("Column '%s': %d value(s) contain line breaks", col.name, c.count)
			issues = append(issues, c.issue(SeverityError, CodeMultilineField, col.name, msg))
		}
	}
	return issues
}

func checkEncoding(in *input) []Issue {
	var issues []Issue
	for _, col := range in.columns {
		c := newCollector(maxRows, MaxExamples)
		in.values(col, func(rowNum int, v string) {
			if textfix.EncodingSuspect(v) {
				c.add(rowNum, textfix.Truncate(v, 100))
			}
		})
		if c.count > 0 {
			msg := fmt.Sprintf("Column '%s': %d value(s) show signs of encoding damage", col.name, c.count)
			issues = append(issues, c.issue(SeverityWarning, CodeEncodingSuspect, col.name, msg))
		}
	}
	return issues
}

func capInts(s []int, n int) []int {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
