// Package validate inspects a raw register file and reports structural,
// schema and content issues without modifying anything.
package validate

import (
	"time"

	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/schema"
)

// ReportVersion is the schema version of Report.
const ReportVersion = 1

// MaxExamples caps the examples attached to any issue.
const MaxExamples = 5

// maxRows caps row lists for issues that can hit most of a file.
const maxRows = 20

// Severity of an issue.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Issue codes.
const (
	CodeRowColumnCountMismatch = "ROW_COLUMN_COUNT_MISMATCH"
	CodeSchemaMissingColumn    = "SCHEMA_MISSING_COLUMN"
	CodeSchemaDuplicateColumn  = "SCHEMA_DUPLICATE_COLUMN"
	CodeSchemaHeaderWhitespace = "SCHEMA_HEADER_WHITESPACE"
	CodeLEIInvalidFormat       = "LEI_INVALID_FORMAT"
	CodeLEIDuplicate           = "LEI_DUPLICATE"
	CodeDateNeedsNormalization = "DATE_NEEDS_NORMALIZATION"
	CodeDateUnparsable         = "DATE_UNPARSABLE"
	CodeServiceCodeInvalid     = "SERVICE_CODE_INVALID"
	CodeServiceCodeSuspicious  = "SERVICE_CODE_SUSPICIOUS_FORMAT"
	CodeCountryCodeInvalid     = "COUNTRY_CODE_INVALID"
	CodeMultilineWebsite       = "MULTILINE_WEBSITE"
	CodeMultilineField         = "MULTILINE_FIELD"
	CodeEncodingSuspect        = "ENCODING_SUSPECT"
)

// Issue is a single finding. Rows are 1-based file line numbers where the
// header is row 1.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Column   string   `json:"column,omitempty"`
	Rows     []int    `json:"rows"`
	Examples []string `json:"examples"`
}

// Stats summarizes the input.
type Stats struct {
	RowsTotal  int      `json:"rowsTotal"`
	RowsParsed int      `json:"rowsParsed"`
	Columns    int      `json:"columns"`
	Header     []string `json:"header"`
	Errors     int      `json:"errors"`
	Warnings   int      `json:"warnings"`
}

// Report is the validation result for one file.
type Report struct {
	Version     int                 `json:"version"`
	GeneratedAt time.Time           `json:"generatedAt"`
	InputFile   string              `json:"inputFile"`
	Register    schema.RegisterType `json:"register"`
	Encoding    csvio.EncodingInfo  `json:"encoding"`
	Stats       Stats               `json:"stats"`
	Issues      []Issue             `json:"issues"`
}

// HasErrors reports whether any ERROR issue was found.
func (r *Report) HasErrors() bool {
	return r.Stats.Errors > 0
}

// Codes returns the distinct issue codes in report order.
func (r *Report) Codes() []string {
	seen := make(map[string]bool)
	var codes []string
	for _, is := range r.Issues {
		if !seen[is.Code] {
			seen[is.Code] = true
			codes = append(codes, is.Code)
		}
	}
	return codes
}

// Find returns the issues with the given code.
func (r *Report) Find(code string) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Code == code {
			out = append(out, is)
		}
	}
	return out
}
