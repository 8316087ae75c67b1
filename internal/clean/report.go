// Package clean applies the deterministic repair chain to a register file.
// It never adds or removes rows and never guesses: values that cannot be
// repaired safely are left untouched and recorded as warnings.
package clean

import (
	"time"

	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/schema"
)

// ReportVersion is the schema version of Report.
const ReportVersion = 1

// maxChangeValue caps old and new values recorded in a Change.
const maxChangeValue = 100

// Change types.
const (
	WhitespaceFixed          = "WHITESPACE_FIXED"
	EncodingDataLossFixed    = "ENCODING_DATA_LOSS_FIXED"
	EncodingDataLossWarning  = "ENCODING_DATA_LOSS_WARNING"
	EncodingFixed            = "ENCODING_FIXED"
	DateFixed                = "DATE_FIXED"
	DateWarning              = "DATE_WARNING"
	MultilineWebsiteFixed    = "MULTILINE_WEBSITE_FIXED"
	MultilineFixed           = "MULTILINE_FIXED"
	CountryCodeNormalized    = "COUNTRY_CODE_NORMALIZED"
	LEITrailingDotRemoved    = "LEI_TRAILING_DOT_REMOVED"
	LEIExcelNotationFixed    = "LEI_EXCEL_NOTATION_FIXED"
	LEICleaned               = "LEI_CLEANED"
	LEIWarning               = "LEI_WARNING"
	AddressParsingFixed      = "ADDRESS_PARSING_FIXED"
	WebsiteParsingFixed      = "WEBSITE_PARSING_FIXED"
	ServiceCodeNormalized    = "SERVICE_CODE_NORMALIZED"
	CommercialNameNormalized = "COMMERCIAL_NAME_NORMALIZED"
	BooleanNormalized        = "BOOLEAN_NORMALIZED"
)

// Change records one cell mutation, or one warning about a cell that was
// left as is. Row is the 1-based file line (header is row 1).
type Change struct {
	Type     string `json:"type"`
	Row      int    `json:"row"`
	Column   string `json:"column"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
	Warning  bool   `json:"warning,omitempty"`
}

// Stats compares input and output shape.
type Stats struct {
	RowsBefore int `json:"rowsBefore"`
	RowsAfter  int `json:"rowsAfter"`
	Columns    int `json:"columns"`
}

// Summary counts changes by type.
type Summary struct {
	TotalChanges  int            `json:"totalChanges"`
	ChangesByType map[string]int `json:"changesByType"`
}

// Report is the cleaning audit trail for one file.
type Report struct {
	Version     int                 `json:"version"`
	GeneratedAt time.Time           `json:"generatedAt"`
	InputFile   string              `json:"inputFile"`
	OutputFile  string              `json:"outputFile,omitempty"`
	Register    schema.RegisterType `json:"register"`
	Encoding    csvio.EncodingInfo  `json:"encoding"`
	Stats       Stats               `json:"stats"`
	Changes     []Change            `json:"changes"`
	Summary     Summary             `json:"summary"`
}

// Mutations returns the changes that altered a value.
func (r *Report) Mutations() []Change {
	var out []Change
	for _, c := range r.Changes {
		if !c.Warning {
			out = append(out, c)
		}
	}
	return out
}

// Warnings returns the changes that flagged a value without altering it.
func (r *Report) Warnings() []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Warning {
			out = append(out, c)
		}
	}
	return out
}
