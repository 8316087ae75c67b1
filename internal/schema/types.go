// Package schema describes the ESMA MiCA interim register files: which
// columns each register carries, how they are typed, and the reference
// tables (service codes, country codes) the checks rely on.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRegister is returned when a register name is not registered.
var ErrUnknownRegister = errors.New("unknown register")

// RegisterType identifies one of the interim registers.
type RegisterType string

const (
	CASP  RegisterType = "casp"  // authorised crypto-asset service providers
	Other RegisterType = "other" // white papers for other crypto-assets
	ART   RegisterType = "art"   // asset-referenced token issuers
	EMT   RegisterType = "emt"   // e-money token issuers
	NCASP RegisterType = "ncasp" // non-compliant entities
)

// ParseRegisterType converts a case-insensitive name into a RegisterType.
func ParseRegisterType(s string) (RegisterType, error) {
	rt := RegisterType(strings.ToLower(strings.TrimSpace(s)))
	switch rt {
	case CASP, Other, ART, EMT, NCASP:
		return rt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegister, s)
}

// Prefix is the upper-case file name prefix, e.g. "CASP".
func (t RegisterType) Prefix() string {
	return strings.ToUpper(string(t))
}

// FieldType determines which checks and fixers apply to a column.
type FieldType int

const (
	FieldText          FieldType = iota // free text, eligible for encoding repair
	FieldCode                           // short code or identifier, whitespace only
	FieldDate                           // DD/MM/YYYY date
	FieldBool                           // yes/no flag
	FieldLEI                            // 20-char legal entity identifier
	FieldURL                            // website or document URL
	FieldList                           // pipe-separated values
	FieldCountryList                    // pipe-separated ISO country codes
	FieldServiceCodes                   // MiCA service codes a-j
)

var fieldTypeNames = map[FieldType]string{
	FieldText:         "text",
	FieldCode:         "code",
	FieldDate:         "date",
	FieldBool:         "bool",
	FieldLEI:          "lei",
	FieldURL:          "url",
	FieldList:         "list",
	FieldCountryList:  "countries",
	FieldServiceCodes: "services",
}

func (t FieldType) String() string {
	if s, ok := fieldTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for ft, s := range fieldTypeNames {
		if s == name {
			*t = ft
			return nil
		}
	}
	return fmt.Errorf("invalid field type %q", string(b))
}

// FieldSpec defines one expected CSV column.
type FieldSpec struct {
	Name     string    `yaml:"name" json:"name"`               // CSV header
	Field    string    `yaml:"field" json:"field"`             // canonical field name
	Type     FieldType `yaml:"type" json:"type"`               // value kind
	Required bool      `yaml:"required" json:"required"`       // must be present in the header
	Bool     string    `yaml:"bool,omitempty" json:"bool,omitempty"` // boolean format for FieldBool
}

// Descriptor is the immutable schema of one register.
type Descriptor struct {
	Type       RegisterType `yaml:"type" json:"type"`
	Label      string       `yaml:"label" json:"label"`
	Separator  string       `yaml:"separator" json:"separator"`
	DateLayout string       `yaml:"dateLayout" json:"dateLayout"`
	Fields     []FieldSpec  `yaml:"fields" json:"fields"`
}

// Comma returns the field separator rune, defaulting to ','.
func (d Descriptor) Comma() rune {
	if d.Separator == "" {
		return ','
	}
	return []rune(d.Separator)[0]
}

// Layout returns the canonical date layout, defaulting to DD/MM/YYYY.
func (d Descriptor) Layout() string {
	if d.DateLayout == "" {
		return DefaultDateLayout
	}
	return d.DateLayout
}

// Spec returns the field spec for a CSV column.
func (d Descriptor) Spec(column string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == column {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldFor maps a CSV column to its canonical field name.
func (d Descriptor) FieldFor(column string) (string, bool) {
	f, ok := d.Spec(column)
	return f.Field, ok
}

// TypeOf returns the field type of a column. Columns the descriptor does
// not know are classified by name so extra columns still get sane handling.
func (d Descriptor) TypeOf(column string) FieldType {
	if f, ok := d.Spec(column); ok {
		return f.Type
	}
	lower := strings.ToLower(column)
	switch {
	case lower == ColumnLEI:
		return FieldLEI
	case strings.Contains(lower, "date") || strings.Contains(lower, "lastupdate"):
		return FieldDate
	case strings.Contains(lower, "website") || strings.Contains(lower, "url"):
		return FieldURL
	default:
		return FieldText
	}
}

// RequiredColumns returns the CSV headers that must be present.
func (d Descriptor) RequiredColumns() []string {
	var cols []string
	for _, f := range d.Fields {
		if f.Required {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// Columns returns all CSV headers in declaration order.
func (d Descriptor) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Name
	}
	return cols
}

// ColumnsOfType returns the declared columns of the given type.
func (d Descriptor) ColumnsOfType(t FieldType) []string {
	var cols []string
	for _, f := range d.Fields {
		if f.Type == t {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// HasColumn reports whether the descriptor declares column.
func (d Descriptor) HasColumn(column string) bool {
	_, ok := d.Spec(column)
	return ok
}

func (d Descriptor) validate() error {
	if _, err := ParseRegisterType(string(d.Type)); err != nil {
		return err
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("register %s: no fields", d.Type)
	}
	if n := len([]rune(d.Separator)); n > 1 {
		return fmt.Errorf("register %s: separator must be a single character", d.Type)
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" || f.Field == "" {
			return fmt.Errorf("register %s: field with empty name", d.Type)
		}
		if seen[f.Name] {
			return fmt.Errorf("register %s: duplicate column %s", d.Type, f.Name)
		}
		seen[f.Name] = true
		if f.Type == FieldBool && f.Bool != "" {
			if _, ok := boolFormats[f.Bool]; !ok {
				return fmt.Errorf("register %s: column %s: unknown bool format %q", d.Type, f.Name, f.Bool)
			}
		}
	}
	return nil
}

// clone returns a deep copy so callers cannot mutate registry state.
func (d Descriptor) clone() Descriptor {
	d.Fields = append([]FieldSpec(nil), d.Fields...)
	return d
}
