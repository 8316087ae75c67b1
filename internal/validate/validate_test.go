package validate

import (
	"bytes"
	"encoding/csv"
	"reflect"
	"strings"
	"testing"

	"github.com/JonMunkholm/micareg/internal/csvio"
	"github.com/JonMunkholm/micareg/internal/schema"
)

// =============================================================================
// Fixtures
// =============================================================================

const (
	leiA = "529900T8BM49AURSDO55"
	leiB = "254900OPPU84GM83MG36"
)

func caspDesc(t *testing.T) schema.Descriptor {
	t.Helper()
	d, ok := schema.Get(schema.CASP)
	if !ok {
		t.Fatal("CASP register not registered")
	}
	return d
}

func caspRow(lei string) map[string]string {
	return map[string]string{
		"ae_competentAuthority":            "BaFin",
		"ae_homeMemberState":               "DE",
		"ae_lei_name":                      "Acme Crypto GmbH",
		"ae_lei":                           lei,
		"ae_commercial_name":               "Acme",
		"ae_address":                       "Hauptstraße 1, Berlin",
		"ae_website":                       "https://acme.example",
		"ac_authorisationNotificationDate": "15/01/2025",
		"ac_serviceCode":                   "a. custody | c. exchange",
		"ac_serviceCode_cou":               "DE|FR",
		"ac_lastupdate":                    "20/01/2025",
	}
}

func buildTable(t *testing.T, header []string, rows ...map[string]string) *csvio.Table {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(header)
	for _, r := range rows {
		rec := make([]string, len(header))
		for i, h := range header {
			rec[i] = r[strings.TrimSpace(h)]
		}
		w.Write(rec)
	}
	w.Flush()

	tbl, err := csvio.Parse(buf.Bytes(), ',')
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return tbl
}

// =============================================================================
// Tests
// =============================================================================

func TestValidate_CleanFile(t *testing.T) {
	d := caspDesc(t)
	tbl := buildTable(t, d.Columns(), caspRow(leiA), caspRow(leiB))

	r := Validate(tbl, d)

	if len(r.Issues) != 0 {
		t.Fatalf("Validate() issues = %+v, want none", r.Issues)
	}
	if r.Stats.RowsTotal != 3 || r.Stats.RowsParsed != 2 {
		t.Errorf("Stats rows = %d/%d, want 3/2", r.Stats.RowsTotal, r.Stats.RowsParsed)
	}
	if r.Stats.Columns != len(d.Columns()) {
		t.Errorf("Stats.Columns = %d, want %d", r.Stats.Columns, len(d.Columns()))
	}
	if r.Version != ReportVersion || r.Register != schema.CASP {
		t.Errorf("Report header = %d/%s", r.Version, r.Register)
	}
	if r.HasErrors() {
		t.Error("HasErrors() = true, want false")
	}
}

func TestValidate_DuplicateLEI(t *testing.T) {
	d := caspDesc(t)
	tbl := buildTable(t, d.Columns(), caspRow(leiA), caspRow(leiA), caspRow(leiA), caspRow(leiB))

	r := Validate(tbl, d)

	dups := r.Find(CodeLEIDuplicate)
	if len(dups) != 1 {
		t.Fatalf("got %d LEI_DUPLICATE issues, want 1", len(dups))
	}
	is := dups[0]
	if is.Severity != SeverityWarning {
		t.Errorf("Severity = %s, want WARNING", is.Severity)
	}
	if !reflect.DeepEqual(is.Rows, []int{2, 3, 4}) {
		t.Errorf("Rows = %v, want [2 3 4]", is.Rows)
	}
	if !reflect.DeepEqual(is.Examples, []string{leiA}) {
		t.Errorf("Examples = %v, want [%s]", is.Examples, leiA)
	}
	if is.Message != "Found 1 duplicate LEI(s) across 3 rows" {
		t.Errorf("Message = %q", is.Message)
	}
}

func TestValidate_ContentIssues(t *testing.T) {
	d := caspDesc(t)

	bad := caspRow("529900T8BM49AURSDO55.")
	bad["ac_authorisationNotificationDate"] = "15/01/.2025"
	bad["ac_lastupdate"] = "someday"
	bad["ac_serviceCode"] = "a. custody|k. invalid"
	bad["ac_serviceCode_cou"] = "DE|US"
	bad["ae_address"] = "Main St 1\nBerlin"
	bad["ae_website"] = "www.a.com\nwww.b.com"
	bad["ae_lei_name"] = "KÃ¶ln Crypto"

	none := caspRow(leiB)
	none["ac_serviceCode"] = "1, 2"

	r := Validate(buildTable(t, d.Columns(), bad, none), d)

	wantCodes := []string{
		CodeLEIInvalidFormat,
		CodeDateNeedsNormalization,
		CodeDateUnparsable,
		CodeServiceCodeInvalid,
		CodeServiceCodeSuspicious,
		CodeCountryCodeInvalid,
		CodeMultilineField,
		CodeMultilineWebsite,
		CodeEncodingSuspect,
	}
	if got := r.Codes(); !reflect.DeepEqual(got, wantCodes) {
		t.Fatalf("Codes() = %v, want %v", got, wantCodes)
	}

	fix := r.Find(CodeDateNeedsNormalization)[0]
	if fix.Column != "ac_authorisationNotificationDate" || fix.Examples[0] != "15/01/.2025 → 15/01/2025" {
		t.Errorf("DATE_NEEDS_NORMALIZATION = %+v", fix)
	}
	if cc := r.Find(CodeCountryCodeInvalid)[0]; cc.Examples[0] != "US" || cc.Rows[0] != 2 {
		t.Errorf("COUNTRY_CODE_INVALID = %+v", cc)
	}
	if inv := r.Find(CodeServiceCodeInvalid)[0]; !reflect.DeepEqual(inv.Rows, []int{3}) {
		t.Errorf("SERVICE_CODE_INVALID rows = %v, want [3]", inv.Rows)
	}
	if ml := r.Find(CodeMultilineField)[0]; ml.Column != "ae_address" || ml.Severity != SeverityError {
		t.Errorf("MULTILINE_FIELD = %+v", ml)
	}
	if enc := r.Find(CodeEncodingSuspect)[0]; enc.Column != "ae_lei_name" {
		t.Errorf("ENCODING_SUSPECT column = %q, want ae_lei_name", enc.Column)
	}

	// errors: LEI, date unparsable, service invalid, country, multiline field
	if r.Stats.Errors != 5 || r.Stats.Warnings != 4 {
		t.Errorf("Stats errors/warnings = %d/%d, want 5/4", r.Stats.Errors, r.Stats.Warnings)
	}
}

func TestValidate_StructureAndSchema(t *testing.T) {
	d := caspDesc(t)
	data := "ae_lei, ae_lei_name,ae_lei\n" +
		leiA + ",Acme,x\n" +
		leiB + ",Short\n"

	tbl, err := csvio.Parse([]byte(data), ',')
	if err != nil {
		t.Fatal(err)
	}
	r := Validate(tbl, d)

	mismatch := r.Find(CodeRowColumnCountMismatch)
	if len(mismatch) != 1 || !reflect.DeepEqual(mismatch[0].Rows, []int{3}) {
		t.Fatalf("ROW_COLUMN_COUNT_MISMATCH = %+v", mismatch)
	}
	if !strings.HasPrefix(mismatch[0].Examples[0], "Row 3: ") {
		t.Errorf("mismatch example = %q", mismatch[0].Examples[0])
	}
	if r.Stats.RowsParsed != 1 {
		t.Errorf("RowsParsed = %d, want 1", r.Stats.RowsParsed)
	}

	missing := r.Find(CodeSchemaMissingColumn)
	if len(missing) != 1 || !reflect.DeepEqual(missing[0].Examples, []string{schema.ColumnHomeMemberState}) {
		t.Errorf("SCHEMA_MISSING_COLUMN = %+v", missing)
	}
	if dup := r.Find(CodeSchemaDuplicateColumn); len(dup) != 1 || dup[0].Examples[0] != "ae_lei" {
		t.Errorf("SCHEMA_DUPLICATE_COLUMN = %+v", dup)
	}
	if ws := r.Find(CodeSchemaHeaderWhitespace); len(ws) != 1 || ws[0].Severity != SeverityWarning {
		t.Errorf("SCHEMA_HEADER_WHITESPACE = %+v", ws)
	}
}

func TestValidate_TrailingLineBreak(t *testing.T) {
	d := caspDesc(t)
	website := caspRow(leiA)
	website["ae_website"] = "https://a.example\n"
	address := caspRow(leiB)
	address["ae_address"] = "Hauptstraße 1, Berlin\r\n"

	r := Validate(buildTable(t, d.Columns(), website, address), d)

	ml := r.Find(CodeMultilineWebsite)
	if len(ml) != 1 || !reflect.DeepEqual(ml[0].Rows, []int{2}) || ml[0].Severity != SeverityWarning {
		t.Errorf("MULTILINE_WEBSITE = %+v", ml)
	}
	mf := r.Find(CodeMultilineField)
	if len(mf) != 1 || mf[0].Column != "ae_address" || !reflect.DeepEqual(mf[0].Rows, []int{3}) {
		t.Errorf("MULTILINE_FIELD = %+v", mf)
	}
}

func TestValidate_NCASPWithoutLEI(t *testing.T) {
	d, _ := schema.Get(schema.NCASP)
	header := []string{"ae_homeMemberState", "ae_commercial_name", "ae_website"}
	tbl := buildTable(t, header, map[string]string{
		"ae_homeMemberState": "FR",
		"ae_commercial_name": "Scam Exchange",
		"ae_website":         "scam.example",
	})

	r := Validate(tbl, d)
	if len(r.Issues) != 0 {
		t.Errorf("Validate() issues = %+v, want none", r.Issues)
	}
}

func TestValidate_RowListsCapped(t *testing.T) {
	d := caspDesc(t)
	var rows []map[string]string
	for i := 0; i < 30; i++ {
		rows = append(rows, caspRow(leiA))
	}
	r := Validate(buildTable(t, d.Columns(), rows...), d)

	dup := r.Find(CodeLEIDuplicate)[0]
	if len(dup.Rows) != maxRows {
		t.Errorf("LEI_DUPLICATE rows = %d, want %d", len(dup.Rows), maxRows)
	}
	if dup.Message != "Found 1 duplicate LEI(s) across 30 rows" {
		t.Errorf("Message = %q", dup.Message)
	}
}
