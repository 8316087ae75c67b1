package schema

// DefaultDateLayout is the register date format (DD/MM/YYYY).
const DefaultDateLayout = "02/01/2006"

// Column headers shared by the remediation and row identification code.
const (
	ColumnLEI                = "ae_lei"
	ColumnLEIName            = "ae_lei_name"
	ColumnCommercialName     = "ae_commercial_name"
	ColumnCompetentAuthority = "ae_competentAuthority"
	ColumnHomeMemberState    = "ae_homeMemberState"
	ColumnAddress            = "ae_address"
	ColumnWebsite            = "ae_website"
	ColumnServiceCodes       = "ac_serviceCode"
	ColumnServiceCountries   = "ac_serviceCode_cou"
	ColumnNotificationDate   = "ac_authorisationNotificationDate"
	ColumnEndDate            = "ac_authorisationEndDate"
	ColumnLastUpdate         = "ac_lastupdate"
	ColumnComments           = "ac_comments"
)

func init() {
	Register(caspDescriptor())
	Register(otherDescriptor())
	Register(artDescriptor())
	Register(emtDescriptor())
	Register(ncaspDescriptor())
}

// commonFields are present in every register. lei and leiName are
// required everywhere except the non-compliant register.
func commonFields(leiRequired bool) []FieldSpec {
	return []FieldSpec{
		{Name: ColumnCompetentAuthority, Field: "competent_authority", Type: FieldText},
		{Name: ColumnHomeMemberState, Field: "home_member_state", Type: FieldCode, Required: true},
		{Name: ColumnLEIName, Field: "lei_name", Type: FieldText, Required: leiRequired},
		{Name: ColumnLEI, Field: "lei", Type: FieldLEI, Required: leiRequired},
		{Name: "ae_lei_cou_code", Field: "lei_cou_code", Type: FieldCode},
	}
}

func caspDescriptor() Descriptor {
	fields := append(commonFields(true),
		FieldSpec{Name: ColumnCommercialName, Field: "commercial_name", Type: FieldText},
		FieldSpec{Name: ColumnAddress, Field: "address", Type: FieldText},
		FieldSpec{Name: ColumnWebsite, Field: "website", Type: FieldURL},
		FieldSpec{Name: "ae_website_platform", Field: "website_platform", Type: FieldURL},
		FieldSpec{Name: ColumnNotificationDate, Field: "authorisation_notification_date", Type: FieldDate},
		FieldSpec{Name: ColumnEndDate, Field: "authorisation_end_date", Type: FieldDate},
		FieldSpec{Name: ColumnServiceCodes, Field: "services", Type: FieldServiceCodes},
		FieldSpec{Name: ColumnServiceCountries, Field: "passport_countries", Type: FieldCountryList},
		FieldSpec{Name: ColumnComments, Field: "comments", Type: FieldText},
		FieldSpec{Name: ColumnLastUpdate, Field: "last_update", Type: FieldDate},
	)
	return Descriptor{
		Type:       CASP,
		Label:      "Crypto-asset service providers",
		Separator:  ",",
		DateLayout: DefaultDateLayout,
		Fields:     fields,
	}
}

func otherDescriptor() Descriptor {
	fields := append(commonFields(true),
		FieldSpec{Name: "ae_lei_name_casp", Field: "lei_name_casp", Type: FieldText},
		FieldSpec{Name: "ae_lei_casp", Field: "lei_casp", Type: FieldCode},
		FieldSpec{Name: "ae_offerCode_cou", Field: "offer_countries", Type: FieldList},
		FieldSpec{Name: "ae_DTI_FFG", Field: "dti_ffg", Type: FieldBool, Bool: BoolYesNo},
		FieldSpec{Name: "ae_DTI", Field: "dti_codes", Type: FieldList},
		FieldSpec{Name: "wp_url", Field: "white_paper_url", Type: FieldURL},
		FieldSpec{Name: "wp_comments", Field: "white_paper_comments", Type: FieldText},
		FieldSpec{Name: "wp_lastupdate", Field: "last_update", Type: FieldDate},
	)
	return Descriptor{
		Type:       Other,
		Label:      "White papers for other crypto-assets",
		Separator:  ",",
		DateLayout: DefaultDateLayout,
		Fields:     fields,
	}
}

func artDescriptor() Descriptor {
	fields := append(commonFields(true),
		FieldSpec{Name: ColumnCommercialName, Field: "commercial_name", Type: FieldText},
		FieldSpec{Name: ColumnAddress, Field: "address", Type: FieldText},
		FieldSpec{Name: ColumnWebsite, Field: "website", Type: FieldURL},
		FieldSpec{Name: ColumnNotificationDate, Field: "authorisation_notification_date", Type: FieldDate},
		FieldSpec{Name: ColumnEndDate, Field: "authorisation_end_date", Type: FieldDate},
		FieldSpec{Name: "ae_credit_institution", Field: "credit_institution", Type: FieldBool, Bool: BoolYesNo},
		FieldSpec{Name: "wp_url", Field: "white_paper_url", Type: FieldURL},
		FieldSpec{Name: "wp_authorisationNotificationDate", Field: "white_paper_notification_date", Type: FieldDate},
		FieldSpec{Name: "wp_url_cou", Field: "white_paper_offer_countries", Type: FieldList},
		FieldSpec{Name: "wp_comments", Field: "white_paper_comments", Type: FieldText},
		FieldSpec{Name: "wp_lastupdate", Field: "last_update", Type: FieldDate},
	)
	return Descriptor{
		Type:       ART,
		Label:      "Asset-referenced token issuers",
		Separator:  ",",
		DateLayout: DefaultDateLayout,
		Fields:     fields,
	}
}

func emtDescriptor() Descriptor {
	fields := append(commonFields(true),
		FieldSpec{Name: ColumnCommercialName, Field: "commercial_name", Type: FieldText},
		FieldSpec{Name: ColumnAddress, Field: "address", Type: FieldText},
		FieldSpec{Name: ColumnWebsite, Field: "website", Type: FieldURL},
		FieldSpec{Name: ColumnNotificationDate, Field: "authorisation_notification_date", Type: FieldDate},
		FieldSpec{Name: ColumnEndDate, Field: "authorisation_end_date", Type: FieldDate},
		FieldSpec{Name: "ae_exemption48_4", Field: "exemption_48_4", Type: FieldBool, Bool: BoolYesNo},
		FieldSpec{Name: "ae_exemption48_5", Field: "exemption_48_5", Type: FieldBool, Bool: BoolYesNo},
		FieldSpec{Name: "ae_authorisation_other_emt", Field: "authorisation_other_emt", Type: FieldText},
		FieldSpec{Name: "ae_DTI_FFG", Field: "dti_ffg", Type: FieldBool, Bool: BoolYesNo},
		FieldSpec{Name: "ae_DTI", Field: "dti_codes", Type: FieldList},
		FieldSpec{Name: "wp_url", Field: "white_paper_url", Type: FieldURL},
		FieldSpec{Name: "wp_authorisationNotificationDate", Field: "white_paper_notification_date", Type: FieldDate},
		FieldSpec{Name: "wp_comments", Field: "white_paper_comments", Type: FieldText},
		FieldSpec{Name: "wp_lastupdate", Field: "last_update", Type: FieldDate},
	)
	return Descriptor{
		Type:       EMT,
		Label:      "E-money token issuers",
		Separator:  ",",
		DateLayout: DefaultDateLayout,
		Fields:     fields,
	}
}

func ncaspDescriptor() Descriptor {
	fields := append(commonFields(false),
		FieldSpec{Name: ColumnCommercialName, Field: "commercial_name", Type: FieldText},
		FieldSpec{Name: ColumnWebsite, Field: "websites", Type: FieldURL},
		FieldSpec{Name: "ae_infrigment", Field: "infringement", Type: FieldBool, Bool: BoolYesNo},
		FieldSpec{Name: "ae_reason", Field: "reason", Type: FieldText},
		FieldSpec{Name: "ae_decision_date", Field: "decision_date", Type: FieldDate},
		FieldSpec{Name: "ae_comments", Field: "comments", Type: FieldText},
		FieldSpec{Name: "ae_lastupdate", Field: "last_update", Type: FieldDate},
	)
	return Descriptor{
		Type:       NCASP,
		Label:      "Non-compliant entities",
		Separator:  ",",
		DateLayout: DefaultDateLayout,
		Fields:     fields,
	}
}
