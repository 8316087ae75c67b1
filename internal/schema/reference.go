package schema

import "sort"

// ServiceDescriptions maps MiCA Article 3(1)(16) service codes to their
// canonical descriptions.
var ServiceDescriptions = map[string]string{
	"a": "providing custody and administration of crypto-assets on behalf of clients",
	"b": "operation of a trading platform for crypto-assets",
	"c": "exchange of crypto-assets for funds",
	"d": "exchange of crypto-assets for other crypto-assets",
	"e": "execution of orders for crypto-assets on behalf of clients",
	"f": "placing of crypto-assets",
	"g": "reception and transmission of orders for crypto-assets on behalf of clients",
	"h": "providing advice on crypto-assets",
	"i": "providing portfolio management on crypto-assets",
	"j": "providing transfer services for crypto-assets on behalf of clients",
}

// CountryNames covers the EEA plus the ESMA alias EL for Greece.
var CountryNames = map[string]string{
	"AT": "Austria",
	"BE": "Belgium",
	"BG": "Bulgaria",
	"CY": "Cyprus",
	"CZ": "Czechia",
	"DE": "Germany",
	"DK": "Denmark",
	"EE": "Estonia",
	"EL": "Greece",
	"ES": "Spain",
	"FI": "Finland",
	"FR": "France",
	"GR": "Greece",
	"HR": "Croatia",
	"HU": "Hungary",
	"IE": "Ireland",
	"IS": "Iceland",
	"IT": "Italy",
	"LI": "Liechtenstein",
	"LT": "Lithuania",
	"LU": "Luxembourg",
	"LV": "Latvia",
	"MT": "Malta",
	"NL": "Netherlands",
	"NO": "Norway",
	"PL": "Poland",
	"PT": "Portugal",
	"RO": "Romania",
	"SE": "Sweden",
	"SI": "Slovenia",
	"SK": "Slovakia",
}

// extraCountryCodes are accepted in registers but have no EEA name entry.
var extraCountryCodes = []string{"GB", "UK", "CH"}

var countryCodes = func() map[string]bool {
	m := make(map[string]bool, len(CountryNames)+len(extraCountryCodes))
	for code := range CountryNames {
		m[code] = true
	}
	for _, code := range extraCountryCodes {
		m[code] = true
	}
	return m
}()

// IsCountryCode reports whether code is in the static country allow-list.
// The check is case-sensitive; callers upper-case first.
func IsCountryCode(code string) bool {
	return countryCodes[code]
}

// CountryCodes returns the allow-list sorted.
func CountryCodes() []string {
	codes := make([]string, 0, len(countryCodes))
	for c := range countryCodes {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
