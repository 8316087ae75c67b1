package textfix

// commercialNames maps known mangled trading names to their brand spelling.
var commercialNames = map[string]string{
	"e Toro": "eToro",
}

// NormalizeCommercialName applies the known brand spellings.
func NormalizeCommercialName(name string) string {
	if fixed, ok := commercialNames[name]; ok {
		return fixed
	}
	return name
}
