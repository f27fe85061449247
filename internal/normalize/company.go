package normalize

import (
	"regexp"
	"strings"
)

// companyAlias maps a canonical organization name to the OCR-garbled
// variants seen for it. Variants are matched as substrings after whitespace
// removal, so "T.YRÉNS" and "T YRÉNS" both land on TYRÉNS.
type companyAlias struct {
	Canonical string
	Variants  []string
}

var companyAliases = []companyAlias{
	{"TYRÉNS", []string{"TYRÉNS", "TYRENS", "YRENS", "T.YRÉNS", "T YRÉNS"}},
	{"ÅF INFRASTRUCTURE AB", []string{"ÅF INFRASTRUCTURE AB", "AF INFRASTRUCTURE AB", "ÄF INFRASTRUCTURE AB"}},
	{"SWECO", []string{"SWECO", "SWECO CIVIL AB"}},
	{"NCC", []string{"NCC", "NCO"}},
	{"BERGAB", []string{"BERGAB"}},
	{"NORCONSULT", []string{"NORCONSULT"}},
	{"TRAFIKVERKET", []string{"TRAFIKVERKET"}},
	{"AMBERG", []string{"AMBERG"}},
}

// CompanyAliases exposes the alias table for closure tests.
func CompanyAliases() map[string][]string {
	m := make(map[string][]string, len(companyAliases))
	for _, a := range companyAliases {
		m[a.Canonical] = append([]string(nil), a.Variants...)
	}
	return m
}

// Company folds an organization name onto its canonical spelling via the
// alias table. Unmatched text is returned upper-cased, unchanged.
func Company(s string) string {
	t := strings.ToUpper(Text(s))
	compact := strings.ReplaceAll(t, " ", "")
	for _, a := range companyAliases {
		for _, v := range a.Variants {
			if strings.Contains(compact, strings.ReplaceAll(v, " ", "")) {
				return a.Canonical
			}
		}
	}
	return t
}

func isCanonicalCompany(s string) bool {
	for _, a := range companyAliases {
		if s == a.Canonical {
			return true
		}
	}
	return false
}

var (
	supplierLabelRe = regexp.MustCompile(`^(LEVERANTÖR|LEVERANTOR|VERANTOR|EVERANTOR)\s*`)
	leadingJunkRe   = regexp.MustCompile(`^[^A-ZÅÄÖ]+`)
)

// Supplier1 repairs OCR damage where the field label bleeds into the value
// ("LEVERANTOR TYRENS"), then applies the alias table.
func Supplier1(s string) string {
	t := strings.ToUpper(Text(s))
	t = supplierLabelRe.ReplaceAllString(t, "")
	return Company(t)
}

// Supplier2 strips leading non-letter artifacts, then applies the alias table.
func Supplier2(s string) string {
	t := strings.ToUpper(Text(s))
	t = leadingJunkRe.ReplaceAllString(t, "")
	return Company(t)
}
