package normalize

import (
	"regexp"
	"strings"
)

var (
	leadingIRe     = regexp.MustCompile(`^I([A-ZÅÄÖ])`)
	initialGapRe   = regexp.MustCompile(`\b([A-Z])\s+([A-ZÅÄÖ]{3,})`)
	slashPairRe    = regexp.MustCompile(`([A-ZÅÄÖ])\s*[/|]\s*([A-ZÅÄÖ])`)
	companySigRe   = regexp.MustCompile(`(TYRÉNS)\s+(JEB|JEK|FBE|PHN|MBM|THO)`)
	companyGlueRe  = regexp.MustCompile(`(TYRÉNS)I`)
	letterRe       = regexp.MustCompile(`[A-ZÅÄÖ]`)
	bareSurnameRe  = regexp.MustCompile(`^[A-ZÅÄÖ]{4,}$`)
	initialPairRe  = regexp.MustCompile(`^[A-ZÅÄÖ]\s+[A-ZÅÄÖ]{3,}$`)
)

// dotPerson restores the separator the recognizer drops from "J.SMITH"-style
// signatures: a bare run of four or more letters, or an initial followed by
// a three-plus letter word, gets a dot inserted after the initial.
func dotPerson(name string) string {
	name = strings.TrimSpace(name)
	if strings.Contains(name, ".") {
		return name
	}
	if len(letterRe.FindAllString(name, -1)) <= 3 {
		return name
	}
	if bareSurnameRe.MatchString(name) {
		r := []rune(name)
		return string(r[0]) + "." + string(r[1:])
	}
	if initialPairRe.MatchString(name) {
		parts := strings.Fields(name)
		return parts[0] + "." + parts[1]
	}
	return name
}

// Person cleans a person/organization compound field: leading OCR artifacts
// stripped, separator variants normalized onto "/", and the organization
// alias step applied to each component independently.
func Person(s string) string {
	t := strings.ToUpper(Text(s))

	t = leadingIRe.ReplaceAllString(t, "$1")
	t = leadingJunkRe.ReplaceAllString(t, "")
	t = initialGapRe.ReplaceAllString(t, "$1.$2")

	t = strings.ReplaceAll(t, ",", " / ")

	t = slashPairRe.ReplaceAllString(t, "$1 / $2")
	t = companySigRe.ReplaceAllString(t, "$1 / $2")
	t = companyGlueRe.ReplaceAllString(t, "$1 / ")

	var cleaned []string
	for _, p := range strings.Split(t, "/") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if c := Company(p); isCanonicalCompany(c) {
			cleaned = append(cleaned, c)
		} else {
			cleaned = append(cleaned, dotPerson(p))
		}
	}
	return strings.Join(cleaned, " / ")
}
