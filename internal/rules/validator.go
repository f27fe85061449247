package rules

import (
	"regexp"
	"strings"

	"github.com/draftbox-io/stampline/internal/domain/record"
)

var wsRe = regexp.MustCompile(`\s+`)

// Validator applies the master catalog and the filename cross-checks to a
// record. Enforcement is an allow-list: only fields with curated reference
// data are checked, everything else passes.
type Validator struct {
	catalog      *Catalog
	emptyAllowed map[string]struct{}
}

// NewValidator builds a validator over a loaded catalog. emptyAllowed lists
// the fields a blank value is acceptable for.
func NewValidator(catalog *Catalog, emptyAllowed []string) *Validator {
	allowed := make(map[string]struct{}, len(emptyAllowed))
	for _, f := range emptyAllowed {
		allowed[strings.TrimSpace(f)] = struct{}{}
	}
	return &Validator{catalog: catalog, emptyAllowed: allowed}
}

// Validate flags every field of the record that violates its rule category.
// A record already marked ERROR by the revision consistency check is left
// alone; the first detected inconsistency is signal enough and further flags
// on an invalid record would be noise.
func (v *Validator) Validate(rec *record.Record) {
	if rec.RevStatus == record.StatusError {
		return
	}

	checkDrawingNumberInKey(rec)
	checkSheetAgainstKey(rec)

	for _, name := range record.FieldNames {
		if name == record.FieldRevisionCode {
			continue
		}
		if _, ok := v.catalog.Freetext[name]; ok {
			continue
		}
		value := strings.TrimSpace(rec.Fields[name])

		if set, ok := v.catalog.Value[name]; ok {
			if value == "" {
				if !v.emptyOK(name) {
					rec.Flag(name, ReasonEmptyRequired)
				}
				continue
			}
			if _, member := set[value]; !member {
				rec.Flag(name, ReasonValueNotAllowed)
			}
			continue
		}

		if patterns, ok := v.catalog.Pattern[name]; ok {
			if value == "" {
				if !v.emptyOK(name) {
					rec.Flag(name, ReasonEmptyRequired)
				}
				continue
			}
			compact := wsRe.ReplaceAllString(value, "")
			if !matchAny(patterns, compact) {
				rec.Flag(name, ReasonPatternMismatch)
			}
		}
	}
}

func (v *Validator) emptyOK(name string) bool {
	_, ok := v.emptyAllowed[name]
	return ok
}

func matchAny(patterns []*regexp.Regexp, value string) bool {
	for _, re := range patterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
