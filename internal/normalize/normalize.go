// Package normalize turns ragged OCR strings into canonical field values.
// Every cleaner is a pure function: best-effort output, never an error.
// Irrecoverable values are passed through for the validator to judge.
package normalize

import (
	"regexp"
	"strings"

	"github.com/draftbox-io/stampline/internal/domain/record"
)

var wsRe = regexp.MustCompile(`\s+`)

// Text collapses newlines and runs of whitespace and trims the result. It is
// the fallback cleaner for fields without a dedicated one.
func Text(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = wsRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var (
	symbolRe      = regexp.MustCompile(`[^A-ZÅÄÖ0-9\s]`)
	symbolSlashRe = regexp.MustCompile(`[^A-ZÅÄÖ0-9\s/]`)
)

// RemoveSymbols uppercases and strips everything outside letters, digits and
// whitespace. keepSlash preserves "/" separators (description row 4 carries
// them legitimately).
func RemoveSymbols(s string, keepSlash bool) string {
	t := strings.ToUpper(Text(s))
	if keepSlash {
		t = symbolSlashRe.ReplaceAllString(t, " ")
	} else {
		t = symbolRe.ReplaceAllString(t, " ")
	}
	return strings.TrimSpace(wsRe.ReplaceAllString(t, " "))
}

// Func is a single-field cleaner.
type Func func(string) string

// cleaners maps field names to their dedicated cleaner. Fields outside the
// map fall back to Text.
var cleaners = map[string]Func{
	record.FieldDrawingNumber:  DrawingNumber,
	record.FieldSupplier1:      Supplier1,
	record.FieldSupplier2:      Supplier2,
	record.FieldCreatedBy:      Person,
	record.FieldReviewedBy:     Person,
	record.FieldApprovedBy:     Person,
	record.FieldTitle:          Title,
	record.FieldRevisionCode:   RevisionChange,
	record.FieldTechnicalArea:  TechnicalArea,
	record.FieldReviewStatus:   ReviewStatus,
	record.FieldDocumentType:   upperText,
	record.FieldFacilityType:   upperText,
	record.FieldChangeNote:     ChangeNote,
	record.FieldDistanceMarker: DistanceMarker,
	record.FieldSheet:          Sheet,
	record.FieldScale:          Scale,
	record.FieldFormat:         Format,
	record.FieldDescription1:   descriptionRow,
	record.FieldDescription2:   descriptionRow,
	record.FieldDescription3:   descriptionRow,
	record.FieldDescription4:   descriptionRowSlash,
}

func upperText(s string) string           { return strings.ToUpper(Text(s)) }
func descriptionRow(s string) string      { return RemoveSymbols(s, false) }
func descriptionRowSlash(s string) string { return RemoveSymbols(s, true) }

// Field normalizes a raw OCR value for the named field using its dedicated
// cleaner, falling back to whitespace collapsing for unmapped fields.
func Field(name, raw string) string {
	if fn, ok := cleaners[name]; ok {
		return fn(raw)
	}
	return Text(raw)
}
