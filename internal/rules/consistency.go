package rules

import (
	"strconv"
	"strings"

	"github.com/draftbox-io/stampline/internal/domain/record"
	"github.com/draftbox-io/stampline/internal/domain/revision"
)

// Flag reasons recorded as per-field provenance notes.
const (
	ReasonRevisionMismatch = "recorded revision code disagrees with resolved revision"
	ReasonKeyMismatch      = "drawing number not found in document key"
	ReasonSheetMismatch    = "sheet number disagrees with filename digits"
	ReasonEmptyRequired    = "empty value for a field that requires one"
	ReasonValueNotAllowed  = "value not in the allowed set"
	ReasonPatternMismatch  = "value matches no allowed pattern"
)

// CheckRevision compares the recorded revision change code against the
// resolved revision and sets the record's revision status. A purely numeric
// recorded code is not a revision letter context and is skipped.
func CheckRevision(rec *record.Record) {
	andr := strings.ToUpper(strings.TrimSpace(rec.Fields[record.FieldRevisionCode]))
	rev := strings.ToUpper(strings.TrimSpace(rec.FinalRev))

	if revision.IsPureNumber(andr) {
		return
	}

	andrValid := revision.IsValid(andr)
	revValid := revision.IsValid(rev)

	switch {
	case andrValid && revValid && andr != rev,
		andrValid && !revValid,
		revValid && !andrValid:
		rec.RevStatus = record.StatusError
		rec.Flag(record.FieldRevisionCode, ReasonRevisionMismatch)
		rec.Flag(record.ColumnFinalRev, ReasonRevisionMismatch)
	}
}

// checkDrawingNumberInKey flags the drawing number when it is not a
// substring of the canonical document key. Flagging is per-field; the
// record's status is untouched.
func checkDrawingNumberInKey(rec *record.Record) {
	value := strings.TrimSpace(rec.Fields[record.FieldDrawingNumber])
	if rec.Key == "" || value == "" {
		return
	}
	if !strings.Contains(rec.Key, value) {
		rec.Flag(record.FieldDrawingNumber, ReasonKeyMismatch)
	}
}

// zeroSheets are placeholder sheet values the filename check ignores.
var zeroSheets = map[string]struct{}{
	"": {}, "0": {}, "00": {}, "000": {}, "0000": {},
}

// checkSheetAgainstKey flags the sheet number when its integer value differs
// from the trailing digits of the document key. Both sides are compared as
// integers so zero padding never causes a false mismatch.
func checkSheetAgainstKey(rec *record.Record) {
	value := strings.TrimSpace(rec.Fields[record.FieldSheet])
	if _, zero := zeroSheets[value]; zero {
		return
	}
	digits := record.SheetDigits(rec.Key)
	if digits == "" {
		return
	}
	sheet, err := strconv.Atoi(value)
	if err != nil {
		rec.Flag(record.FieldSheet, ReasonSheetMismatch)
		return
	}
	want, err := strconv.Atoi(digits)
	if err != nil {
		return
	}
	if sheet != want {
		rec.Flag(record.FieldSheet, ReasonSheetMismatch)
	}
}
