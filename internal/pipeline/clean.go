package pipeline

import (
	"github.com/draftbox-io/stampline/internal/domain/record"
	"github.com/draftbox-io/stampline/internal/normalize"
)

// cleanOne normalizes every field in place and applies the two
// filename-evidence corrections: the drawing number borrows the filename
// spelling when the OCR value is within the edit budget, and a sheet number
// that disagrees with the filename digits marks the sheet status.
func (p *Pipeline) cleanOne(rec *record.Record) {
	for _, name := range record.FieldNames {
		rec.Fields[name] = normalize.Field(name, rec.Fields[name])
	}

	rec.Fields[record.FieldDrawingNumber] = normalize.CorrectDrawingNumber(
		rec.Fields[record.FieldDrawingNumber], rec.Key, p.maxEdit)

	sheet := rec.Fields[record.FieldSheet]
	if imageSheet := record.SheetDigits(rec.Key); imageSheet != "" && sheet != "" {
		if !sameSheetNumber(sheet, imageSheet) {
			rec.SheetStatus = record.StatusError
		}
	}
}

// sameSheetNumber compares two sheet values as integers so zero padding
// does not count as a mismatch. Non-numeric input never matches.
func sameSheetNumber(a, b string) bool {
	ai, aok := parseDigits(a)
	bi, bok := parseDigits(b)
	return aok && bok && ai == bi
}

func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
