// Package record defines the per-drawing metadata record and its static
// field schema. A record is created once per source image and mutated in
// place by each pipeline stage.
package record

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUnknownField signals a field name outside the static schema.
	ErrUnknownField = errors.New("unknown field")
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("record not found")
)

// Status marks a record or field as clean or flagged.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// Stamp field names. The order matches the title-block layout and is the
// column order of every stage artifact.
const (
	FieldDrawingNumber   = "RITNINGSNUMMER_PROJEKT"
	FieldTrackSection    = "BANDEL"
	FieldSheet           = "BLAD"
	FieldNextSheet       = "NASTA_BLAD"
	FieldSupplier1       = "LEVERANTOR_1"
	FieldSupplier2       = "LEVERANTOR_2"
	FieldCreatedBy       = "SKAPAD_AV"
	FieldReviewedBy      = "GRANSKAD_AV"
	FieldApprovedBy      = "GODKAND_AV"
	FieldTitle           = "TITLE"
	FieldDescription1    = "BESKRIVNING_ROW_1"
	FieldDescription2    = "BESKRIVNING_ROW_2"
	FieldDescription3    = "BESKRIVNING_ROW_3"
	FieldDescription4    = "BESKRIVNING_ROW_4"
	FieldDate            = "DATUM"
	FieldRevisionCode    = "ANDR"
	FieldTechnicalArea   = "TEKNIKOMRADE"
	FieldReviewStatus    = "GRANSKNINGSSTATUS_SYFTE"
	FieldDocumentType    = "HANDLINGSTYP"
	FieldFacilityType    = "ANLAGGNINGSTYP"
	FieldChangeNote      = "LEVERANS_ANDRINGS_PM"
	FieldDistanceMarker  = "KILOMETER_METER"
	FieldScale           = "SKALA"
	FieldFormat          = "FORMAT"
)

// Pipeline-added columns.
const (
	ColumnImage       = "Image"
	ColumnFinalRev    = "FINAL_REV"
	ColumnRevDate     = "REV_DATE"
	ColumnSheetStatus = "BLAD_STATUS"
	ColumnRevStatus   = "REV_STATUS"
)

// FieldNames is the static schema in column order.
var FieldNames = []string{
	FieldDrawingNumber,
	FieldTrackSection,
	FieldSheet,
	FieldNextSheet,
	FieldSupplier1,
	FieldSupplier2,
	FieldCreatedBy,
	FieldReviewedBy,
	FieldApprovedBy,
	FieldTitle,
	FieldDescription1,
	FieldDescription2,
	FieldDescription3,
	FieldDescription4,
	FieldDate,
	FieldRevisionCode,
	FieldTechnicalArea,
	FieldReviewStatus,
	FieldDocumentType,
	FieldFacilityType,
	FieldChangeNote,
	FieldDistanceMarker,
	FieldScale,
	FieldFormat,
}

var knownFields = func() map[string]struct{} {
	m := make(map[string]struct{}, len(FieldNames))
	for _, f := range FieldNames {
		m[f] = struct{}{}
	}
	return m
}()

// IsKnownField reports whether the name belongs to the static schema.
func IsKnownField(name string) bool {
	_, ok := knownFields[name]
	return ok
}

// Record is one drawing: identity, the field map, pipeline statuses, and
// per-field flags with a provenance note.
type Record struct {
	Image    string
	Key      string
	Fields   map[string]string
	FinalRev string
	RevDate  string

	SheetStatus Status
	RevStatus   Status

	// flags maps field name to the reason it was flagged. The flag set is
	// the authoritative cell-level error state; spreadsheet highlighting is
	// derived from it.
	flags map[string]string
}

// New creates a record for a source image, validating every provided field
// against the static schema. Missing fields are present with empty values.
func New(image string, fields map[string]string) (*Record, error) {
	r := &Record{
		Image:       image,
		Key:         Key(image),
		Fields:      make(map[string]string, len(FieldNames)),
		SheetStatus: StatusOK,
		RevStatus:   StatusOK,
		flags:       make(map[string]string),
	}
	for _, f := range FieldNames {
		r.Fields[f] = ""
	}
	for name, value := range fields {
		if !IsKnownField(name) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		r.Fields[name] = value
	}
	return r, nil
}

// Flag marks a single field as invalid with a reason. Flagging is additive;
// the first reason for a field wins.
func (r *Record) Flag(field, reason string) {
	if r.flags == nil {
		r.flags = make(map[string]string)
	}
	if _, ok := r.flags[field]; !ok {
		r.flags[field] = reason
	}
}

// Flagged reports whether the field carries a flag.
func (r *Record) Flagged(field string) bool {
	_, ok := r.flags[field]
	return ok
}

// FlagReason returns the provenance note for a flagged field.
func (r *Record) FlagReason(field string) string { return r.flags[field] }

// FlaggedFields returns the flagged field names in schema order.
func (r *Record) FlaggedFields() []string {
	out := make([]string, 0, len(r.flags))
	for _, f := range FieldNames {
		if _, ok := r.flags[f]; ok {
			out = append(out, f)
		}
	}
	for _, c := range []string{ColumnFinalRev, ColumnRevStatus} {
		if _, ok := r.flags[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ClearFlags drops all field flags and resets statuses, making re-validation
// idempotent.
func (r *Record) ClearFlags() {
	r.flags = make(map[string]string)
	r.SheetStatus = StatusOK
	r.RevStatus = StatusOK
}

var (
	suffixRe    = regexp.MustCompile(`(?i)(_pdf_stamp|_stamp)?\.(png|pdf)$`)
	pageRe      = regexp.MustCompile(`_p\d+$`)
	sheetTailRe = regexp.MustCompile(`-(\d{2,4})$`)
)

// Key derives the canonical document key from a source filename: crop and
// page suffixes removed, trimmed, upper-cased. Records from independent
// extraction passes join on this key.
func Key(image string) string {
	k := strings.TrimSpace(image)
	k = suffixRe.ReplaceAllString(k, "")
	k = pageRe.ReplaceAllString(k, "")
	return strings.ToUpper(strings.TrimSpace(k))
}

// SheetDigits extracts the trailing sheet-number digits from a document key.
// Returns "" when the key carries no trailing digit group.
func SheetDigits(key string) string {
	m := sheetTailRe.FindStringSubmatch(Key(key))
	if m == nil {
		return ""
	}
	return m[1]
}
