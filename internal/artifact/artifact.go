// Package artifact reads and writes the spreadsheet files handed between
// pipeline stages. Each stage overwrites its output in full; a rerun from
// the same input produces the same file.
package artifact

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/draftbox-io/stampline/internal/domain/record"
)

const dataSheet = "Sheet1"

// redFill is the highlight applied to flagged cells. The flag set on the
// record is authoritative; the fill is presentation.
var redFill = excelize.Style{
	Fill: excelize.Fill{Type: "pattern", Color: []string{"FFFF0000"}, Pattern: 1},
}

// Columns returns the artifact column order: identity, the field schema,
// then the pipeline-added columns.
func Columns() []string {
	cols := make([]string, 0, len(record.FieldNames)+5)
	cols = append(cols, record.ColumnImage)
	cols = append(cols, record.FieldNames...)
	cols = append(cols,
		record.ColumnFinalRev,
		record.ColumnRevDate,
		record.ColumnSheetStatus,
		record.ColumnRevStatus,
	)
	return cols
}

// WriteRecords writes the batch to an xlsx workbook, highlighting flagged
// cells. The file is written to a temporary sibling and renamed into place
// so a crash mid-write never leaves a torn artifact.
func WriteRecords(path string, recs []*record.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	styleID, err := f.NewStyle(&redFill)
	if err != nil {
		return fmt.Errorf("create highlight style: %w", err)
	}

	cols := Columns()
	if err := setRow(f, 1, cols); err != nil {
		return err
	}
	for i, rec := range recs {
		rowIdx := i + 2
		if err := setRow(f, rowIdx, recordRow(rec, cols)); err != nil {
			return err
		}
		for colIdx, name := range cols {
			if !highlighted(rec, name) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellStyle(dataSheet, cell, cell, styleID); err != nil {
				return fmt.Errorf("highlight %s: %w", cell, err)
			}
		}
	}

	tmp := path + ".tmp"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace artifact %s: %w", path, err)
	}
	return nil
}

// highlighted reports whether the record's cell in the named column should
// carry the red fill. A revision inconsistency paints both revision cells.
func highlighted(rec *record.Record, column string) bool {
	switch column {
	case record.ColumnImage, record.ColumnRevDate,
		record.ColumnSheetStatus, record.ColumnRevStatus:
		return false
	case record.FieldRevisionCode, record.ColumnFinalRev:
		return rec.RevStatus == record.StatusError || rec.Flagged(column)
	default:
		return rec.Flagged(column)
	}
}

func recordRow(rec *record.Record, cols []string) []string {
	row := make([]string, len(cols))
	for i, name := range cols {
		switch name {
		case record.ColumnImage:
			row[i] = rec.Image
		case record.ColumnFinalRev:
			row[i] = rec.FinalRev
		case record.ColumnRevDate:
			row[i] = rec.RevDate
		case record.ColumnSheetStatus:
			row[i] = string(rec.SheetStatus)
		case record.ColumnRevStatus:
			row[i] = string(rec.RevStatus)
		default:
			row[i] = rec.Fields[name]
		}
	}
	return row
}

func setRow(f *excelize.File, rowIdx int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(dataSheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", rowIdx, err)
	}
	return nil
}

// ReadRecords loads a previously written artifact. Unknown columns are
// ignored so hand-edited workbooks with extra columns still load.
func ReadRecords(path string) ([]*record.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		header[strings.TrimSpace(h)] = i
	}
	if _, ok := header[record.ColumnImage]; !ok {
		return nil, fmt.Errorf("artifact %s has no %s column", path, record.ColumnImage)
	}

	out := make([]*record.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		at := func(name string) string {
			i, ok := header[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		image := at(record.ColumnImage)
		if image == "" {
			continue
		}
		fields := make(map[string]string, len(record.FieldNames))
		for _, name := range record.FieldNames {
			fields[name] = at(name)
		}
		rec, err := record.New(image, fields)
		if err != nil {
			return nil, err
		}
		rec.FinalRev = at(record.ColumnFinalRev)
		rec.RevDate = at(record.ColumnRevDate)
		if at(record.ColumnSheetStatus) == string(record.StatusError) {
			rec.SheetStatus = record.StatusError
		}
		if at(record.ColumnRevStatus) == string(record.StatusError) {
			rec.RevStatus = record.StatusError
		}
		out = append(out, rec)
	}
	return out, nil
}
