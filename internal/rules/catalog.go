// Package rules validates normalized records: cross-field revision
// consistency, filename cross-checks, and the master rule catalog of
// allowed values and patterns.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrCatalogMissing signals that the master rule workbook cannot be read.
// The catalog is reference data the run cannot proceed without.
var ErrCatalogMissing = errors.New("rule catalog missing")

// Sheet names in the master workbook.
const (
	sheetValue    = "VALUE"
	sheetPattern  = "PATTERN"
	sheetFreetext = "FREETEXT"
)

// Catalog holds the three rule collections keyed by field name. A field
// belongs to at most one collection; fields in none are left unchecked.
type Catalog struct {
	Value    map[string]map[string]struct{}
	Pattern  map[string][]*regexp.Regexp
	Freetext map[string]struct{}
}

// HasField reports whether any collection covers the field.
func (c *Catalog) HasField(name string) bool {
	if _, ok := c.Value[name]; ok {
		return true
	}
	if _, ok := c.Pattern[name]; ok {
		return true
	}
	_, ok := c.Freetext[name]
	return ok
}

// LoadCatalog reads the master workbook. Each sheet carries LABEL and VALUE
// columns; FREETEXT only needs LABEL. Patterns compile at load time so a bad
// regex fails the run, not a record.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogMissing, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrCatalogMissing, path, err)
	}
	defer f.Close()

	valueRows, err := sheetPairs(f, sheetValue)
	if err != nil {
		return nil, err
	}
	patternRows, err := sheetPairs(f, sheetPattern)
	if err != nil {
		return nil, err
	}
	freetextRows, err := sheetPairs(f, sheetFreetext)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{
		Value:    make(map[string]map[string]struct{}),
		Pattern:  make(map[string][]*regexp.Regexp),
		Freetext: make(map[string]struct{}),
	}
	for _, p := range valueRows {
		set, ok := cat.Value[p.label]
		if !ok {
			set = make(map[string]struct{})
			cat.Value[p.label] = set
		}
		set[p.value] = struct{}{}
	}
	for _, p := range patternRows {
		if p.value == "" {
			continue
		}
		re, err := regexp.Compile(wholeMatch(p.value))
		if err != nil {
			return nil, fmt.Errorf("pattern rule for %s: %w", p.label, err)
		}
		cat.Pattern[p.label] = append(cat.Pattern[p.label], re)
	}
	for _, p := range freetextRows {
		cat.Freetext[p.label] = struct{}{}
	}

	if err := cat.checkDisjoint(); err != nil {
		return nil, err
	}
	return cat, nil
}

func (c *Catalog) checkDisjoint() error {
	for label := range c.Value {
		if _, ok := c.Pattern[label]; ok {
			return fmt.Errorf("field %s appears in both VALUE and PATTERN", label)
		}
		if _, ok := c.Freetext[label]; ok {
			return fmt.Errorf("field %s appears in both VALUE and FREETEXT", label)
		}
	}
	for label := range c.Pattern {
		if _, ok := c.Freetext[label]; ok {
			return fmt.Errorf("field %s appears in both PATTERN and FREETEXT", label)
		}
	}
	return nil
}

type labelValue struct {
	label string
	value string
}

// sheetPairs reads the LABEL/VALUE columns of one sheet, skipping the header
// row and rows with an empty label.
func sheetPairs(f *excelize.File, sheet string) ([]labelValue, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %s: %v", ErrCatalogMissing, sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	labelCol, valueCol := -1, -1
	for i, h := range rows[0] {
		switch strings.TrimSpace(strings.ToUpper(h)) {
		case "LABEL":
			labelCol = i
		case "VALUE":
			valueCol = i
		}
	}
	if labelCol < 0 {
		return nil, fmt.Errorf("%w: sheet %s has no LABEL column", ErrCatalogMissing, sheet)
	}

	out := make([]labelValue, 0, len(rows)-1)
	for _, row := range rows[1:] {
		p := labelValue{label: cellAt(row, labelCol), value: cellAt(row, valueCol)}
		if p.label == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// wholeMatch anchors a pattern so it must cover the entire value.
func wholeMatch(pat string) string {
	return "^(?:" + pat + ")$"
}
