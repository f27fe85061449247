// Package revision holds the revision-code grammar and the candidate
// arbitration rules used to resolve one authoritative revision out of many
// noisy OCR detections.
package revision

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// validRe is the revision grammar: one letter, optionally ".digit(s)".
var validRe = regexp.MustCompile(`^[A-Z](?:\.\d+)?$`)

// IsValid reports whether the value matches the revision grammar.
func IsValid(v string) bool { return validRe.MatchString(v) }

// IsPureNumber reports whether the value is digits only. A purely numeric
// recorded code is not a revision-letter context and is skipped by the
// consistency check.
func IsPureNumber(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, ch := range v {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// Candidate is a provisional revision detection. It lives only for the
// duration of one region's arbitration.
type Candidate struct {
	Confidence     float64
	Y              float64 // vertical center of the detection
	Value          string
	Date           string // ISO date, "" when none was printed alongside
	FromLabeledRow bool
}

// glyphMap repairs single glyphs the recognizer mistakes for brackets.
var glyphMap = map[string]string{
	"(": "C",
	")": "D",
}

// RepairGlyph maps a bracket misread back onto its letter. Returns the
// trimmed upper-cased token otherwise.
func RepairGlyph(tok string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(tok))
	if r, ok := glyphMap[t]; ok {
		return r, true
	}
	return t, false
}

var (
	labelPhraseRe = regexp.MustCompile(`\bREV[:\-\s]*([A-G])\b`)
	shortTokenRe  = regexp.MustCompile(`^([A-G])(?:\.([1-9]))?$`)

	freeDotRe      = regexp.MustCompile(`\b([A-G])\.(\d)`)
	freeSpaceRe    = regexp.MustCompile(`\b([A-G])\s+(\d)`)
	freeDotOneRe   = regexp.MustCompile(`\b([A-G])\.(I|L|\|)`)
	freeSpaceOneRe = regexp.MustCompile(`\b([A-G])\s+(I|L|\|)`)
)

// FromLabelPhrase extracts the letter of an explicit "REV: X" phrase.
func FromLabelPhrase(text string) (string, bool) {
	m := labelPhraseRe.FindStringSubmatch(strings.ToUpper(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FromShortToken matches a bare "X" or "X.d" token. Callers gate this on the
// rendered token width; long tokens go through FromFreeText instead.
func FromShortToken(tok string) (string, bool) {
	m := shortTokenRe.FindStringSubmatch(tok)
	if m == nil {
		return "", false
	}
	return join(m[1], m[2]), true
}

// FromFreeText finds "letter separator digit" inside longer text, accepting
// comma, slash, backslash, dash and colon as the separator, and I/L/| as a
// misread digit 1.
func FromFreeText(raw string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if upper == "" {
		return "", false
	}
	dotted := strings.NewReplacer(",", ".", "/", ".", "\\", ".", "-", ".", ":", ".").Replace(upper)

	if m := freeDotRe.FindStringSubmatch(dotted); m != nil {
		return m[1] + "." + m[2], true
	}
	if m := freeSpaceRe.FindStringSubmatch(upper); m != nil {
		return m[1] + "." + m[2], true
	}
	if m := freeDotOneRe.FindStringSubmatch(dotted); m != nil {
		return m[1] + ".1", true
	}
	if m := freeSpaceOneRe.FindStringSubmatch(upper); m != nil {
		return m[1] + ".1", true
	}
	return "", false
}

func join(letter, digit string) string {
	if digit == "" {
		return letter
	}
	return letter + "." + digit
}

// IsLabeledRow reports whether the raw text belongs to a row carrying the
// "REV" label. Labeled rows are trusted more during selection.
func IsLabeledRow(raw string) bool {
	return strings.Contains(strings.ToUpper(raw), "REV")
}

var dateRe = regexp.MustCompile(`\b(\d{4}[-/.]\d{2}[-/.]\d{2})\b|\b(\d{2}[-/.]\d{2}[-/.]\d{4})\b`)

// ParseDate extracts a date substring (YYYY-MM-DD or DD-MM-YYYY, with -, /
// or . separators) and returns it in ISO form.
func ParseDate(text string) (string, bool) {
	m := dateRe.FindString(text)
	if m == "" {
		return "", false
	}
	raw := strings.NewReplacer(".", "-", "/", "-").Replace(m)
	for _, layout := range []string{"2006-01-02", "02-01-2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// HasTableStructure buckets candidate vertical positions into row groups
// with the given pixel tolerance and requires the largest group to have at
// least two members. Regions failing the gate do not contain a genuine
// revision table, whatever the candidates' confidence.
func HasTableStructure(cands []Candidate, tolerancePx float64) bool {
	if len(cands) == 0 {
		return false
	}
	ys := make([]float64, len(cands))
	for i, c := range cands {
		ys[i] = c.Y
	}
	sort.Float64s(ys)

	largest, current := 1, 1
	for i := 1; i < len(ys); i++ {
		if ys[i]-ys[i-1] <= tolerancePx {
			current++
		} else {
			current = 1
		}
		if current > largest {
			largest = current
		}
	}
	return largest >= 2
}

/// Select picks the authoritative candidate: the labeled-row subset when it
// is non-empty, otherwise all candidates; within the chosen subset the
// topmost row wins (the top row of a revision table is the most recent).
func Select(all, labeled []Candidate) (Candidate, bool) {
	chosen := labeled
	if len(chosen) == 0 {
		chosen = all
	}
	if len(chosen) == 0 {
		return Candidate{}, false
	}
	sorted := append([]Candidate(nil), chosen...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })
	return sorted[0], true
}
