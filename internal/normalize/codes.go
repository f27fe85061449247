package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// TITLE / TEKNIKOMRADE / GRANSKNINGSSTATUS / LEVERANS_ANDRINGS_PM
// ---------------------------------------------------------------------------

var nonLetterRe = regexp.MustCompile(`[^A-ZÅÄÖ]`)

// Title repairs the project-name spelling the recognizer loses the umlauts
// of, and strips leading artifacts.
func Title(s string) string {
	t := strings.ToUpper(Text(s))
	t = strings.ReplaceAll(t, "VASTLANKEN", "VÄSTLÄNKEN")
	t = strings.ReplaceAll(t, "VÄSTLANKEN", "VÄSTLÄNKEN")
	return leadingJunkRe.ReplaceAllString(t, "")
}

// TechnicalArea keeps letters only.
func TechnicalArea(s string) string {
	return nonLetterRe.ReplaceAllString(strings.ToUpper(Text(s)), "")
}

// ReviewStatus folds the value onto one of the known review statuses,
// tolerating dropped diacritics and fused words.
func ReviewStatus(s string) string {
	t := strings.ToUpper(Text(s))
	folded := strings.NewReplacer("Ä", "A", "Å", "A", "Ö", "O").Replace(t)
	compact := wsRe.ReplaceAllString(folded, "")

	switch {
	case strings.Contains(compact, "GODKAND"):
		return "GODKÄND"
	case strings.Contains(compact, "FORGRANSKNING"):
		return "FÖR GRANSKNING"
	case strings.Contains(compact, "FORFRAGNING"):
		return "FÖRFRÅGNINGSUNDERLAG"
	}
	return t
}

// ChangeNote keeps a change-memo reference only when it carries enough
// signal: more than four characters and at least one digit.
func ChangeNote(s string) string {
	t := strings.ToUpper(Text(s))
	if t == "" || len([]rune(t)) <= 4 {
		return ""
	}
	if !strings.ContainsFunc(t, unicode.IsDigit) {
		return ""
	}
	return t
}

// ---------------------------------------------------------------------------
// KILOMETER_METER
// ---------------------------------------------------------------------------

var (
	kmPrefixRe    = regexp.MustCompile(`^\s*([~≈])\s*`)
	kmBrokenSepRe = regexp.MustCompile(`(\d{3})\s+4\s+(\d{3})`)
	kmPairRe      = regexp.MustCompile(`(\d{1,4})\s*([+/])?\s*(\d{1,3}(?:[.,]\d+)?)`)
)

func trimKilometer(km string) string {
	if len(km) > 3 {
		km = km[len(km)-3:]
	}
	km = strings.TrimLeft(km, "0")
	if km == "" {
		return "0"
	}
	return km
}

// DistanceMarker canonicalizes a railway kilometer+meter marker. A broken
// "+" read as the digit 4 between two 3-digit groups is rejoined, the
// kilometer part is trimmed to its last three digits, and a second marker is
// appended with " - ". No match returns the cleaned original.
func DistanceMarker(s string) string {
	original := Text(s)

	prefix := ""
	if m := kmPrefixRe.FindStringSubmatch(s); m != nil {
		prefix = m[1]
	}

	t := kmBrokenSepRe.ReplaceAllString(original, "$1+$2")

	matches := kmPairRe.FindAllStringSubmatch(t, 2)
	if matches == nil {
		return strings.ToUpper(prefix + original)
	}

	sep := "+"
	if strings.Contains(t, "/") {
		sep = "/"
	}

	values := make([]string, 0, 2)
	for _, m := range matches {
		meter := strings.ReplaceAll(m[3], ",", ".")
		values = append(values, trimKilometer(m[1])+sep+meter)
	}

	if len(values) == 1 {
		return prefix + values[0]
	}
	return prefix + values[0] + " - " + values[1]
}

// ---------------------------------------------------------------------------
// SKALA
// ---------------------------------------------------------------------------

var (
	trailingColonRe = regexp.MustCompile(`:+$`)
	fusedScaleRe    = regexp.MustCompile(`^1:(\d{2,4})(\d{2,4})$`)
	longRunScaleRe  = regexp.MustCompile(`^1:?(\d{5,8})$`)
	ratioRe         = regexp.MustCompile(`^1:\d+$`)
	bareDigitsRe    = regexp.MustCompile(`^\d{2,5}$`)
	scaleSplitRe    = regexp.MustCompile(`[\s/]+`)
)

func normalizeSingleScale(val string) string {
	val = strings.TrimSpace(val)
	val = strings.ReplaceAll(val, "-", ":")
	val = strings.ReplaceAll(val, ".", ":")
	val = trailingColonRe.ReplaceAllString(val, "")

	// Two ratios fused into one token: 1:1001500.
	if m := fusedScaleRe.FindStringSubmatch(val); m != nil {
		return "1:" + m[1] + " / 1:" + m[2]
	}

	// OCR-fused digit run: bisect into two ratios.
	if m := longRunScaleRe.FindStringSubmatch(val); m != nil {
		digits := m[1]
		if len(digits) >= 6 {
			half := len(digits) / 2
			return "1:" + digits[:half] + " / 1:" + digits[half:]
		}
	}

	if ratioRe.MatchString(val) {
		return val
	}

	if bareDigitsRe.MatchString(val) {
		if len(val) == 4 && strings.HasPrefix(val, "1") {
			val = val[1:]
		}
		if len(val) == 5 {
			val = val[:len(val)-1]
		}
		return "1:" + val
	}

	return val
}

// Scale canonicalizes a scale field into one or more "1:N" ratios joined
// with " / ", de-duplicated preserving first-seen order.
func Scale(s string) string {
	t := Text(s)
	t = strings.NewReplacer(",", " / ", ";", " / ", "\\", " / ").Replace(t)

	seen := make(map[string]struct{})
	var cleaned []string
	for _, p := range scaleSplitRe.Split(t, -1) {
		if strings.TrimSpace(p) == "" {
			continue
		}
		c := normalizeSingleScale(p)
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cleaned = append(cleaned, c)
	}
	return strings.Join(cleaned, " / ")
}

// ---------------------------------------------------------------------------
// FORMAT
// ---------------------------------------------------------------------------

var (
	formatAIRe   = regexp.MustCompile(`^A[I|L]$`)
	formatFourRe = regexp.MustCompile(`^4(\d)`)
	nonAlnumRe   = regexp.MustCompile(`[^A-Z0-9]`)
)

// Format repairs the classic A1/AI confusion and strips stray symbols.
func Format(s string) string {
	t := strings.ToUpper(Text(s))
	if t == "AI" {
		return "A1"
	}
	t = formatAIRe.ReplaceAllString(t, "A1")
	t = formatFourRe.ReplaceAllString(t, "A$1")
	return nonAlnumRe.ReplaceAllString(t, "")
}

// ---------------------------------------------------------------------------
// BLAD
// ---------------------------------------------------------------------------

// Sheet strips OCR artifacts from a sheet number with targeted character
// substitutions and keeps digits only. Length is not enforced here; the
// validator judges out-of-range values.
func Sheet(s string) string {
	v := strings.NewReplacer(
		"O", "0", "I", "1", "l", "1",
		".", "", ",", "", " ", "",
	).Replace(strings.TrimSpace(s))

	var b strings.Builder
	for _, ch := range v {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// ANDR
// ---------------------------------------------------------------------------

// NoRevision is the sentinel for "no revision-change code present".
const NoRevision = "_"

var (
	revFullRe    = regexp.MustCompile(`^[A-Z]\.\d+$`)
	revFusedRe   = regexp.MustCompile(`^4(\d)$`)
	revLetterRe  = regexp.MustCompile(`^[A-Z]$`)
	startsAlpha  = regexp.MustCompile(`^[A-Z]`)
)

// RevisionChange canonicalizes the recorded revision-change code to a single
// letter optionally followed by ".digit". A fused "4<digit>" reading is the
// letter A with that digit; a stray 4 alone is A. Anything unusable
// collapses to the sentinel.
func RevisionChange(s string) string {
	t := strings.ToUpper(Text(s))
	if t == "" {
		return NoRevision
	}
	if revFullRe.MatchString(t) {
		return t
	}

	compact := nonAlnumRe.ReplaceAllString(t, "")

	if m := revFusedRe.FindStringSubmatch(compact); m != nil {
		return "A." + m[1]
	}
	if strings.Contains(compact, "4") {
		return "A"
	}
	if strings.Contains(compact, "1") && !startsAlpha.MatchString(compact) {
		return NoRevision + ".1"
	}
	if strings.Contains(compact, "2") && !startsAlpha.MatchString(compact) {
		return NoRevision + ".2"
	}
	if revLetterRe.MatchString(compact) {
		return compact
	}
	return NoRevision
}

// ---------------------------------------------------------------------------
// RITNINGSNUMMER_PROJEKT
// ---------------------------------------------------------------------------

var (
	rnpSectionRe   = regexp.MustCompile(`BBP[0OQ]S`)
	rnpDigitSRe    = regexp.MustCompile(`(\d)S(\d)`)
	rnpLeadRe      = regexp.MustCompile("^[IJ1|/\\\\`']+([A-Z0-9])")
	rnpLabelRe     = regexp.MustCompile(`RITNINGSNUMMER[_\s-]*PR[0O]JEKT`)
	rnpLeadJunkRe  = regexp.MustCompile(`^[^A-Z0-9]+`)
	rnpZeroGapRe   = regexp.MustCompile(`0\s+0`)
	rnpTrailJunkRe = regexp.MustCompile("[/'`]+$")
	rnpDashRe      = regexp.MustCompile(`\s*-\s*`)
	rnpFullRe      = regexp.MustCompile(`\b([A-Z0-9]+-\d{2}-\d{3}-\d{4}-0_0-[A-Z0-9]+)\b`)
)

// DrawingNumber repairs digit/letter confusions in the project drawing
// number and normalizes the multi-part code layout
// SEGMENT-NN-NNN-NNNN-0_0-TAIL. When the structured pattern is absent the
// cleaned string is returned unmodified; filename evidence corrects it later.
func DrawingNumber(s string) string {
	t := strings.ToUpper(strings.TrimSpace(s))

	t = strings.NewReplacer("O", "0", "Q", "0").Replace(t)
	t = rnpSectionRe.ReplaceAllString(t, "BBP05")
	for {
		next := rnpDigitSRe.ReplaceAllString(t, "${1}5${2}")
		if next == t {
			break
		}
		t = next
	}
	t = rnpLeadRe.ReplaceAllString(t, "$1")

	t = rnpLabelRe.ReplaceAllString(t, " ")
	t = rnpLeadJunkRe.ReplaceAllString(t, "")

	t = strings.ReplaceAll(t, "BBPO5", "BBP05")
	t = strings.ReplaceAll(t, "BBPOS", "BBP05")
	t = strings.ReplaceAll(t, "IBBPO5", "BBP05")

	t = rnpZeroGapRe.ReplaceAllString(t, "0_0")
	t = strings.ReplaceAll(t, "-00-", "-0_0-")

	t = rnpTrailJunkRe.ReplaceAllString(t, "")
	t = rnpDashRe.ReplaceAllString(t, "-")
	t = wsRe.ReplaceAllString(t, "")

	m := rnpFullRe.FindStringSubmatch(t)
	if m == nil {
		return t
	}
	full := m[1]

	i := strings.LastIndex(full, "-0_0-")
	base, tail := full[:i], full[i+len("-0_0-"):]

	tail = strings.ReplaceAll(tail, "M", "1")
	if len(tail) > 4 {
		tail = tail[:4]
	}
	if len(tail) < 3 {
		return base
	}
	return base + "-0_0-" + tail
}

// CorrectDrawingNumber accepts the filename-derived value over the OCR value
// when the two are the same length and differ in at most budget character
// positions. The budget defaults to 1 (single-character repair); it is
// configurable rather than hard-coded.
func CorrectDrawingNumber(ocrVal, imageVal string, budget int) string {
	o := strings.ToUpper(strings.TrimSpace(ocrVal))
	e := strings.ToUpper(strings.TrimSpace(imageVal))
	if o == "" || e == "" {
		return o
	}
	or, er := []rune(o), []rune(e)
	if len(or) != len(er) {
		return o
	}
	diff := 0
	for i := range or {
		if or[i] != er[i] {
			diff++
		}
	}
	if diff > 0 && diff <= budget {
		return e
	}
	return o
}
