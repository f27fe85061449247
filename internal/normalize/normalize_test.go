package normalize

import (
	"strings"
	"testing"

	"github.com/draftbox-io/stampline/internal/domain/record"
)

func TestText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a\nb  ", "a b"},
		{"a   b\t c", "a b c"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Text(tt.in); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompany_AliasClosure(t *testing.T) {
	for canon, variants := range CompanyAliases() {
		for _, v := range variants {
			if got := Company(v); got != canon {
				t.Errorf("Company(%q) = %q, want %q", v, got, canon)
			}
		}
	}
}

func TestCompany_Unmatched(t *testing.T) {
	if got := Company("some firm"); got != "SOME FIRM" {
		t.Errorf("Company = %q, want upper-cased passthrough", got)
	}
}

func TestSupplier1_LabelDamage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LEVERANTOR TYRENS", "TYRÉNS"},
		{"EVERANTOR SWECO", "SWECO"},
		{"NCO", "NCC"},
	}
	for _, tt := range tests {
		if got := Supplier1(tt.in); got != tt.want {
			t.Errorf("Supplier1(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPerson(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dot restored on bare run", "JSMITH", "J.SMITH"},
		{"dot restored on initial pair", "J SMITH", "J.SMITH"},
		{"short token untouched", "JEB", "JEB"},
		{"existing dot untouched", "J.SMITH", "J.SMITH"},
		{"comma separates components", "J.SMITH,TYRENS", "J.SMITH / TYRÉNS"},
		{"company alias per component", "JSMITH/SWECO CIVIL AB", "J.SMITH / SWECO"},
		{"leading artifact stripped", "|J.SMITH", "J.SMITH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Person(tt.in); got != tt.want {
				t.Errorf("Person(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"canonical unchanged", "1:100", "1:100"},
		{"two canonical unchanged", "1:100 / 1:200", "1:100 / 1:200"},
		{"bare digits padded", "500", "1:500"},
		{"fused colon pair split", "1:1001500", "1:1001 / 1:500"},
		{"fused digit run bisected", "1100200", "1:100 / 1:200"},
		{"duplicates dropped", "1:50, 1:50", "1:50"},
		{"trailing colon stripped", "1:100:", "1:100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Scale(tt.in); got != tt.want {
				t.Errorf("Scale(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScale_FusionProperty(t *testing.T) {
	got := Scale("1100200")
	parts := strings.Split(got, " / ")
	if len(parts) != 2 {
		t.Fatalf("Scale(1100200) = %q, want two ratios", got)
	}
	for _, p := range parts {
		if !strings.HasPrefix(p, "1:") {
			t.Errorf("ratio %q missing 1: prefix", p)
		}
	}
}

func TestDistanceMarker(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"broken plus repaired", "123 4 456", "123+456"},
		{"kilometer trimmed to last 3", "0123+456", "123+456"},
		{"leading zeros stripped", "012+5", "12+5"},
		{"all zeros default", "000+5", "0+5"},
		{"decimal comma", "123+45,6", "123+45.6"},
		{"two markers joined", "123+456 124+100", "123+456 - 124+100"},
		{"tilde kept", "~123+456", "~123+456"},
		{"no match passthrough", "unreadable", "UNREADABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DistanceMarker(tt.in); got != tt.want {
				t.Errorf("DistanceMarker(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRevisionChange(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"41", "A.1"},
		{"", "_"},
		{"B", "B"},
		{"A.2", "A.2"},
		{"4", "A"},
		{"1", "_.1"},
		{"2", "_.2"},
		{"??", "_"},
	}
	for _, tt := range tests {
		if got := RevisionChange(tt.in); got != tt.want {
			t.Errorf("RevisionChange(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSheet(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"O12", "012"},
		{"I2", "12"},
		{"0.1,2", "012"},
		{"12345", "12345"}, // length not enforced here
		{"abc", ""},
	}
	for _, tt := range tests {
		if got := Sheet(tt.in); got != tt.want {
			t.Errorf("Sheet(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AI", "A1"},
		{"AL", "A1"},
		{"41", "A1"},
		{"A3", "A3"},
		{"A-1", "A1"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReviewStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GODKAND", "GODKÄND"},
		{"FOR GRANSKNING", "FÖR GRANSKNING"},
		{"FORFRAGNINGSUNDERLAG", "FÖRFRÅGNINGSUNDERLAG"},
		{"something else", "SOMETHING ELSE"},
	}
	for _, tt := range tests {
		if got := ReviewStatus(tt.in); got != tt.want {
			t.Errorf("ReviewStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChangeNote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PM 1234", "PM 1234"},
		{"PM1", ""},        // too short
		{"NO DIGITS", ""},  // no numeric signal
		{"", ""},
	}
	for _, tt := range tests {
		if got := ChangeNote(tt.in); got != tt.want {
			t.Errorf("ChangeNote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDrawingNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"canonical unchanged", "E45-12-034-0099-0_0-AB12", "E45-12-034-0099-0_0-AB12"},
		{"O and Q to zero", "E45-12-Q34-0O99-0_0-AB12", "E45-12-034-0099-0_0-AB12"},
		{"S between digits", "E45-12-034-00S9-0_0-AB12", "E45-12-034-0059-0_0-AB12"},
		{"label prefix stripped", "RITNINGSNUMMER_PROJEKT E45-12-034-0099-0_0-AB12", "E45-12-034-0099-0_0-AB12"},
		{"tail capped at four", "E45-12-034-0099-0_0-AB123", "E45-12-034-0099-0_0-AB12"},
		{"tail M confusion", "E45-12-034-0099-0_0-ABM2", "E45-12-034-0099-0_0-AB12"},
		{"short tail drops to base", "E45-12-034-0099-0_0-AB", "E45-12-034-0099"},
		{"no structure passthrough", "GARBLED", "GARBLED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DrawingNumber(tt.in); got != tt.want {
				t.Errorf("DrawingNumber(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCorrectDrawingNumber(t *testing.T) {
	tests := []struct {
		name   string
		ocr    string
		image  string
		budget int
		want   string
	}{
		{"single diff corrected", "X-12-034-0099-0_0-AB11", "X-12-034-0099-0_0-AB12", 1, "X-12-034-0099-0_0-AB12"},
		{"equal kept", "SAME", "SAME", 1, "SAME"},
		{"two diffs kept", "AB11", "AB00", 1, "AB11"},
		{"two diffs within budget two", "AB11", "AB00", 2, "AB00"},
		{"length mismatch kept", "AB1", "AB12", 1, "AB1"},
		{"empty kept", "", "AB12", 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CorrectDrawingNumber(tt.ocr, tt.image, tt.budget); got != tt.want {
				t.Errorf("CorrectDrawingNumber = %q, want %q", got, tt.want)
			}
		})
	}
}

// Normalizing an already-canonical value must return it unchanged for every
// field cleaner.
func TestField_Idempotence(t *testing.T) {
	canonical := map[string]string{
		record.FieldDrawingNumber:  "E45-12-034-0099-0_0-AB12",
		record.FieldSupplier1:      "TYRÉNS",
		record.FieldSupplier2:      "SWECO",
		record.FieldCreatedBy:      "J.SMITH / TYRÉNS",
		record.FieldReviewedBy:     "M.LARSSON",
		record.FieldApprovedBy:     "NCC",
		record.FieldTitle:          "VÄSTLÄNKEN ETAPP 2",
		record.FieldRevisionCode:   "A.1",
		record.FieldTechnicalArea:  "MARK",
		record.FieldReviewStatus:   "GODKÄND",
		record.FieldDocumentType:   "BYGGHANDLING",
		record.FieldFacilityType:   "TUNNEL",
		record.FieldChangeNote:     "PM 1234",
		record.FieldDistanceMarker: "123+456",
		record.FieldSheet:          "012",
		record.FieldScale:          "1:100 / 1:200",
		record.FieldFormat:         "A1",
		record.FieldDescription1:   "SEKTION A",
		record.FieldDescription4:   "PLAN / PROFIL",
		record.FieldTrackSection:   "512",
		record.FieldDate:           "2024-03-01",
	}
	for field, v := range canonical {
		once := Field(field, v)
		if once != v {
			t.Errorf("Field(%s, %q) = %q, not canonical-stable", field, v, once)
			continue
		}
		if twice := Field(field, once); twice != once {
			t.Errorf("Field(%s) not idempotent: %q -> %q", field, once, twice)
		}
	}
}

func TestField_UnmappedFallsBack(t *testing.T) {
	if got := Field("UNKNOWN_LABEL", " a \n b "); got != "a b" {
		t.Errorf("fallback = %q", got)
	}
}
