package resolve

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/draftbox-io/stampline/internal/config"
	"github.com/draftbox-io/stampline/internal/ocr"
)

// fakeEngine answers with scripted words when the input ID contains one of
// its keys, and an empty result otherwise.
type fakeEngine struct {
	words map[string][]ocr.Word
	err   error
	calls []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	f.calls = append(f.calls, in.ID)
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	for key, words := range f.words {
		if strings.Contains(in.ID, key) {
			return ocr.Result{InputID: in.ID, Words: words}, nil
		}
	}
	return ocr.Result{InputID: in.ID}, nil
}

func testConfig() config.RevisionConfig {
	return config.RevisionConfig{
		Primary:         config.RegionConfig{Left: 0.72, Top: 0.79, Right: 0.86, Bottom: 0.88},
		Fallback:        config.RegionConfig{Left: 0.72, Top: 0.825, Right: 0.86, Bottom: 0.885},
		RowTolerancePx:  18,
		MaxTokenWidthPx: 120,
		MaxDimensionPx:  2200,
		MinConfidence:   0.30,
	}
}

func word(text string, conf, y, width float64) ocr.Word {
	return ocr.Word{
		Text:       text,
		Confidence: conf,
		Bounds:     ocr.Region{X: 0, Y: y - 5, Width: width, Height: 10},
	}
}

func newResolver(engine ocr.Engine) *Resolver {
	return New(engine, testConfig(), []string{"eng"}, zap.NewNop())
}

func page() image.Image {
	return image.NewGray(image.Rect(0, 0, 400, 400))
}

func TestResolve_LabeledRowPreferred(t *testing.T) {
	engine := &fakeEngine{words: map[string][]ocr.Word{
		"FIXED": {
			word("A", 0.99, 10, 20),
			word("REV: C", 0.50, 50, 200),
		},
	}}
	res, err := newResolver(engine).Resolve(context.Background(), page(), "drw")
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "C" {
		t.Errorf("Code = %q, want C from the labeled row", res.Code)
	}
}

func TestResolve_TopmostLabeledRowWins(t *testing.T) {
	engine := &fakeEngine{words: map[string][]ocr.Word{
		"FIXED": {
			word("REV A", 0.60, 60, 200),
			word("REV B", 0.40, 12, 200),
		},
	}}
	res, err := newResolver(engine).Resolve(context.Background(), page(), "drw")
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "B" {
		t.Errorf("Code = %q, want B from the topmost row", res.Code)
	}
}

func TestResolve_DateCarriedAlong(t *testing.T) {
	engine := &fakeEngine{words: map[string][]ocr.Word{
		"FIXED": {word("REV B 2024-03-15", 0.80, 20, 300)},
	}}
	res, err := newResolver(engine).Resolve(context.Background(), page(), "drw")
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "B" || res.Date != "2024-03-15" {
		t.Errorf("got (%q, %q), want (B, 2024-03-15)", res.Code, res.Date)
	}
}

func TestResolve_ConfidenceFloor(t *testing.T) {
	engine := &fakeEngine{words: map[string][]ocr.Word{
		"FIXED": {word("REV: A", 0.29, 20, 200)},
	}}
	res, err := newResolver(engine).Resolve(context.Background(), page(), "drw")
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "" {
		t.Errorf("Code = %q, want empty below the confidence floor", res.Code)
	}
}

func TestResolve_TableGate(t *testing.T) {
	// One lone candidate, served by a single variant pass only: the largest
	// row group has size 1, so the region is not a revision table.
	engine := &fakeEngine{words: map[string][]ocr.Word{
		"_FIXED_LETTER": {word("REV: A", 0.95, 20, 200)},
	}}
	res, err := newResolver(engine).Resolve(context.Background(), page(), "drw")
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "" {
		t.Errorf("Code = %q, want empty when the table gate fails", res.Code)
	}
}

func TestResolve_FallbackRegion(t *testing.T) {
	engine := &fakeEngine{words: map[string][]ocr.Word{
		"LOGO": {word("REV: D", 0.70, 15, 200)},
	}}
	res, err := newResolver(engine).Resolve(context.Background(), page(), "drw")
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "D" {
		t.Errorf("Code = %q, want D from the fallback region", res.Code)
	}
	var sawFixed bool
	for _, id := range engine.calls {
		if strings.Contains(id, "FIXED") {
			sawFixed = true
		}
	}
	if !sawFixed {
		t.Error("primary region was never tried")
	}
}

func TestResolve_GlyphRepair(t *testing.T) {
	engine := &fakeEngine{words: map[string][]ocr.Word{
		"FIXED": {
			word("(", 0.80, 20, 15),
			word("2024-03-15", 0.80, 22, 120),
		},
	}}
	res, err := newResolver(engine).Resolve(context.Background(), page(), "drw")
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "C" {
		t.Errorf("Code = %q, want C from glyph repair", res.Code)
	}
}

func TestResolve_EngineFailureIsNotFatal(t *testing.T) {
	engine := &fakeEngine{err: errors.New("backend down")}
	res, err := newResolver(engine).Resolve(context.Background(), page(), "drw")
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != "" {
		t.Errorf("Code = %q, want empty", res.Code)
	}
}

func TestResolve_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := &fakeEngine{err: context.Canceled}
	if _, err := newResolver(engine).Resolve(ctx, page(), "drw"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
