package pipeline

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/draftbox-io/stampline/internal/config"
	"github.com/draftbox-io/stampline/internal/detect"
	"github.com/draftbox-io/stampline/internal/domain/record"
	"github.com/draftbox-io/stampline/internal/ocr"
	"github.com/draftbox-io/stampline/internal/resolve"
	"github.com/draftbox-io/stampline/internal/rules"
	"github.com/draftbox-io/stampline/internal/store"
)

type fakeDetector struct {
	dets []detect.Detection
	err  error
}

func (f *fakeDetector) Name() string { return "fake" }

func (f *fakeDetector) Detect(context.Context, []byte) ([]detect.Detection, error) {
	return f.dets, f.err
}

// fakeEngine answers with scripted plain text when the input ID contains
// one of its keys.
type fakeEngine struct {
	texts map[string]string
	words []ocr.Word
	calls []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	f.calls = append(f.calls, in.ID)
	for key, text := range f.texts {
		if strings.Contains(in.ID, key) {
			return ocr.Result{InputID: in.ID, PlainText: text}, nil
		}
	}
	return ocr.Result{InputID: in.ID, Words: f.words}, nil
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 120, 80))); err != nil {
		t.Fatal(err)
	}
}

func testCatalog() *rules.Catalog {
	return &rules.Catalog{
		Value: map[string]map[string]struct{}{
			record.FieldTechnicalArea: {"EL": {}, "BANA": {}},
		},
		Pattern: map[string][]*regexp.Regexp{
			record.FieldDrawingNumber: {regexp.MustCompile(`^[A-Z0-9]+-\d{2}-\d{3}-\d{4}-0_0-[A-Z0-9]+$`)},
			record.FieldSheet:         {regexp.MustCompile(`^\d{2,4}$`)},
		},
		Freetext: map[string]struct{}{record.FieldTitle: {}},
	}
}

type env struct {
	cfg      config.Config
	detector *fakeDetector
	engine   *fakeEngine
	rev      *fakeEngine
	store    store.Store
}

func newEnv(t *testing.T, st store.Store) *env {
	t.Helper()
	base := t.TempDir()
	cfg := config.Config{}
	cfg.ApplyDefaults()
	cfg.Pipeline.InputDir = filepath.Join(base, "stamps")
	cfg.Pipeline.RevisionDir = filepath.Join(base, "pages")
	cfg.Pipeline.WorkDir = filepath.Join(base, "work")
	for _, d := range []string{cfg.Pipeline.InputDir, cfg.Pipeline.RevisionDir, cfg.Pipeline.WorkDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if st == nil {
		st = store.NewMemoryStore()
	}
	return &env{
		cfg:      cfg,
		detector: &fakeDetector{},
		engine:   &fakeEngine{},
		rev:      &fakeEngine{},
		store:    st,
	}
}

func (e *env) pipeline() *Pipeline {
	logger := zap.NewNop()
	resolver := resolve.New(e.rev, e.cfg.Revision, e.cfg.OCR.Languages, logger)
	validator := rules.NewValidator(testCatalog(), config.DefaultEmptyAllowed)
	return New(e.cfg, Deps{
		Detector:  e.detector,
		Engine:    e.engine,
		Resolver:  resolver,
		Validator: validator,
		Store:     e.store,
		Logger:    logger,
	})
}

func stampDetections() []detect.Detection {
	region := func(x, y, w, h float64) ocr.Region {
		return ocr.Region{X: x, Y: y, Width: w, Height: h}
	}
	return []detect.Detection{
		{Label: record.FieldDrawingNumber, Bounds: region(5, 5, 60, 15), Confidence: 0.9},
		{Label: record.FieldSheet, Bounds: region(5, 30, 20, 10), Confidence: 0.8},
		{Label: record.FieldTechnicalArea, Bounds: region(5, 50, 40, 10), Confidence: 0.8},
		{Label: record.FieldRevisionCode, Bounds: region(70, 5, 20, 10), Confidence: 0.8},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	e := newEnv(t, nil)
	const img = "K-12-123-4501-0_0-GN01-001_stamp.png"
	writePNG(t, filepath.Join(e.cfg.Pipeline.InputDir, img))
	writePNG(t, filepath.Join(e.cfg.Pipeline.RevisionDir, "K-12-123-4501-0_0-GN01-001_p1.png"))

	e.detector.dets = stampDetections()
	e.engine.texts = map[string]string{
		"_" + record.FieldDrawingNumber: "K-12-123-45O1-0_0-GN01",
		"_" + record.FieldSheet:         "001",
		"_" + record.FieldTechnicalArea: "EL",
		"_" + record.FieldRevisionCode:  "A",
	}
	e.rev.words = []ocr.Word{
		{Text: "REV A", Confidence: 0.9, Bounds: ocr.Region{X: 0, Y: 5, Width: 200, Height: 10}},
	}

	if err := e.pipeline().Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec, err := e.store.Get(context.Background(), "K-12-123-4501-0_0-GN01-001")
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.Fields[record.FieldDrawingNumber]; got != "K-12-123-4501-0_0-GN01" {
		t.Errorf("drawing number = %q", got)
	}
	if got := rec.Fields[record.FieldSheet]; got != "001" {
		t.Errorf("sheet = %q", got)
	}
	if rec.FinalRev != "A" {
		t.Errorf("FinalRev = %q, want A", rec.FinalRev)
	}
	if rec.RevStatus != record.StatusOK || rec.SheetStatus != record.StatusOK {
		t.Errorf("statuses = (%s, %s)", rec.SheetStatus, rec.RevStatus)
	}
	if flagged := rec.FlaggedFields(); len(flagged) != 0 {
		t.Errorf("flagged = %v, want none", flagged)
	}

	for _, f := range []string{rawExtractionFile, cleaningFile, rawValidatedFile, validationFile, validationCSVFile} {
		if _, err := os.Stat(filepath.Join(e.cfg.Pipeline.WorkDir, f)); err != nil {
			t.Errorf("artifact %s missing: %v", f, err)
		}
	}

	if _, ok, _ := e.store.LoadCheckpoint(context.Background()); ok {
		t.Error("checkpoint not cleared after a completed run")
	}
}

func TestRun_RevisionMismatchShortCircuitsValidation(t *testing.T) {
	e := newEnv(t, nil)
	const img = "K-12-123-4501-0_0-GN01-001_stamp.png"
	writePNG(t, filepath.Join(e.cfg.Pipeline.InputDir, img))
	writePNG(t, filepath.Join(e.cfg.Pipeline.RevisionDir, "K-12-123-4501-0_0-GN01-001_p1.png"))

	e.detector.dets = stampDetections()
	e.engine.texts = map[string]string{
		"_" + record.FieldRevisionCode: "B",
	}
	e.rev.words = []ocr.Word{
		{Text: "REV A", Confidence: 0.9, Bounds: ocr.Region{X: 0, Y: 5, Width: 200, Height: 10}},
	}

	if err := e.pipeline().Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec, err := e.store.Get(context.Background(), "K-12-123-4501-0_0-GN01-001")
	if err != nil {
		t.Fatal(err)
	}
	if rec.RevStatus != record.StatusError {
		t.Fatalf("RevStatus = %s, want ERROR", rec.RevStatus)
	}
	// The drawing number is empty and outside the empty-allowed set, but a
	// revision inconsistency excludes the record from field-level checks.
	if rec.Flagged(record.FieldDrawingNumber) {
		t.Error("field-level flag on a record with a revision inconsistency")
	}
}

func TestRun_DetectorOutageDegradesToEmptyFields(t *testing.T) {
	e := newEnv(t, nil)
	writePNG(t, filepath.Join(e.cfg.Pipeline.InputDir, "DRW-A-001_stamp.png"))

	e.detector.err = context.DeadlineExceeded

	if err := e.pipeline().Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec, err := e.store.Get(context.Background(), "DRW-A-001")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range record.FieldNames {
		if rec.Fields[name] != "" && rec.Fields[name] != "_" && rec.Fields[name] != "000" {
			t.Errorf("field %s = %q, want empty", name, rec.Fields[name])
		}
	}
	// Empty drawing number is a pattern violation outside the
	// empty-allowed set.
	if !rec.Flagged(record.FieldDrawingNumber) {
		t.Error("empty drawing number not flagged")
	}
}

type countingStore struct {
	store.Store
	saves int
}

func (c *countingStore) SaveCheckpoint(ctx context.Context, cp store.Checkpoint) error {
	c.saves++
	return c.Store.SaveCheckpoint(ctx, cp)
}

func TestRun_CheckpointCadence(t *testing.T) {
	cs := &countingStore{Store: store.NewMemoryStore()}
	e := newEnv(t, cs)
	e.cfg.Pipeline.CheckpointInterval = 2

	for i := 0; i < 5; i++ {
		writePNG(t, filepath.Join(e.cfg.Pipeline.InputDir, imageName(i)))
	}

	if err := e.pipeline().Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Extract and resolve each checkpoint after images 2 and 4.
	if cs.saves != 4 {
		t.Errorf("checkpoint saves = %d, want 4", cs.saves)
	}
}

func TestRunExtract_ResumeSkipsProcessedImages(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		writePNG(t, filepath.Join(e.cfg.Pipeline.InputDir, imageName(i)))
	}
	e.detector.dets = stampDetections()

	done, err := record.New(imageName(0), map[string]string{record.FieldTechnicalArea: "BANA"})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.store.Put(ctx, done); err != nil {
		t.Fatal(err)
	}
	if err := e.store.SaveCheckpoint(ctx, store.Checkpoint{
		Stage:     StageExtract,
		Processed: 1,
		LastImage: imageName(0),
	}); err != nil {
		t.Fatal(err)
	}

	recs, err := e.pipeline().runExtract(ctx, mustListImages(t, e.cfg.Pipeline.InputDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
	if recs[0].Fields[record.FieldTechnicalArea] != "BANA" {
		t.Error("checkpointed record was re-extracted instead of reloaded")
	}
	for _, id := range e.engine.calls {
		if strings.Contains(id, imageName(0)) {
			t.Fatalf("OCR re-ran for checkpointed image: %s", id)
		}
	}
}

func imageName(i int) string {
	return "DRW-A-00" + string(rune('1'+i)) + "_stamp.png"
}

func mustListImages(t *testing.T, dir string) []string {
	t.Helper()
	images, err := listImages(dir)
	if err != nil {
		t.Fatal(err)
	}
	return images
}
