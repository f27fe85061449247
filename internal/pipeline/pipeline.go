// Package pipeline sequences the extraction stages over a batch of drawing
// images: extract raw field text, clean it, resolve the revision table,
// cross-check the two revision signals, validate against the master rule
// catalog. Stage hand-off is file-based and each stage overwrites its
// output in full, so any stage can be re-run from its input.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftbox-io/stampline/internal/artifact"
	"github.com/draftbox-io/stampline/internal/config"
	"github.com/draftbox-io/stampline/internal/detect"
	"github.com/draftbox-io/stampline/internal/domain/record"
	"github.com/draftbox-io/stampline/internal/metrics"
	"github.com/draftbox-io/stampline/internal/ocr"
	"github.com/draftbox-io/stampline/internal/resolve"
	"github.com/draftbox-io/stampline/internal/rules"
	"github.com/draftbox-io/stampline/internal/store"
)

// Stage names, used in checkpoints and metrics labels.
const (
	StageExtract  = "extract"
	StageClean    = "clean"
	StageResolve  = "resolve"
	StageCompare  = "compare"
	StageValidate = "validate"
)

// Stage artifact filenames inside the work directory.
const (
	rawExtractionFile = "raw_extraction.xlsx"
	cleaningFile      = "cleaning_file.xlsx"
	rawValidatedFile  = "raw_validated.xlsx"
	validationFile    = "validation_file.xlsx"
	validationCSVFile = "validation_file.csv"
)

// Deps are the collaborators a pipeline runs against.
type Deps struct {
	Detector  detect.Detector
	Engine    ocr.Engine
	Resolver  *resolve.Resolver
	Validator *rules.Validator
	Store     store.Store
	Logger    *zap.Logger
}

// Pipeline runs the batch stages over a directory of stamp images.
type Pipeline struct {
	cfg       config.PipelineConfig
	languages []string
	maxEdit   int

	detector  detect.Detector
	engine    ocr.Engine
	resolver  *resolve.Resolver
	validator *rules.Validator
	store     store.Store
	log       *zap.Logger
}

// New creates a pipeline.
func New(cfg config.Config, deps Deps) *Pipeline {
	if cfg.Pipeline.CheckpointInterval <= 0 {
		cfg.Pipeline.CheckpointInterval = 10
	}
	return &Pipeline{
		cfg:       cfg.Pipeline,
		languages: cfg.OCR.Languages,
		maxEdit:   cfg.Correction.MaxEditDistance,
		detector:  deps.Detector,
		engine:    deps.Engine,
		resolver:  deps.Resolver,
		validator: deps.Validator,
		store:     deps.Store,
		log:       deps.Logger,
	}
}

// Run executes every stage over the input directory. Collaborator outages
// degrade single fields; a missing input directory or an unwritable work
// directory aborts the run.
func (p *Pipeline) Run(ctx context.Context) error {
	images, err := listImages(p.cfg.InputDir)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		p.log.Warn("no input images", zap.String("dir", p.cfg.InputDir))
		return nil
	}
	if err := os.MkdirAll(p.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	p.log.Info("pipeline starting",
		zap.Int("images", len(images)),
		zap.String("input_dir", p.cfg.InputDir))

	recs, err := p.runExtract(ctx, images)
	if err != nil {
		return err
	}
	if err := p.runClean(ctx, recs); err != nil {
		return err
	}
	if err := p.runResolve(ctx, recs); err != nil {
		return err
	}
	if err := p.runCompare(ctx, recs); err != nil {
		return err
	}
	if err := p.runValidate(ctx, recs); err != nil {
		return err
	}

	if err := p.store.ClearCheckpoint(ctx); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	p.log.Info("pipeline finished", zap.Int("records", len(recs)))
	return nil
}

func (p *Pipeline) runClean(ctx context.Context, recs []*record.Record) error {
	defer p.stageTimer(StageClean)()

	for _, rec := range recs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.cleanOne(rec)
		metrics.PagesProcessedTotal.WithLabelValues(StageClean, "ok").Inc()
	}
	if err := p.store.Put(ctx, recs...); err != nil {
		return fmt.Errorf("store cleaned records: %w", err)
	}
	return artifact.WriteRecords(filepath.Join(p.cfg.WorkDir, cleaningFile), recs)
}

func (p *Pipeline) runCompare(ctx context.Context, recs []*record.Record) error {
	defer p.stageTimer(StageCompare)()

	for _, rec := range recs {
		rec.Fields[record.FieldSheet] = zfill(rec.Fields[record.FieldSheet], 3)
		rules.CheckRevision(rec)
		status := "ok"
		if rec.RevStatus == record.StatusError {
			status = "error"
		}
		metrics.PagesProcessedTotal.WithLabelValues(StageCompare, status).Inc()
	}
	if err := p.store.Put(ctx, recs...); err != nil {
		return fmt.Errorf("store compared records: %w", err)
	}
	return artifact.WriteRecords(filepath.Join(p.cfg.WorkDir, rawValidatedFile), recs)
}

func (p *Pipeline) runValidate(ctx context.Context, recs []*record.Record) error {
	defer p.stageTimer(StageValidate)()

	for _, rec := range recs {
		p.validator.Validate(rec)
		for _, f := range rec.FlaggedFields() {
			metrics.FieldFlagsTotal.WithLabelValues(f).Inc()
		}
		status := "ok"
		if len(rec.FlaggedFields()) > 0 || rec.RevStatus == record.StatusError {
			status = "error"
		}
		metrics.PagesProcessedTotal.WithLabelValues(StageValidate, status).Inc()
	}
	if err := p.store.Put(ctx, recs...); err != nil {
		return fmt.Errorf("store validated records: %w", err)
	}
	if err := artifact.WriteRecords(filepath.Join(p.cfg.WorkDir, validationFile), recs); err != nil {
		return err
	}
	return artifact.ExportCSV(filepath.Join(p.cfg.WorkDir, validationCSVFile), recs)
}

func (p *Pipeline) checkpoint(ctx context.Context, stage string, processed int, lastImage string) {
	cp := store.Checkpoint{
		Stage:     stage,
		Processed: processed,
		LastImage: lastImage,
		UpdatedAt: time.Now(),
	}
	if err := p.store.SaveCheckpoint(ctx, cp); err != nil {
		p.log.Warn("checkpoint save failed", zap.Error(err))
		return
	}
	metrics.CheckpointsTotal.Inc()
	p.log.Info("checkpoint saved",
		zap.String("stage", stage),
		zap.Int("processed", processed))
}

func (p *Pipeline) stageTimer(stage string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".tif": {}, ".tiff": {}, ".bmp": {},
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func zfill(s string, width int) string {
	s = strings.TrimSpace(s)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
