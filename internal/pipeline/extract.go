package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	"github.com/draftbox-io/stampline/internal/artifact"
	"github.com/draftbox-io/stampline/internal/detect"
	"github.com/draftbox-io/stampline/internal/domain/record"
	"github.com/draftbox-io/stampline/internal/metrics"
	"github.com/draftbox-io/stampline/internal/ocr"
	"github.com/draftbox-io/stampline/internal/vision"
)

var sheetTextRe = regexp.MustCompile(`^\d{1,4}$`)

// changeNoteWhitelist restricts the change-note field to the characters it
// can legally contain; the stamp prints it in a noisy condensed face.
const changeNoteWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// runExtract OCRs every detected label region of every stamp image into a
// raw record. The stage checkpoints its progress; a resumed run reloads the
// already-extracted records from the store instead of re-running OCR.
func (p *Pipeline) runExtract(ctx context.Context, images []string) ([]*record.Record, error) {
	defer p.stageTimer(StageExtract)()

	done := 0
	if cp, ok, err := p.store.LoadCheckpoint(ctx); err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	} else if ok && cp.Stage == StageExtract && cp.Processed <= len(images) {
		done = cp.Processed
		p.log.Info("resuming extraction",
			zap.Int("processed", done),
			zap.String("last_image", cp.LastImage))
	}

	recs := make([]*record.Record, 0, len(images))
	for i, path := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if i < done {
			rec, err := p.store.Get(ctx, record.Key(filepath.Base(path)))
			if err == nil {
				recs = append(recs, rec)
				continue
			}
			// Checkpoint said done but the record is gone; extract again.
			p.log.Warn("checkpointed record missing, re-extracting",
				zap.String("image", filepath.Base(path)))
		}

		rec := p.extractOne(ctx, path)
		recs = append(recs, rec)
		if err := p.store.Put(ctx, rec); err != nil {
			return nil, fmt.Errorf("store extracted record: %w", err)
		}
		metrics.PagesProcessedTotal.WithLabelValues(StageExtract, "ok").Inc()

		if processed := i + 1; processed%p.cfg.CheckpointInterval == 0 {
			p.checkpoint(ctx, StageExtract, processed, filepath.Base(path))
		}
	}

	return recs, artifact.WriteRecords(filepath.Join(p.cfg.WorkDir, rawExtractionFile), recs)
}

// extractOne never fails the batch: a broken image or an unreachable
// detector yields a record with empty fields for validation to flag.
func (p *Pipeline) extractOne(ctx context.Context, path string) *record.Record {
	name := filepath.Base(path)
	rec, err := record.New(name, nil)
	if err != nil {
		// Unreachable: New only rejects unknown field names.
		panic(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		p.log.Warn("read image failed", zap.String("image", name), zap.Error(err))
		return rec
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		p.log.Warn("decode image failed", zap.String("image", name), zap.Error(err))
		return rec
	}
	gray := vision.ToGray(img)
	imgW := float64(gray.Bounds().Dx())
	imgH := float64(gray.Bounds().Dy())

	detections, err := p.detector.Detect(ctx, data)
	if err != nil {
		p.log.Warn("detector unavailable, leaving record empty",
			zap.String("image", name), zap.Error(err))
		return rec
	}

	bestSheet := ""
	for _, d := range detections {
		if !record.IsKnownField(d.Label) {
			continue
		}
		region := detect.PadRegion(d.Label, d.Bounds, imgW, imgH)
		crop := vision.CropPixels(gray,
			int(region.X), int(region.Y),
			int(region.X+region.Width), int(region.Y+region.Height))
		if crop.Bounds().Empty() {
			continue
		}

		text, err := p.recognizeRegion(ctx, name, d.Label, crop)
		if err != nil {
			p.log.Warn("region ocr failed",
				zap.String("image", name),
				zap.String("label", d.Label),
				zap.Error(err))
			continue
		}

		if d.Label == record.FieldSheet {
			// Several sheet boxes can fire; keep the shortest clean
			// digit run, the longer ones tend to include frame lines.
			if sheetTextRe.MatchString(text) &&
				(bestSheet == "" || len(text) < len(bestSheet)) {
				bestSheet = text
			}
			continue
		}
		if rec.Fields[d.Label] == "" {
			rec.Fields[d.Label] = text
		}
	}
	rec.Fields[record.FieldSheet] = bestSheet
	return rec
}

func (p *Pipeline) recognizeRegion(ctx context.Context, name, label string, crop *image.Gray) (string, error) {
	png, err := vision.EncodePNG(crop)
	if err != nil {
		return "", fmt.Errorf("encode crop: %w", err)
	}
	in := ocr.Input{
		ID:        name + "_" + label,
		Image:     png,
		Languages: p.languages,
	}
	if label == record.FieldChangeNote {
		in.Metadata = map[string]string{"tessedit_char_whitelist": changeNoteWhitelist}
	}

	out, err := p.engine.Recognize(ctx, in)
	if err != nil {
		metrics.OCRRequestsTotal.WithLabelValues(p.engine.Name(), "error").Inc()
		return "", err
	}
	metrics.OCRRequestsTotal.WithLabelValues(p.engine.Name(), "ok").Inc()
	return strings.Join(strings.Fields(out.PlainText), " "), nil
}
