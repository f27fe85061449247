// Package resolve turns a rasterized drawing page into one authoritative
// revision code. It crops the fixed revision-table regions, runs OCR under
// every preprocessing variant and arbitrates the pooled candidates.
package resolve

import (
	"context"
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/draftbox-io/stampline/internal/config"
	"github.com/draftbox-io/stampline/internal/domain/revision"
	"github.com/draftbox-io/stampline/internal/ocr"
	"github.com/draftbox-io/stampline/internal/vision"
)

// Resolver extracts the revision code printed in the title-block revision
// table of a drawing page.
type Resolver struct {
	engine    ocr.Engine
	cfg       config.RevisionConfig
	languages []string
	log       *zap.Logger
}

// New creates a resolver over an OCR engine.
func New(engine ocr.Engine, cfg config.RevisionConfig, languages []string, log *zap.Logger) *Resolver {
	return &Resolver{engine: engine, cfg: cfg, languages: languages, log: log}
}

// Result is the outcome of one page resolution. Code is empty when no
// revision table was found.
type Result struct {
	Code string
	Date string // ISO date, "" when none was printed alongside
}

// Resolve runs the arbitration over the primary region, then the fallback
// region when the primary yields nothing. A page without a recognizable
// revision table resolves to an empty Result, not an error; only context
// cancellation aborts the pass.
func (r *Resolver) Resolve(ctx context.Context, img image.Image, name string) (Result, error) {
	gray := vision.ToGray(img)

	regions := []struct {
		tag    string
		region config.RegionConfig
	}{
		{"FIXED", r.cfg.Primary},
		{"LOGO", r.cfg.Fallback},
	}
	for _, reg := range regions {
		crop := vision.CropFraction(gray, reg.region.Left, reg.region.Top, reg.region.Right, reg.region.Bottom)
		if crop.Bounds().Empty() {
			continue
		}
		res, err := r.resolveRegion(ctx, crop, name, reg.tag)
		if err != nil {
			return Result{}, err
		}
		if res.Code != "" {
			return res, nil
		}
	}
	return Result{}, nil
}

func (r *Resolver) resolveRegion(ctx context.Context, crop *image.Gray, name, tag string) (Result, error) {
	crop = vision.ShrinkToFit(crop, r.cfg.MaxDimensionPx)

	var all, labeled []revision.Candidate
	for _, variant := range vision.Variants() {
		png, err := vision.EncodePNG(variant.Apply(crop))
		if err != nil {
			return Result{}, fmt.Errorf("encode %s crop: %w", variant.Name, err)
		}
		out, err := r.engine.Recognize(ctx, ocr.Input{
			ID:        fmt.Sprintf("%s_%s_%s", name, tag, variant.Name),
			Image:     png,
			Languages: r.languages,
		})
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			r.log.Warn("ocr pass failed",
				zap.String("image", name),
				zap.String("region", tag),
				zap.String("variant", variant.Name),
				zap.Error(err))
			continue
		}
		for _, word := range out.Words {
			if word.Confidence < r.cfg.MinConfidence {
				continue
			}
			for _, cand := range r.wordCandidates(word) {
				all = append(all, cand)
				if cand.FromLabeledRow {
					labeled = append(labeled, cand)
				}
			}
		}
	}

	if len(all) == 0 {
		return Result{}, nil
	}
	if !revision.HasTableStructure(all, r.cfg.RowTolerancePx) {
		r.log.Debug("no table structure in region",
			zap.String("image", name),
			zap.String("region", tag),
			zap.Int("candidates", len(all)))
		return Result{}, nil
	}

	best, ok := revision.Select(all, labeled)
	if !ok {
		return Result{}, nil
	}
	r.log.Debug("revision selected",
		zap.String("image", name),
		zap.String("region", tag),
		zap.String("code", best.Value),
		zap.Float64("confidence", best.Confidence),
		zap.Float64("y", best.Y))
	return Result{Code: best.Value, Date: best.Date}, nil
}

// wordCandidates extracts every revision reading a single token supports. A
// token can contribute more than one candidate; arbitration sorts it out.
func (r *Resolver) wordCandidates(word ocr.Word) []revision.Candidate {
	clean := strings.ToUpper(strings.TrimSpace(word.Text))
	if clean == "" {
		return nil
	}
	fromLabeledRow := revision.IsLabeledRow(word.Text)
	date, _ := revision.ParseDate(clean)
	y := word.CenterY()

	var out []revision.Candidate
	add := func(value, date string) {
		out = append(out, revision.Candidate{
			Confidence:     word.Confidence,
			Y:              y,
			Value:          value,
			Date:           date,
			FromLabeledRow: fromLabeledRow,
		})
	}

	if letter, ok := revision.FromLabelPhrase(clean); ok {
		add(letter, date)
	}

	token, wasGlyph := revision.RepairGlyph(clean)
	if wasGlyph {
		add(token, "")
	}
	if word.Bounds.Width <= r.cfg.MaxTokenWidthPx {
		if value, ok := revision.FromShortToken(token); ok {
			add(value, date)
		}
	}
	if value, ok := revision.FromFreeText(word.Text); ok {
		add(value, date)
	}
	return out
}
