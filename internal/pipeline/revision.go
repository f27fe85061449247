package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/draftbox-io/stampline/internal/domain/record"
	"github.com/draftbox-io/stampline/internal/metrics"
)

// NoRevision is the sentinel stored when a page has no readable revision
// table. It matches the "no code" sentinel of the revision-change field, so
// the consistency check sees two absent signals as agreement.
const NoRevision = "_"

// runResolve resolves the revision table on the full page raster of every
// record. Pages without a raster or without a readable table get the
// sentinel; only cancellation or a storage failure aborts the stage.
func (p *Pipeline) runResolve(ctx context.Context, recs []*record.Record) error {
	defer p.stageTimer(StageResolve)()

	pages, err := p.indexRevisionPages()
	if err != nil {
		return err
	}

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}

		code, date := p.resolveOne(ctx, rec, pages)
		rec.FinalRev = code
		rec.RevDate = date

		status := "ok"
		if code == NoRevision {
			status = "empty"
		}
		metrics.PagesProcessedTotal.WithLabelValues(StageResolve, status).Inc()

		if err := p.store.Put(ctx, rec); err != nil {
			return fmt.Errorf("store resolved record: %w", err)
		}
		if processed := i + 1; processed%p.cfg.CheckpointInterval == 0 {
			p.checkpoint(ctx, StageResolve, processed, rec.Image)
		}
	}
	return nil
}

func (p *Pipeline) resolveOne(ctx context.Context, rec *record.Record, pages map[string]string) (string, string) {
	path, ok := pages[rec.Key]
	if !ok {
		p.log.Warn("no revision page for record", zap.String("key", rec.Key))
		return NoRevision, ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		p.log.Warn("read revision page failed", zap.String("path", path), zap.Error(err))
		return NoRevision, ""
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		p.log.Warn("decode revision page failed", zap.String("path", path), zap.Error(err))
		return NoRevision, ""
	}

	res, err := p.resolver.Resolve(ctx, img, rec.Key)
	if err != nil {
		// The resolver only errors on cancellation; the caller's ctx
		// check picks it up on the next iteration.
		p.log.Warn("revision resolution aborted", zap.String("key", rec.Key), zap.Error(err))
		return NoRevision, ""
	}
	if res.Code == "" {
		return NoRevision, ""
	}
	return res.Code, res.Date
}

// indexRevisionPages maps document keys to page raster paths. Multi-page
// documents keep the first page in sort order, which is the one carrying
// the title block.
func (p *Pipeline) indexRevisionPages() (map[string]string, error) {
	paths, err := listImages(p.cfg.RevisionDir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(paths))
	for _, path := range paths {
		key := record.Key(filepath.Base(path))
		if _, ok := out[key]; !ok {
			out[key] = path
		}
	}
	return out, nil
}
