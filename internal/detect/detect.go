// Package detect defines the label-region detector boundary. The detection
// model itself is an external collaborator; this package only knows its
// interface and the crop-padding rules applied to its boxes.
package detect

import (
	"context"

	"github.com/draftbox-io/stampline/internal/ocr"
)

// Detection is one located label region on a stamp image.
type Detection struct {
	Label      string
	Bounds     ocr.Region
	Confidence float64
}

// Detector locates label regions on an encoded stamp image.
type Detector interface {
	Name() string
	Detect(ctx context.Context, image []byte) ([]Detection, error)
}

// padding widens a detection box by fractions of its own size before OCR.
// Tight model boxes clip descenders and trailing characters; the fractions
// are tuned per label.
type padding struct {
	left, right, top, bottom float64
}

var paddings = map[string]padding{
	"RITNINGSNUMMER_PROJEKT": {left: 0.02, right: 0.06, top: 0.03, bottom: 0.05},
	"BLAD":                   {left: 0.01, right: 0.01, top: 0.01, bottom: 0.01},
	"BANDEL":                 {right: 0.02},
	"ANLAGGNINGSTYP":         {right: 0.03},
}

// PadRegion widens the region per the label's padding rule, clamped to the
// image bounds. Labels without a rule are returned unchanged.
func PadRegion(label string, r ocr.Region, imgW, imgH float64) ocr.Region {
	p, ok := paddings[label]
	if !ok {
		return clampRegion(r, imgW, imgH)
	}
	w, h := r.Width, r.Height
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	out := ocr.Region{
		X:      r.X - w*p.left,
		Y:      r.Y - h*p.top,
		Width:  r.Width + w*(p.left+p.right),
		Height: r.Height + h*(p.top+p.bottom),
	}
	return clampRegion(out, imgW, imgH)
}

func clampRegion(r ocr.Region, imgW, imgH float64) ocr.Region {
	x1, y1 := r.X, r.Y
	x2, y2 := r.X+r.Width, r.Y+r.Height
	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > imgW {
		x2 = imgW
	}
	if y2 > imgH {
		y2 = imgH
	}
	return ocr.Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
