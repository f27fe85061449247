// Package vision holds the deterministic grayscale preprocessing used ahead
// of OCR. No single filter is reliable across print qualities, so the
// revision resolver runs every variant and pools the detections.
package vision

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// ToGray converts any image to 8-bit grayscale.
func ToGray(src image.Image) *image.Gray {
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), src, b.Min, draw.Src)
	return g
}

// CropFraction cuts a proportionally-defined rectangle out of the image,
// clamped to its bounds. Fractions are in [0,1] relative to width/height.
func CropFraction(g *image.Gray, left, top, right, bottom float64) *image.Gray {
	b := g.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	x1 := clampInt(int(w*left), 0, b.Dx())
	x2 := clampInt(int(w*right), 0, b.Dx())
	y1 := clampInt(int(h*top), 0, b.Dy())
	y2 := clampInt(int(h*bottom), 0, b.Dy())

	out := image.NewGray(image.Rect(0, 0, x2-x1, y2-y1))
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			out.SetGray(x-x1, y-y1, g.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// CropPixels cuts a pixel rectangle out of the image, clamped to its bounds.
func CropPixels(g *image.Gray, x1, y1, x2, y2 int) *image.Gray {
	b := g.Bounds()
	x1 = clampInt(x1, 0, b.Dx())
	x2 = clampInt(x2, 0, b.Dx())
	y1 = clampInt(y1, 0, b.Dy())
	y2 = clampInt(y2, 0, b.Dy())
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	out := image.NewGray(image.Rect(0, 0, x2-x1, y2-y1))
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			out.SetGray(x-x1, y-y1, g.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// ShrinkToFit scales the image down so neither dimension exceeds maxDim.
// Images already within bounds are returned unchanged.
func ShrinkToFit(g *image.Gray, maxDim int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return g
	}
	scale := float64(maxDim) / float64(w)
	if s := float64(maxDim) / float64(h); s < scale {
		scale = s
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	out := image.NewGray(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(out, out.Bounds(), g, b, draw.Src, nil)
	return out
}

// EncodePNG encodes the image for hand-off to OCR.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
