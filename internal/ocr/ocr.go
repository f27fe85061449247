// Package ocr defines the contract for plugging OCR providers into the
// extraction pipeline. The interface is transport-agnostic: engines can be
// backed by native libraries or remote services without leaking
// provider-specific concerns into callers.
package ocr

import "context"

// Region is a rectangle in pixel coordinates, origin in the upper-left
// corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Word is a single recognized token with its rendered bounds and a
// confidence in [0,1].
type Word struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// CenterY returns the vertical center of the word's bounds.
func (w Word) CenterY() float64 { return w.Bounds.Y + w.Bounds.Height/2 }

// Input is one encoded image (PNG) submitted for recognition.
type Input struct {
	// ID is an optional caller-provided identifier echoed back in the Result.
	ID string
	// Image is the PNG-encoded payload.
	Image []byte
	// Languages holds trained-data hints (e.g. "swe", "eng").
	Languages []string
	// Metadata passes engine-specific knobs (e.g. a character whitelist)
	// without hard-coding them into the API surface.
	Metadata map[string]string
}

// Result is the recognition output for a single input.
type Result struct {
	InputID   string
	PlainText string
	Words     []Word
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}
