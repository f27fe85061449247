package vision

import "image"

// Variant is one named preprocessing filter.
type Variant struct {
	Name  string
	Apply func(*image.Gray) *image.Gray
}

// Variants returns the filter set run over every revision region. Letter
// recovery favors thin strokes, medium sharpens mid-quality prints, light
// lifts faint text out of dark backgrounds.
func Variants() []Variant {
	return []Variant{
		{Name: "LETTER", Apply: letterRecovery},
		{Name: "MEDIUM", Apply: medium},
		{Name: "LIGHT", Apply: lightText},
	}
}

func letterRecovery(g *image.Gray) *image.Gray {
	return contrastStretch(closeHorizontal(boxBlur3(g)))
}

func medium(g *image.Gray) *image.Gray {
	return unsharp(contrastStretch(g))
}

func lightText(g *image.Gray) *image.Gray {
	return adaptiveThreshold(contrastStretch(invert(g)), 31, 5)
}

// boxBlur3 applies a 3x3 mean filter.
func boxBlur3(g *image.Gray) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx, yy := x+dx, y+dy
					if xx < 0 || yy < 0 || xx >= w || yy >= h {
						continue
					}
					sum += int(g.GrayAt(b.Min.X+xx, b.Min.Y+yy).Y)
					n++
				}
			}
			out.Pix[y*out.Stride+x] = uint8(sum / n)
		}
	}
	return out
}

// closeHorizontal runs a 3x1 grayscale closing (dilate then erode), joining
// characters broken along the horizontal axis.
func closeHorizontal(g *image.Gray) *image.Gray {
	return erodeH(dilateH(g))
}

func dilateH(g *image.Gray) *image.Gray {
	return morphH(g, func(a, b uint8) bool { return a > b })
}

func erodeH(g *image.Gray) *image.Gray {
	return morphH(g, func(a, b uint8) bool { return a < b })
}

func morphH(g *image.Gray, better func(a, b uint8) bool) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			best := g.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			for dx := -1; dx <= 1; dx++ {
				xx := x + dx
				if xx < 0 || xx >= w {
					continue
				}
				if v := g.GrayAt(b.Min.X+xx, b.Min.Y+y).Y; better(v, best) {
					best = v
				}
			}
			out.Pix[y*out.Stride+x] = best
		}
	}
	return out
}

// contrastStretch maps the observed intensity range linearly onto [0,255].
// Flat images are returned unchanged.
func contrastStretch(g *image.Gray) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	lo, hi := uint8(255), uint8(0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := g.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if hi <= lo {
		return g
	}
	span := int(hi) - int(lo)
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := int(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			out.Pix[y*out.Stride+x] = uint8((v - int(lo)) * 255 / span)
		}
	}
	return out
}

// unsharp sharpens by subtracting a blurred copy: 1.5*img - 0.5*blur.
func unsharp(g *image.Gray) *image.Gray {
	blur := boxBlur3(g)
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 3*int(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)/2 - int(blur.GrayAt(x, y).Y)/2
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			out.Pix[y*out.Stride+x] = uint8(v)
		}
	}
	return out
}

func invert(g *image.Gray) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x] = 255 - g.GrayAt(b.Min.X+x, b.Min.Y+y).Y
		}
	}
	return out
}

// adaptiveThreshold binarizes against the local mean of a window x window
// neighborhood minus offset.
func adaptiveThreshold(g *image.Gray, window, offset int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	half := window / 2
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, n int
			for dy := -half; dy <= half; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -half; dx <= half; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					sum += int(g.GrayAt(b.Min.X+xx, b.Min.Y+yy).Y)
					n++
				}
			}
			mean := sum / n
			if int(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y) > mean-offset {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}
