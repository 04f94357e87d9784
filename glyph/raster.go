package glyph

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/sdfatlas/mono"
)

// Options controls glyph bitmap size.
type Options struct {
	// Size is the font size in pixels per em.
	Size float64

	// PaddingX and PaddingY are added on each side of the bitmap.
	PaddingX int
	PaddingY int
}

// Rasterizer renders glyphs of one font at one size.
type Rasterizer struct {
	face   font.Face
	ascent fixed.Int26_6
	height int
	padX   int
	padY   int
}

// NewRasterizer creates a rasterizer. Each worker needs its own.
func (f *Font) NewRasterizer(opts Options) (*Rasterizer, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("glyph: size %v must be positive", opts.Size)
	}
	if opts.PaddingX < 0 || opts.PaddingY < 0 {
		return nil, fmt.Errorf("glyph: padding %dx%d must be non-negative", opts.PaddingX, opts.PaddingY)
	}
	face, err := opentype.NewFace(f.sf, &opentype.FaceOptions{
		Size:    opts.Size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("glyph: create face: %w", err)
	}
	m := face.Metrics()
	return &Rasterizer{
		face:   face,
		ascent: m.Ascent,
		height: (m.Ascent + m.Descent).Ceil(),
		padX:   opts.PaddingX,
		padY:   opts.PaddingY,
	}, nil
}

// LineHeight returns the unpadded bitmap height.
func (r *Rasterizer) LineHeight() int { return r.height }

// Render draws ch into dst, resizing it. It returns false, leaving dst
// unspecified, when the glyph has no visible ink at this size.
func (r *Rasterizer) Render(ch rune, dst *mono.Image) bool {
	dr, mask, maskp, _, ok := r.face.Glyph(fixed.Point26_6{Y: r.ascent}, ch)
	if !ok || dr.Empty() || mask == nil {
		return false
	}

	w := dr.Dx()
	dst.Resize(w+2*r.padX, r.height+2*r.padY)

	ink := false
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		if y < 0 || y >= r.height {
			continue
		}
		row := (y + r.padY) * dst.Width
		for x := range w {
			if covered(mask, maskp.X+x, maskp.Y+y-dr.Min.Y) {
				dst.Pix[row+r.padX+x] = 255
				ink = true
			}
		}
	}
	return ink
}

// Close releases the face.
func (r *Rasterizer) Close() error { return r.face.Close() }

// covered reports whether mask coverage at (x, y) is at least one half.
func covered(mask image.Image, x, y int) bool {
	if a, ok := mask.(*image.Alpha); ok {
		return a.AlphaAt(x, y).A >= 0x80
	}
	_, _, _, a := mask.At(x, y).RGBA()
	return a >= 0x8000
}
