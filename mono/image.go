// Package mono provides the single-channel raster buffer shared by every
// stage of the SDF pipeline.
package mono

import (
	"image"
	"image/color"
)

// Image is a single-channel, row-major, one byte per pixel raster.
//
// Invariant: len(Pix) == Width*Height. Resize reallocates or reslices and
// zero-fills, so stale pixels from a previous glyph never leak through.
type Image struct {
	Pix    []uint8
	Width  int
	Height int
}

// New creates a zero-filled image with the given dimensions.
func New(width, height int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{
		Pix:    make([]uint8, width*height),
		Width:  width,
		Height: height,
	}
}

// Resize changes the dimensions and zero-fills the pixels.
// The backing array is reused when it is large enough.
func (m *Image) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	n := width * height
	if cap(m.Pix) >= n {
		m.Pix = m.Pix[:n]
	} else {
		m.Pix = make([]uint8, n)
	}
	m.Width = width
	m.Height = height
	m.Clear()
}

// Clear sets every pixel to zero.
func (m *Image) Clear() {
	clear(m.Pix)
}

// Empty reports whether the image has no pixels.
func (m *Image) Empty() bool {
	return m.Width == 0 || m.Height == 0
}

// Offset returns the index of (x, y) with both coordinates clamped to the
// image, so border pixels never read out of range.
func (m *Image) Offset(x, y int) int {
	return ClampedOffset(x, y, m.Width, m.Height)
}

// ClampedOffset is Offset for a bare width × height buffer.
func ClampedOffset(x, y, width, height int) int {
	if x < 0 {
		x = 0
	} else if x >= width {
		x = width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= height {
		y = height - 1
	}
	return y*width + x
}

// GrayAt returns the pixel at (x, y), clamped to the image.
func (m *Image) GrayAt(x, y int) uint8 {
	return m.Pix[m.Offset(x, y)]
}

// SetGray writes v at (x, y). Out-of-range coordinates are clamped.
func (m *Image) SetGray(x, y int, v uint8) {
	m.Pix[m.Offset(x, y)] = v
}

// CopyFrom makes m an exact copy of src, reusing m's storage when possible.
func (m *Image) CopyFrom(src *Image) {
	n := len(src.Pix)
	if cap(m.Pix) >= n {
		m.Pix = m.Pix[:n]
	} else {
		m.Pix = make([]uint8, n)
	}
	copy(m.Pix, src.Pix)
	m.Width = src.Width
	m.Height = src.Height
}

// ToGray converts the image to an *image.Gray sharing no memory with m.
func (m *Image) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(img.Pix, m.Pix)
	return img
}

// At implements the image.Image interface.
func (m *Image) At(x, y int) color.Color {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return color.Gray{}
	}
	return color.Gray{Y: m.Pix[y*m.Width+x]}
}

// Bounds implements the image.Image interface.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// ColorModel implements the image.Image interface.
func (m *Image) ColorModel() color.Model {
	return color.GrayModel
}
