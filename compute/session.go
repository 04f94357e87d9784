package compute

import (
	"fmt"

	"github.com/gogpu/sdfatlas/mono"
)

// Session owns the device buffers of one worker: source, edge and field.
// Buffers grow when a glyph needs more pixels than was allocated before and
// are never shrunk, so steady-state processing does not allocate.
//
// A Session is not safe for concurrent use.
type Session struct {
	dev Device

	src  Buffer
	edge Buffer
	sdf  Buffer

	grows int
}

// NewSession creates a session on dev. No memory is allocated until the
// first glyph is submitted.
func NewSession(dev Device) *Session {
	return &Session{dev: dev}
}

// Device returns the underlying device.
func (s *Session) Device() Device { return s.dev }

// Grows returns how many times a buffer was reallocated.
func (s *Session) Grows() int { return s.grows }

// Capacity returns the current capacity in pixels of the source, edge and
// field buffers.
func (s *Session) Capacity() (src, edge, sdf int) {
	return bufLen(s.src), bufLen(s.edge), bufLen(s.sdf)
}

// Generate enqueues upload → edge detect → SDF generate → download of glyph.
// out is resized to the field dimensions immediately, and its pixels are
// valid once the returned event completes. glyph may be reused as soon as
// Generate returns.
func (s *Session) Generate(glyph *mono.Image, out *mono.Image, p SDFParams) (Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	w, h := glyph.Width, glyph.Height
	sw, sh := SDFSize(w, h, p.Stride)
	out.Resize(sw, sh)
	if w == 0 || h == 0 {
		return Done(), nil
	}

	if err := s.reserve(&s.src, w*h); err != nil {
		return nil, err
	}
	if err := s.reserve(&s.edge, w*h); err != nil {
		return nil, err
	}
	if err := s.reserve(&s.sdf, sw*sh); err != nil {
		return nil, err
	}

	up, err := s.dev.Upload(s.src, glyph.Pix)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	edge, err := s.dev.EdgeDetect(s.edge, s.src, w, h, up)
	if err != nil {
		return nil, fmt.Errorf("edge detect: %w", err)
	}
	field, err := s.dev.SDFGenerate(s.sdf, s.edge, w, h, p, edge)
	if err != nil {
		return nil, fmt.Errorf("sdf generate: %w", err)
	}
	down, err := s.dev.Download(out.Pix, s.sdf, field)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	return down, nil
}

// Convert enqueues the full symbol pipeline for an input raster: grayscale
// conversion (skipped for single-channel input), edge detect and SDF
// generate. The field buffer doubles as the grayscale target, which is free
// until the SDF stage overwrites it.
func (s *Session) Convert(r *mono.Raster, out *mono.Image, p SDFParams) (Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if r.Gray() {
		return s.Generate(&mono.Image{Pix: r.Pix, Width: r.Width, Height: r.Height}, out, p)
	}

	w, h := r.Width, r.Height
	n := w * h
	sw, sh := SDFSize(w, h, p.Stride)
	out.Resize(sw, sh)
	if n == 0 {
		return Done(), nil
	}

	if err := s.reserve(&s.src, len(r.Pix)); err != nil {
		return nil, err
	}
	if err := s.reserve(&s.edge, n); err != nil {
		return nil, err
	}
	if err := s.reserve(&s.sdf, max(n, sw*sh)); err != nil {
		return nil, err
	}

	up, err := s.dev.Upload(s.src, r.Pix)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	gray, err := s.dev.Grayscale(s.sdf, s.src, n, r.Channels, up)
	if err != nil {
		return nil, fmt.Errorf("grayscale: %w", err)
	}
	edge, err := s.dev.EdgeDetect(s.edge, s.sdf, w, h, gray)
	if err != nil {
		return nil, fmt.Errorf("edge detect: %w", err)
	}
	field, err := s.dev.SDFGenerate(s.sdf, s.edge, w, h, p, edge)
	if err != nil {
		return nil, fmt.Errorf("sdf generate: %w", err)
	}
	down, err := s.dev.Download(out.Pix, s.sdf, field)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	return down, nil
}

// Release frees all device buffers.
func (s *Session) Release() {
	for _, b := range []*Buffer{&s.src, &s.edge, &s.sdf} {
		if *b != nil {
			s.dev.Free(*b)
			*b = nil
		}
	}
}

// reserve makes *buf hold at least n pixels, reallocating only on growth.
func (s *Session) reserve(buf *Buffer, n int) error {
	if *buf != nil && (*buf).Len() >= n {
		return nil
	}
	nb, err := s.dev.Alloc(n)
	if err != nil {
		return fmt.Errorf("alloc %d pixels on %s: %w", n, s.dev.Name(), err)
	}
	if *buf != nil {
		s.dev.Free(*buf)
	}
	*buf = nb
	s.grows++
	return nil
}

func bufLen(b Buffer) int {
	if b == nil {
		return 0
	}
	return b.Len()
}
