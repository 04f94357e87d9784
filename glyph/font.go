package glyph

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// ErrEmptyFont is returned when parsing zero bytes.
var ErrEmptyFont = errors.New("glyph: empty font data")

// Font is a parsed TrueType or OpenType font. It is safe for concurrent use.
type Font struct {
	sf  *opentype.Font
	cov *Coverage
}

// Parse parses font data.
func Parse(data []byte) (*Font, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFont
	}
	sf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("glyph: parse font: %w", err)
	}
	cov, err := NewCoverage(data)
	if err != nil {
		return nil, err
	}
	return &Font{sf: sf, cov: cov}, nil
}

// Load reads and parses the font file at path.
func Load(path string) (*Font, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Name returns the full font name, or the family name if the full name is
// missing.
func (f *Font) Name() string {
	if n, err := f.sf.Name(nil, sfnt.NameIDFull); err == nil && n != "" {
		return n
	}
	if n, err := f.sf.Name(nil, sfnt.NameIDFamily); err == nil {
		return n
	}
	return ""
}

// NumGlyphs returns the number of glyphs in the font.
func (f *Font) NumGlyphs() int { return f.sf.NumGlyphs() }

// Coverage returns the font's character map.
func (f *Font) Coverage() *Coverage { return f.cov }
