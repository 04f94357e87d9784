package glyph

import (
	"bytes"
	"fmt"

	"github.com/go-text/typesetting/font"
)

// Coverage answers which characters a font maps to a glyph.
type Coverage struct {
	f *font.Font
}

// NewCoverage reads the character map of font data.
func NewCoverage(data []byte) (*Coverage, error) {
	// ParseTTF returns a *Face which embeds the thread-safe *Font.
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("glyph: read cmap: %w", err)
	}
	return &Coverage{f: face.Font}, nil
}

// Has reports whether r maps to a glyph.
func (c *Coverage) Has(r rune) bool {
	_, ok := c.f.NominalGlyph(r)
	return ok
}

// Filter splits runes into those the font covers and those it does not,
// keeping the input order in both.
func (c *Coverage) Filter(runes []rune) (covered, missing []rune) {
	covered = make([]rune, 0, len(runes))
	for _, r := range runes {
		if c.Has(r) {
			covered = append(covered, r)
		} else {
			missing = append(missing, r)
		}
	}
	return covered, missing
}
