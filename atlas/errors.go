package atlas

import (
	"errors"
	"fmt"
)

// Sentinel errors for atlas package.
var (
	// ErrNoPageWriter is returned when an assembler is created without page storage.
	ErrNoPageWriter = errors.New("atlas: nil page writer")

	// ErrUnknownFormat is returned for an unsupported metadata format name.
	ErrUnknownFormat = errors.New("atlas: unknown metadata format")
)

// ConfigError reports an invalid assembler configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "atlas: invalid config." + e.Field + ": " + e.Reason
}

// GlyphTooLargeError is returned by Push when a glyph plus its margins does
// not fit on an empty page. It aborts the run.
type GlyphTooLargeError struct {
	Char          rune
	Width, Height int // including margins
	PageWidth     int
	PageHeight    int
}

func (e *GlyphTooLargeError) Error() string {
	return fmt.Sprintf("atlas: glyph %U is %dx%d with margins, page is %dx%d",
		e.Char, e.Width, e.Height, e.PageWidth, e.PageHeight)
}
