// Package atlas packs finished distance field glyphs into fixed-size pages.
//
// Glyphs arrive in completion order from any number of workers. Each is
// placed on a shelf: left to right along the current row, wrapping to a new
// row below the tallest glyph of the row, and flushing the page to storage
// when no row is left. Placement depends only on the cursor at push time.
package atlas

import (
	"fmt"
	"sync"

	"github.com/gogpu/sdfatlas/mono"
)

// Config describes page geometry.
type Config struct {
	PageWidth  int
	PageHeight int

	// MarginX and MarginY are left blank on each side of every glyph.
	MarginX int
	MarginY int
}

// Validate checks that the configuration can hold at least one pixel.
func (c *Config) Validate() error {
	if c.PageWidth < 1 {
		return &ConfigError{Field: "PageWidth", Reason: "must be at least 1"}
	}
	if c.PageHeight < 1 {
		return &ConfigError{Field: "PageHeight", Reason: "must be at least 1"}
	}
	if c.MarginX < 0 {
		return &ConfigError{Field: "MarginX", Reason: "must be non-negative"}
	}
	if c.MarginY < 0 {
		return &ConfigError{Field: "MarginY", Reason: "must be non-negative"}
	}
	return nil
}

// Assembler is the shared atlas state. All methods are safe for concurrent
// use.
type Assembler struct {
	mu sync.Mutex

	cfg    Config
	writer PageWriter

	page   *mono.Image
	pageID int
	dirty  bool

	x, y      int
	rowHeight int

	records []Record
	written int
}

// New creates an assembler that flushes full pages to w.
func New(cfg Config, w PageWriter) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNoPageWriter
	}
	return &Assembler{
		cfg:    cfg,
		writer: w,
		page:   mono.New(cfg.PageWidth, cfg.PageHeight),
	}, nil
}

// Push places glyph on the current page and records its placement. The
// pixels are copied; glyph may be reused when Push returns.
func (a *Assembler) Push(ch rune, glyph *mono.Image) error {
	w := glyph.Width + 2*a.cfg.MarginX
	h := glyph.Height + 2*a.cfg.MarginY
	if w > a.cfg.PageWidth || h > a.cfg.PageHeight {
		return &GlyphTooLargeError{
			Char: ch, Width: w, Height: h,
			PageWidth: a.cfg.PageWidth, PageHeight: a.cfg.PageHeight,
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.makeRoomLocked(w, h); err != nil {
		return err
	}
	a.rowHeight = max(a.rowHeight, h)

	px, py := a.x+a.cfg.MarginX, a.y+a.cfg.MarginY
	for y := range glyph.Height {
		src := glyph.Pix[y*glyph.Width : (y+1)*glyph.Width]
		copy(a.page.Pix[a.page.Offset(px, py+y):], src)
	}
	a.records = append(a.records, Record{
		Char:   ch,
		Page:   a.pageID,
		X:      px,
		Y:      py,
		Width:  glyph.Width,
		Height: glyph.Height,
	})
	a.x += w
	a.dirty = true
	return nil
}

// makeRoomLocked moves the cursor so that a w × h cell fits at (x, y),
// wrapping the row or flushing the page as needed.
func (a *Assembler) makeRoomLocked(w, h int) error {
	if a.x+w > a.cfg.PageWidth {
		if a.y+a.rowHeight+h <= a.cfg.PageHeight {
			a.y += a.rowHeight
			a.x = 0
			a.rowHeight = 0
			return nil
		}
		return a.nextPageLocked()
	}
	if a.y+h > a.cfg.PageHeight {
		return a.nextPageLocked()
	}
	return nil
}

func (a *Assembler) nextPageLocked() error {
	if err := a.flushLocked(); err != nil {
		return err
	}
	a.pageID++
	a.x, a.y, a.rowHeight = 0, 0, 0
	a.page.Clear()
	a.dirty = false
	return nil
}

func (a *Assembler) flushLocked() error {
	if err := a.writer.WritePage(a.pageID, a.page); err != nil {
		return fmt.Errorf("atlas: write page %d: %w", a.pageID, err)
	}
	a.written++
	slogger().Info("atlas: page written", "page", a.pageID, "glyphs", a.glyphsOnPageLocked())
	return nil
}

// SaveCurrentPage writes the current, possibly partial, page. A page with no
// glyphs is written only when nothing has been written yet, so an empty run
// still yields page 0.
func (a *Assembler) SaveCurrentPage() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.dirty && a.written > 0 {
		return nil
	}
	if err := a.flushLocked(); err != nil {
		return err
	}
	a.dirty = false
	return nil
}

// Records returns a copy of the placements in push order.
func (a *Assembler) Records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}

// Len returns the number of glyphs placed.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// PagesWritten returns how many pages have been handed to the writer.
func (a *Assembler) PagesWritten() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written
}

func (a *Assembler) glyphsOnPageLocked() int {
	n := 0
	for i := len(a.records) - 1; i >= 0 && a.records[i].Page == a.pageID; i-- {
		n++
	}
	return n
}
