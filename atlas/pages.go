package atlas

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gogpu/sdfatlas/mono"
)

// PageWriter stores finished pages. The page must not be retained after
// WritePage returns.
type PageWriter interface {
	WritePage(id int, page *mono.Image) error
}

// DirWriter saves pages as <id>.png in Dir.
type DirWriter struct {
	Dir string
}

// PagePath returns the file name used for page id.
func (w DirWriter) PagePath(id int) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%d.png", id))
}

// WritePage encodes page as a single-channel PNG.
func (w DirWriter) WritePage(id int, page *mono.Image) error {
	if err := os.MkdirAll(w.Dir, 0o750); err != nil {
		return err
	}
	return page.SavePNG(w.PagePath(id))
}

// MemoryWriter keeps copies of written pages, keyed by page id.
type MemoryWriter struct {
	mu    sync.Mutex
	pages map[int]*mono.Image
}

// NewMemoryWriter creates an empty MemoryWriter.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{pages: make(map[int]*mono.Image)}
}

// WritePage stores a copy of page.
func (w *MemoryWriter) WritePage(id int, page *mono.Image) error {
	cp := &mono.Image{}
	cp.CopyFrom(page)
	w.mu.Lock()
	w.pages[id] = cp
	w.mu.Unlock()
	return nil
}

// Page returns the stored page id, or nil.
func (w *MemoryWriter) Page(id int) *mono.Image {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pages[id]
}

// Len returns the number of stored pages.
func (w *MemoryWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pages)
}
